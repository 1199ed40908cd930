package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shiftworks/linetrack/internal/client/api"
	"github.com/shiftworks/linetrack/internal/client/config"
	"github.com/shiftworks/linetrack/internal/client/session"
	"github.com/shiftworks/linetrack/internal/logging"
)

// App wires the HTTP client, the session manager and the interactive prompts
// together. All session transitions flow through the manager; the App only
// issues commands and renders snapshots.
type App struct {
	config  *config.Config
	api     *api.Client
	manager *session.Manager
	log     logging.Logger
	reader  *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	apiClient, err := api.NewClient(c.ServerAddr, c.RequestTimeout, log)
	if err != nil {
		return nil, err
	}

	manager := session.NewManager(apiClient, log, session.WithRedirect(func() {
		printlnFn("Session ended. Use 'login' to sign in again.")
	}))

	// Resource calls recover through the manager on a 401.
	apiClient.SetUnauthorizedHandler(manager.HandleUnauthorized)

	return &App{
		config:  c,
		api:     apiClient,
		manager: manager,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

// Run resolves the initial session, starts the transition watcher and hands
// control to the REPL. It blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.manager.Initialize(ctx); err != nil {
		a.log.Warn(ctx, "initial session check failed", "error", err)
	}

	go a.watchSession(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)

	a.manager.Logout(context.Background(), session.LogoutOptions{Silent: true})
}

func (a *App) isLoggedIn() bool {
	return a.manager.Snapshot().Authenticated()
}

func (a *App) getStatus() string {
	sess := a.manager.Snapshot()
	s := string(sess.Status)
	if sess.User != nil {
		s = fmt.Sprintf("%s %s", sess.User.Name, s)
	}
	return fmt.Sprintf("(%s)", s)
}

// watchSession surfaces background transitions (expiry, network loss) that
// happen between prompts, so the operator is not left typing into a dead
// session.
func (a *App) watchSession(ctx context.Context) {
	ch, unsubscribe := a.manager.Subscribe()
	defer unsubscribe()

	last := a.manager.Snapshot().Status
	for {
		select {
		case sess, ok := <-ch:
			if !ok {
				return
			}
			if sess.Status == last {
				continue
			}
			switch sess.Status {
			case session.StatusSessionExpired:
				printlnFn("Your session has expired.")
			case session.StatusNetworkError:
				printlnFn("Server unreachable; working with the last known session state.")
			case session.StatusNeedsPasswordReset:
				printlnFn("Your account requires a password reset before full access.")
			}
			last = sess.Status
		case <-ctx.Done():
			return
		}
	}
}

package cli

import (
	"context"
	"errors"
	"os"

	"github.com/shiftworks/linetrack/internal/client/session"
	"github.com/shiftworks/linetrack/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for a username and password and authenticates through the
// session manager. The password byte slice is wiped before returning.
//
// A network failure is reported as such; any other failure means the
// credentials were rejected.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.manager.Login(ctx, session.Credentials{Username: userName, Password: string(password)})
	if err != nil {
		if errors.Is(err, session.ErrNetwork) {
			printlnFn("Server unreachable, try again later.")
		} else if errors.Is(err, common.ErrTooManyAttempts) {
			printlnFn("Too many login attempts, wait a bit and try again.")
		} else {
			printlnFn("Login failed:", err.Error())
		}
		return err
	}

	sess := a.manager.Snapshot()
	if sess.Status == session.StatusNeedsPasswordReset {
		printlnFn("Logged in, but your account requires a password reset.")
		return nil
	}
	printlnFn("Success!")
	return nil
}

// Logout ends the session on this device.
func (a *App) Logout(ctx context.Context) error {
	a.manager.Logout(ctx, session.LogoutOptions{})
	printlnFn("Logged out.")
	return nil
}

// LogoutAll ends the session on every device the account is signed in on.
func (a *App) LogoutAll(ctx context.Context) error {
	a.manager.Logout(ctx, session.LogoutOptions{AllDevices: true})
	printlnFn("Logged out everywhere.")
	return nil
}

// Refresh forces an immediate credential renewal, bypassing the background
// schedule. Useful before a long offline stretch on the shop floor.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.manager.Refresh(ctx); err != nil {
		printlnFn("Refresh failed:", err.Error())
		return err
	}
	printlnFn("Session renewed.")
	return nil
}

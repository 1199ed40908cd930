package cli

import (
	"context"
	"fmt"
	"time"
)

// Status prints the current session snapshot: state, identity and how long
// the credential remains valid.
func (a *App) Status(ctx context.Context) error {
	sess := a.manager.Snapshot()

	printlnFn("State: ", string(sess.Status))
	if sess.User != nil {
		printlnFn(fmt.Sprintf("User:   %s (%s, %s)", sess.User.Name, sess.User.Role, sess.User.AccountStatus))
	}
	if !sess.ExpiresAt.IsZero() {
		printlnFn(fmt.Sprintf("Valid:  until %s (%s left)",
			sess.ExpiresAt.Local().Format(time.RFC1123),
			time.Until(sess.ExpiresAt).Round(time.Second)))
	}
	if sess.Err != "" {
		printlnFn("Error: ", sess.Err)
	}
	return nil
}

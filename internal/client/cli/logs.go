package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shiftworks/linetrack/internal/client/api"
	"github.com/shiftworks/linetrack/internal/client/session"
)

// List fetches and prints the shift logs visible to the current user.
func (a *App) List(ctx context.Context) error {
	logs, err := a.api.ListShiftLogs(ctx)
	if err != nil {
		a.reportResourceErr(err)
		return err
	}
	if len(logs) == 0 {
		printlnFn("No shift logs yet.")
		return nil
	}
	for _, l := range logs {
		printlnFn(fmt.Sprintf("%s  line %-3s %-5s  %s/%s x%d  by %s at %s",
			l.ID, l.Line, l.Shift, l.BagColor, l.BagSize, l.Quantity,
			l.CreatedBy, l.CreatedAt.Local().Format("2006-01-02 15:04")))
		if l.Note != "" {
			printlnFn("    note: " + l.Note)
		}
	}
	return nil
}

// Add interactively collects a shift log entry and submits it.
func (a *App) Add(ctx context.Context) error {
	line, err := getSimpleText(a.reader, "Line", os.Stdout)
	if err != nil {
		return err
	}
	shift, err := getSimpleText(a.reader, "Shift (day/night)", os.Stdout)
	if err != nil {
		return err
	}
	bagColor, err := getSimpleText(a.reader, "Bag color", os.Stdout)
	if err != nil {
		return err
	}
	bagSize, err := getSimpleText(a.reader, "Bag size", os.Stdout)
	if err != nil {
		return err
	}
	quantity, err := GetInt(a.reader, "Quantity", os.Stdout)
	if err != nil {
		printlnFn(err.Error())
		return err
	}
	note, err := getSimpleText(a.reader, "Note (optional)", os.Stdout)
	if err != nil {
		return err
	}

	created, err := a.api.CreateShiftLog(ctx, api.ShiftLogInput{
		Line:     line,
		Shift:    shift,
		BagColor: bagColor,
		BagSize:  bagSize,
		Quantity: quantity,
		Note:     note,
	})
	if err != nil {
		a.reportResourceErr(err)
		return err
	}
	printlnFn("Recorded:", created.ID)
	return nil
}

// Attach requests a presigned upload URL for a shift-log photo. The actual
// upload happens out of band (curl, the tablet camera app, etc).
func (a *App) Attach(ctx context.Context, id string) error {
	url, err := a.api.AttachmentUploadURL(ctx, id)
	if err != nil {
		a.reportResourceErr(err)
		return err
	}
	printlnFn("Upload your photo with an HTTP PUT to:")
	printlnFn(url)
	return nil
}

func (a *App) reportResourceErr(err error) {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		printlnFn("Your session has expired; use 'login' to continue.")
	case errors.Is(err, session.ErrNetwork):
		printlnFn("Server unreachable, try again later.")
	default:
		printlnFn("Request failed:", err.Error())
	}
}

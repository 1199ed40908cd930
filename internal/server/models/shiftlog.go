package models

import "time"

// ShiftLog is one production log entry recorded by a line worker.
type ShiftLog struct {
	ID            string
	Line          string
	Shift         string
	BagColor      string
	BagSize       string
	Quantity      int
	Note          string
	AttachmentKey string
	CreatedBy     string
	CreatedAt     time.Time
}

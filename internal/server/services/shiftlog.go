package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shiftworks/linetrack/internal/common"
	"github.com/shiftworks/linetrack/internal/server/models"
	"github.com/shiftworks/linetrack/internal/server/repositories/repomanager"
)

// ShiftLogInput carries the fields a worker submits for one log entry.
type ShiftLogInput struct {
	Line     string
	Shift    string
	BagColor string
	BagSize  string
	Quantity int
	Note     string
}

// ShiftLogService implements the production-log use cases over the
// repositories.
type ShiftLogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	listLimit   int
}

func NewShiftLogService(db *sql.DB, m repomanager.RepositoryManager) *ShiftLogService {
	return &ShiftLogService{db: db, repomanager: m, listLimit: 100}
}

// Validate reports the first problem with the input, or nil.
func (in *ShiftLogInput) Validate() error {
	if strings.TrimSpace(in.Line) == "" {
		return fmt.Errorf("%w: line is required", common.ErrInvalidInput)
	}
	switch in.Shift {
	case "day", "night":
	default:
		return fmt.Errorf("%w: shift must be day or night", common.ErrInvalidInput)
	}
	if strings.TrimSpace(in.BagColor) == "" || strings.TrimSpace(in.BagSize) == "" {
		return fmt.Errorf("%w: bag color and size are required", common.ErrInvalidInput)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", common.ErrInvalidInput)
	}
	return nil
}

// Create validates and stores one shift log entry on behalf of userID.
func (s *ShiftLogService) Create(ctx context.Context, in *ShiftLogInput, userID string) (*models.ShiftLog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	log := &models.ShiftLog{
		Line:      strings.TrimSpace(in.Line),
		Shift:     in.Shift,
		BagColor:  strings.TrimSpace(in.BagColor),
		BagSize:   strings.TrimSpace(in.BagSize),
		Quantity:  in.Quantity,
		Note:      strings.TrimSpace(in.Note),
		CreatedBy: userID,
	}
	repo := s.repomanager.ShiftLogs(s.db)
	created, err := repo.Create(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("error creating shift log: %w", err)
	}
	return created, nil
}

// List returns the most recent shift logs.
func (s *ShiftLogService) List(ctx context.Context) ([]*models.ShiftLog, error) {
	repo := s.repomanager.ShiftLogs(s.db)
	logs, err := repo.List(ctx, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing shift logs: %w", err)
	}
	return logs, nil
}

// Get returns one shift log by ID.
func (s *ShiftLogService) Get(ctx context.Context, id string) (*models.ShiftLog, error) {
	repo := s.repomanager.ShiftLogs(s.db)
	return repo.Get(ctx, id)
}

package shiftlogs

import (
	"context"

	"github.com/shiftworks/linetrack/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, log *models.ShiftLog) (*models.ShiftLog, error)
	List(ctx context.Context, limit int) ([]*models.ShiftLog, error)
	Get(ctx context.Context, id string) (*models.ShiftLog, error)
	SetAttachmentKey(ctx context.Context, id, key string) error
}

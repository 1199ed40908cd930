// Package shiftlogs provides a PostgreSQL-backed repository for production
// log entries.
package shiftlogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shiftworks/linetrack/internal/common"
	"github.com/shiftworks/linetrack/internal/dbx"
	"github.com/shiftworks/linetrack/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, log *models.ShiftLog) (*models.ShiftLog, error) {
	query :=
		`INSERT INTO shift_logs (line, shift, bag_color, bag_size, quantity, note, created_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		log.Line, log.Shift, log.BagColor, log.BagSize, log.Quantity, log.Note, log.CreatedBy).
		Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return log, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*models.ShiftLog, error) {
	query :=
		`SELECT id, line, shift, bag_color, bag_size, quantity, note, attachment_key, created_by, created_at
		 FROM shift_logs
		 ORDER BY created_at DESC
		 LIMIT $1
		 `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var logs []*models.ShiftLog
	for rows.Next() {
		l := &models.ShiftLog{}
		if err := rows.Scan(&l.ID, &l.Line, &l.Shift, &l.BagColor, &l.BagSize,
			&l.Quantity, &l.Note, &l.AttachmentKey, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return logs, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ShiftLog, error) {
	query :=
		`SELECT id, line, shift, bag_color, bag_size, quantity, note, attachment_key, created_by, created_at
		 FROM shift_logs
		 WHERE id = $1
		 `

	l := &models.ShiftLog{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.Line, &l.Shift, &l.BagColor,
		&l.BagSize, &l.Quantity, &l.Note, &l.AttachmentKey, &l.CreatedBy, &l.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return l, nil
}

func (r *PostgresRepository) SetAttachmentKey(ctx context.Context, id, key string) error {
	query :=
		`UPDATE shift_logs SET attachment_key = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

package repomanager

import (
	"context"
	"database/sql"

	"github.com/shiftworks/linetrack/internal/dbx"
	"github.com/shiftworks/linetrack/internal/server/repositories/refreshtokens"
	"github.com/shiftworks/linetrack/internal/server/repositories/shiftlogs"
	"github.com/shiftworks/linetrack/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	ShiftLogs(db dbx.DBTX) shiftlogs.Repository
}

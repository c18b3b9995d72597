package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/repositories/changerequests"
	"github.com/dkurenkov/credkeeper/repositories/credentials"
	"github.com/dkurenkov/credkeeper/repositories/passwordresets"
	"github.com/dkurenkov/credkeeper/repositories/sessions"
	"github.com/dkurenkov/credkeeper/repositories/vaults"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// repository code runs against *sql.DB and inside transactions.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
	Vaults(db dbx.DBTX) vaults.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	ChangeRequests(db dbx.DBTX) changerequests.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
}

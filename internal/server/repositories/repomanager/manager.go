package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/blocks"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/enrollments"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/organizations"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/vlobs"
)

// RepositoryManager binds repositories to either the pool or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Organizations(db dbx.DBTX) organizations.Repository
	Users(db dbx.DBTX) users.Repository
	Vlobs(db dbx.DBTX) vlobs.Repository
	Enrollments(db dbx.DBTX) enrollments.Repository
	Blocks(db dbx.DBTX) blocks.Repository
}

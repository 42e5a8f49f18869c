/*
Package store defines the persistence contracts for cases, revisions and the
audit log.

OPTIMISTIC VERSIONS:
  Cases and revisions carry a Version. Every save states the version it
  expects to replace: a save of version N succeeds only if the stored value
  has version N-1. Anything else returns generic.ErrConcurrentModification
  and writes nothing. A revision at version 1 is an insert.

UNITS OF WORK:
  TxRepository.WithTx runs fn against a Repository bound to one transaction.
  If fn returns an error, nothing fn wrote is kept. The execution
  orchestrator relies on this to append a decision, save the executed
  revision and write the audit entry together.

IMPLEMENTATIONS:
  - store/memory: snapshot/rollback, for tests and local runs
  - store/sqlite: database/sql transactions over SQLite
*/
package store

import (
	"context"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
)

type Cases interface {
	// CreateCase inserts a new case. The ID must be unused.
	CreateCase(ctx context.Context, c *benefit.Case) error
	LoadCase(ctx context.Context, id generic.CaseID) (*benefit.Case, error)
	// SaveCase replaces the stored case if its version is c.Version-1.
	SaveCase(ctx context.Context, c *benefit.Case) error
	ListCases(ctx context.Context) ([]*benefit.Case, error)
}

type Revisions interface {
	LoadRevision(ctx context.Context, id generic.RevisionID) (revision.Revision, error)
	// SaveRevision inserts at version 1, otherwise replaces version r.Version-1.
	SaveRevision(ctx context.Context, r revision.Revision) error
	// ListRevisionsByCase returns every revision of the case, oldest first.
	ListRevisionsByCase(ctx context.Context, caseID generic.CaseID) ([]revision.Revision, error)
	// ListIncomplete returns executed revisions with side effects still outstanding.
	ListIncomplete(ctx context.Context) ([]*revision.Executed, error)
}

type Repository interface {
	Cases
	Revisions
	generic.AuditLog
}

type TxRepository interface {
	Repository
	WithTx(ctx context.Context, fn func(Repository) error) error
}

/*
Package sqlite provides a SQLite-backed implementation of store.TxRepository.

PURPOSE:
  Persists cases, their decisions, revisions and the audit log. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - decisions: never updated or deleted. SaveCase inserts the decisions the
    stored case does not have yet.
  - audit_log: never updated or deleted.
  - revisions: replaced as a whole on every transition, guarded by version.

KEY TABLES:
  cases:      one row per case, version for optimistic locking
  decisions:  immutable decisions, seq keeps append order per case
  revisions:  status + version + encoded payload (revision.Marshal)
  audit_log:  who did what when

INDEXES:
  - idx_decisions_case_seq: loading a case's timeline (hot path)
  - idx_revisions_case: listing a case's revisions
  - idx_revisions_incomplete: the reconciliation sweep

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Versions are still checked in SQL
  (UPDATE ... WHERE version = ?), so the store stays correct if several
  processes share the file.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  repo, err := sqlite.New("./data/revurdering.db")
  if err != nil {
      log.Fatal(err)
  }
  defer repo.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - store/store.go: contracts
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/store"
)

// Store implements store.TxRepository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		beneficiary TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Decisions (append-only)
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		seq INTEGER NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		outcome TEXT NOT NULL,
		revision_id TEXT,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(case_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_case_seq
		ON decisions(case_id, seq);

	CREATE TABLE IF NOT EXISTS revisions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		side_effects_complete BOOLEAN NOT NULL DEFAULT FALSE,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_revisions_case
		ON revisions(case_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_revisions_incomplete
		ON revisions(status, side_effects_complete);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		case_id TEXT,
		revision_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_revision
		ON audit_log(revision_id);
	CREATE INDEX IF NOT EXISTS idx_audit_case
		ON audit_log(case_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CASES
// =============================================================================

func (s *Store) CreateCase(ctx context.Context, c *benefit.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q querier) error { return createCase(ctx, q, c) })
}

func createCase(ctx context.Context, q querier, c *benefit.Case) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO cases (id, beneficiary, version, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Beneficiary, c.Version, c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: case %s already exists", generic.ErrConcurrentModification, c.ID)
		}
		return fmt.Errorf("failed to insert case: %w", err)
	}
	return insertDecisions(ctx, q, c.ID, c.Decisions, 0)
}

func (s *Store) LoadCase(ctx context.Context, id generic.CaseID) (*benefit.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadCase(ctx, s.db, id)
}

func loadCase(ctx context.Context, q querier, id generic.CaseID) (*benefit.Case, error) {
	var (
		c         benefit.Case
		createdAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, beneficiary, version, created_at FROM cases WHERE id = ?`, id,
	).Scan(&c.ID, &c.Beneficiary, &c.Version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrCaseNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := q.QueryContext(ctx, `SELECT payload_json FROM decisions WHERE case_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load decisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d benefit.Decision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		c.Decisions = append(c.Decisions, d)
	}
	return &c, rows.Err()
}

func (s *Store) SaveCase(ctx context.Context, c *benefit.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(q querier) error { return saveCase(ctx, q, c) })
}

func saveCase(ctx context.Context, q querier, c *benefit.Case) error {
	res, err := q.ExecContext(ctx,
		`UPDATE cases SET version = ? WHERE id = ? AND version = ?`, c.Version, c.ID, c.Version-1)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflictOrMissing(ctx, q, "cases", string(c.ID), generic.ErrCaseNotFound)
	}

	var stored int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions WHERE case_id = ?`, c.ID).Scan(&stored); err != nil {
		return err
	}
	if stored > len(c.Decisions) {
		return fmt.Errorf("%w: case %s would drop decisions", generic.ErrConcurrentModification, c.ID)
	}
	return insertDecisions(ctx, q, c.ID, c.Decisions[stored:], stored)
}

func insertDecisions(ctx context.Context, q querier, caseID generic.CaseID, ds []benefit.Decision, firstSeq int) error {
	for i, d := range ds {
		payload, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO decisions (id, case_id, seq, period_start, period_end, outcome, revision_id, payload_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, caseID, firstSeq+i, d.Period.Start.String(), d.Period.End.String(), d.Outcome,
			nullString(string(d.RevisionID)), string(payload), d.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert decision %s: %w", d.ID, err)
		}
	}
	return nil
}

func (s *Store) ListCases(ctx context.Context) ([]*benefit.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCases(ctx, s.db)
}

func listCases(ctx context.Context, q querier) ([]*benefit.Case, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM cases ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	var ids []generic.CaseID
	for rows.Next() {
		var id generic.CaseID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]*benefit.Case, 0, len(ids))
	for _, id := range ids {
		c, err := loadCase(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// =============================================================================
// REVISIONS
// =============================================================================

func (s *Store) LoadRevision(ctx context.Context, id generic.RevisionID) (revision.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadRevision(ctx, s.db, id)
}

func loadRevision(ctx context.Context, q querier, id generic.RevisionID) (revision.Revision, error) {
	var payload string
	err := q.QueryRowContext(ctx, `SELECT payload_json FROM revisions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrRevisionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load revision: %w", err)
	}
	return revision.Unmarshal([]byte(payload))
}

func (s *Store) SaveRevision(ctx context.Context, r revision.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRevision(ctx, s.db, r)
}

func saveRevision(ctx context.Context, q querier, r revision.Revision) error {
	core := r.Base()
	payload, err := revision.Marshal(r)
	if err != nil {
		return err
	}
	complete := true
	if e, ok := r.(*revision.Executed); ok {
		complete = e.SideEffects.Complete()
	}
	updated := core.UpdatedAt.UTC().Format(time.RFC3339Nano)

	if core.Version == 1 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO revisions (id, case_id, status, version, period_start, period_end,
				side_effects_complete, payload_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			core.ID, core.CaseID, r.Status(), core.Version, core.Period.Start.String(), core.Period.End.String(),
			complete, string(payload), core.CreatedAt.UTC().Format(time.RFC3339Nano), updated)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: revision %s already exists", generic.ErrConcurrentModification, core.ID)
			}
			return fmt.Errorf("failed to insert revision: %w", err)
		}
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE revisions SET status = ?, version = ?, period_start = ?, period_end = ?,
			side_effects_complete = ?, payload_json = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.Status(), core.Version, core.Period.Start.String(), core.Period.End.String(),
		complete, string(payload), updated, core.ID, core.Version-1)
	if err != nil {
		return fmt.Errorf("failed to update revision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflictOrMissing(ctx, q, "revisions", string(core.ID), generic.ErrRevisionNotFound)
	}
	return nil
}

func (s *Store) ListRevisionsByCase(ctx context.Context, caseID generic.CaseID) ([]revision.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRevisions(ctx, s.db, `SELECT payload_json FROM revisions WHERE case_id = ? ORDER BY created_at, rowid`, caseID)
}

func (s *Store) ListIncomplete(ctx context.Context) ([]*revision.Executed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listIncomplete(ctx, s.db)
}

func listIncomplete(ctx context.Context, q querier) ([]*revision.Executed, error) {
	revs, err := queryRevisions(ctx, q,
		`SELECT payload_json FROM revisions WHERE status = ? AND side_effects_complete = FALSE ORDER BY updated_at`,
		revision.StatusExecuted)
	if err != nil {
		return nil, err
	}
	out := make([]*revision.Executed, 0, len(revs))
	for _, r := range revs {
		if e, ok := r.(*revision.Executed); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func queryRevisions(ctx context.Context, q querier, query string, args ...any) ([]revision.Revision, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var out []revision.Revision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		r, err := revision.Unmarshal([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func appendAudit(ctx context.Context, q querier, e generic.AuditEntry) error {
	if e.ID == "" {
		e.ID = generic.NewID()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, actor, action, case_id, revision_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ActorID, e.Action,
		nullString(string(e.CaseID)), nullString(string(e.RevisionID)), string(payload))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAudit(ctx, s.db, f)
}

func queryAudit(ctx context.Context, q querier, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	query := `SELECT id, ts, actor, action, COALESCE(case_id, ''), COALESCE(revision_id, ''), payload_json FROM audit_log WHERE 1=1`
	var args []any
	if f.CaseID != nil {
		query += ` AND case_id = ?`
		args = append(args, *f.CaseID)
	}
	if f.RevisionID != nil {
		query += ` AND revision_id = ?`
		args = append(args, *f.RevisionID)
	}
	if f.ActorID != nil {
		query += ` AND actor = ?`
		args = append(args, *f.ActorID)
	}
	if len(f.Actions) > 0 {
		query += ` AND action IN (?` + strings.Repeat(`, ?`, len(f.Actions)-1) + `)`
		for _, a := range f.Actions {
			args = append(args, a)
		}
	}
	query += ` ORDER BY rowid`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e       generic.AuditEntry
			ts      string
			payload string
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &e.Action, &e.CaseID, &e.RevisionID, &payload); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode audit payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (store.TxRepository)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txRepo{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// inTx runs a multi-statement write atomically. Callers hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(querier) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()
	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txRepo struct {
	tx *sql.Tx
}

func (t *txRepo) CreateCase(ctx context.Context, c *benefit.Case) error {
	return createCase(ctx, t.tx, c)
}

func (t *txRepo) LoadCase(ctx context.Context, id generic.CaseID) (*benefit.Case, error) {
	return loadCase(ctx, t.tx, id)
}

func (t *txRepo) SaveCase(ctx context.Context, c *benefit.Case) error {
	return saveCase(ctx, t.tx, c)
}

func (t *txRepo) ListCases(ctx context.Context) ([]*benefit.Case, error) {
	return listCases(ctx, t.tx)
}

func (t *txRepo) LoadRevision(ctx context.Context, id generic.RevisionID) (revision.Revision, error) {
	return loadRevision(ctx, t.tx, id)
}

func (t *txRepo) SaveRevision(ctx context.Context, r revision.Revision) error {
	return saveRevision(ctx, t.tx, r)
}

func (t *txRepo) ListRevisionsByCase(ctx context.Context, caseID generic.CaseID) ([]revision.Revision, error) {
	return queryRevisions(ctx, t.tx, `SELECT payload_json FROM revisions WHERE case_id = ? ORDER BY created_at, rowid`, caseID)
}

func (t *txRepo) ListIncomplete(ctx context.Context) ([]*revision.Executed, error) {
	return listIncomplete(ctx, t.tx)
}

func (t *txRepo) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}

func (t *txRepo) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	return queryAudit(ctx, t.tx, f)
}

var (
	_ store.TxRepository = (*Store)(nil)
	_ store.Repository   = (*txRepo)(nil)
)

// Helper functions

// conflictOrMissing explains an UPDATE that matched no row.
func conflictOrMissing(ctx context.Context, q querier, table, id string, notFound error) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("%w: %s %s was modified concurrently", generic.ErrConcurrentModification, table, id)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

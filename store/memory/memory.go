// Package memory provides an in-memory store.TxRepository (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/navikt/su-se-bakover-sub005/benefit"
	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/store"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps revisions in their encoded form, so callers never share
// state with the store.
type Memory struct {
	mu        sync.RWMutex
	cases     map[generic.CaseID]*benefit.Case
	revisions map[generic.RevisionID]storedRevision
	order     []generic.RevisionID // insertion order
	audit     []generic.AuditEntry
}

type storedRevision struct {
	caseID  generic.CaseID
	status  revision.Status
	version int
	payload []byte
}

func New() *Memory {
	return &Memory{
		cases:     make(map[generic.CaseID]*benefit.Case),
		revisions: make(map[generic.RevisionID]storedRevision),
	}
}

// ===== Cases =====

func (m *Memory) CreateCase(_ context.Context, c *benefit.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCaseLocked(c)
}

func (m *Memory) createCaseLocked(c *benefit.Case) error {
	if _, ok := m.cases[c.ID]; ok {
		return fmt.Errorf("%w: case %s already exists", generic.ErrConcurrentModification, c.ID)
	}
	m.cases[c.ID] = c.Clone()
	return nil
}

func (m *Memory) LoadCase(_ context.Context, id generic.CaseID) (*benefit.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadCaseLocked(id)
}

func (m *Memory) loadCaseLocked(id generic.CaseID) (*benefit.Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrCaseNotFound, id)
	}
	return c.Clone(), nil
}

func (m *Memory) SaveCase(_ context.Context, c *benefit.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCaseLocked(c)
}

func (m *Memory) saveCaseLocked(c *benefit.Case) error {
	cur, ok := m.cases[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrCaseNotFound, c.ID)
	}
	if cur.Version != c.Version-1 {
		return fmt.Errorf("%w: case %s is at version %d, save expects %d",
			generic.ErrConcurrentModification, c.ID, cur.Version, c.Version-1)
	}
	m.cases[c.ID] = c.Clone()
	return nil
}

func (m *Memory) ListCases(_ context.Context) ([]*benefit.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCasesLocked(), nil
}

func (m *Memory) listCasesLocked() []*benefit.Case {
	out := make([]*benefit.Case, 0, len(m.cases))
	for _, c := range m.cases {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ===== Revisions =====

func (m *Memory) LoadRevision(_ context.Context, id generic.RevisionID) (revision.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadRevisionLocked(id)
}

func (m *Memory) loadRevisionLocked(id generic.RevisionID) (revision.Revision, error) {
	s, ok := m.revisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrRevisionNotFound, id)
	}
	return revision.Unmarshal(s.payload)
}

func (m *Memory) SaveRevision(_ context.Context, r revision.Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRevisionLocked(r)
}

func (m *Memory) saveRevisionLocked(r revision.Revision) error {
	core := r.Base()
	cur, exists := m.revisions[core.ID]
	switch {
	case core.Version == 1 && exists:
		return fmt.Errorf("%w: revision %s already exists", generic.ErrConcurrentModification, core.ID)
	case core.Version > 1 && !exists:
		return fmt.Errorf("%w: %s", generic.ErrRevisionNotFound, core.ID)
	case exists && cur.version != core.Version-1:
		return fmt.Errorf("%w: revision %s is at version %d, save expects %d",
			generic.ErrConcurrentModification, core.ID, cur.version, core.Version-1)
	}

	payload, err := revision.Marshal(r)
	if err != nil {
		return err
	}
	if !exists {
		m.order = append(m.order, core.ID)
	}
	m.revisions[core.ID] = storedRevision{caseID: core.CaseID, status: r.Status(), version: core.Version, payload: payload}
	return nil
}

func (m *Memory) ListRevisionsByCase(_ context.Context, caseID generic.CaseID) ([]revision.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRevisionsLocked(func(s storedRevision) bool { return s.caseID == caseID })
}

func (m *Memory) ListIncomplete(_ context.Context) ([]*revision.Executed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIncompleteLocked()
}

func (m *Memory) listIncompleteLocked() ([]*revision.Executed, error) {
	revs, err := m.listRevisionsLocked(func(s storedRevision) bool { return s.status == revision.StatusExecuted })
	if err != nil {
		return nil, err
	}
	var out []*revision.Executed
	for _, r := range revs {
		e := r.(*revision.Executed)
		if !e.SideEffects.Complete() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) listRevisionsLocked(keep func(storedRevision) bool) ([]revision.Revision, error) {
	var out []revision.Revision
	for _, id := range m.order {
		s := m.revisions[id]
		if !keep(s) {
			continue
		}
		r, err := revision.Unmarshal(s.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ===== Audit log =====

func (m *Memory) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAuditLocked(e)
	return nil
}

func (m *Memory) appendAuditLocked(e generic.AuditEntry) {
	if e.ID == "" {
		e.ID = generic.NewID()
	}
	m.audit = append(m.audit, e)
}

func (m *Memory) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryAuditLocked(f), nil
}

func (m *Memory) queryAuditLocked(f generic.AuditFilter) []generic.AuditEntry {
	var out []generic.AuditEntry
	for _, e := range m.audit {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTx() *TxMemory {
	return &TxMemory{Memory: New()}
}

// WithTx executes fn within a transaction.
// For the memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(store.Repository) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	cases     map[generic.CaseID]*benefit.Case
	revisions map[generic.RevisionID]storedRevision
	order     []generic.RevisionID
	audit     []generic.AuditEntry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		cases:     make(map[generic.CaseID]*benefit.Case, len(tm.cases)),
		revisions: make(map[generic.RevisionID]storedRevision, len(tm.revisions)),
		order:     append([]generic.RevisionID(nil), tm.order...),
		audit:     append([]generic.AuditEntry(nil), tm.audit...),
	}
	for k, v := range tm.cases {
		s.cases[k] = v
	}
	for k, v := range tm.revisions {
		s.revisions[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.cases = s.cases
	tm.revisions = s.revisions
	tm.order = s.order
	tm.audit = s.audit
}

// txView runs inside WithTx, which already holds the lock.
type txView struct {
	parent *Memory
}

func (tv *txView) CreateCase(_ context.Context, c *benefit.Case) error {
	return tv.parent.createCaseLocked(c)
}

func (tv *txView) LoadCase(_ context.Context, id generic.CaseID) (*benefit.Case, error) {
	return tv.parent.loadCaseLocked(id)
}

func (tv *txView) SaveCase(_ context.Context, c *benefit.Case) error {
	return tv.parent.saveCaseLocked(c)
}

func (tv *txView) ListCases(_ context.Context) ([]*benefit.Case, error) {
	return tv.parent.listCasesLocked(), nil
}

func (tv *txView) LoadRevision(_ context.Context, id generic.RevisionID) (revision.Revision, error) {
	return tv.parent.loadRevisionLocked(id)
}

func (tv *txView) SaveRevision(_ context.Context, r revision.Revision) error {
	return tv.parent.saveRevisionLocked(r)
}

func (tv *txView) ListRevisionsByCase(_ context.Context, caseID generic.CaseID) ([]revision.Revision, error) {
	return tv.parent.listRevisionsLocked(func(s storedRevision) bool { return s.caseID == caseID })
}

func (tv *txView) ListIncomplete(_ context.Context) ([]*revision.Executed, error) {
	return tv.parent.listIncompleteLocked()
}

func (tv *txView) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	tv.parent.appendAuditLocked(e)
	return nil
}

func (tv *txView) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	return tv.parent.queryAuditLocked(f), nil
}

var (
	_ store.TxRepository = (*TxMemory)(nil)
	_ store.Repository   = (*txView)(nil)
)

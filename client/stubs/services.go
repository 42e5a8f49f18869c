package stubs

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/navikt/su-se-bakover-sub005/execution"
	"github.com/navikt/su-se-bakover-sub005/generic"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

type Documents struct {
	mu         sync.Mutex
	clock      generic.Clock
	byRevision map[generic.RevisionID]execution.DocumentHandle
	requests   map[generic.DocumentID]execution.DocumentRequest
	noticeBy   map[generic.RevisionID]execution.DocumentHandle
	notices    map[generic.DocumentID]execution.NoticeRequest
	dispatched map[generic.DocumentID]int

	generateFaults faults
	dispatchFaults faults
}

func NewDocuments(clock generic.Clock) *Documents {
	return &Documents{
		clock:      clock,
		byRevision: make(map[generic.RevisionID]execution.DocumentHandle),
		requests:   make(map[generic.DocumentID]execution.DocumentRequest),
		noticeBy:   make(map[generic.RevisionID]execution.DocumentHandle),
		notices:    make(map[generic.DocumentID]execution.NoticeRequest),
		dispatched: make(map[generic.DocumentID]int),
	}
}

func (d *Documents) FailGenerate(err error) { d.generateFaults.set(err) }
func (d *Documents) FailDispatch(err error) { d.dispatchFaults.set(err) }

func (d *Documents) GenerateDecisionDocument(_ context.Context, req execution.DocumentRequest) (execution.DocumentHandle, error) {
	if err := d.generateFaults.get(); err != nil {
		return execution.DocumentHandle{}, fmt.Errorf("%w: %v", generic.ErrDocumentGenerationFailed, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.byRevision[req.RevisionID]; ok {
		return h, nil
	}
	h := execution.DocumentHandle{ID: generic.DocumentID("doc-" + generic.NewID()), CreatedAt: stamp(d.clock)}
	d.byRevision[req.RevisionID] = h
	d.requests[h.ID] = req
	return h, nil
}

func (d *Documents) GenerateAdvanceNotice(_ context.Context, req execution.NoticeRequest) (execution.DocumentHandle, error) {
	if err := d.generateFaults.get(); err != nil {
		return execution.DocumentHandle{}, fmt.Errorf("%w: %v", generic.ErrDocumentGenerationFailed, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.noticeBy[req.RevisionID]; ok {
		return h, nil
	}
	h := execution.DocumentHandle{ID: generic.DocumentID("notice-" + generic.NewID()), CreatedAt: stamp(d.clock)}
	d.noticeBy[req.RevisionID] = h
	d.notices[h.ID] = req
	return h, nil
}

// DraftDecisionDocument renders the letter as plain text.
func (d *Documents) DraftDecisionDocument(_ context.Context, req execution.DocumentRequest) ([]byte, error) {
	if err := d.generateFaults.get(); err != nil {
		return nil, fmt.Errorf("%w: %v", generic.ErrDocumentGenerationFailed, err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "DRAFT\nTo: %s (%s)\nCase: %s\nPeriod: %s\nOutcome: %s\n",
		req.Beneficiary.Name, req.Beneficiary.ID, req.CaseID, req.Period, req.Outcome)
	for _, l := range req.Lines {
		fmt.Fprintf(&b, "%s  %s\n", l.Month.Start.Time.Format("2006-01"), l.Amount.Round())
	}
	if req.FreeText != "" {
		fmt.Fprintf(&b, "\n%s\n", req.FreeText)
	}
	fmt.Fprintf(&b, "\nCaseworker: %s\n", req.Caseworker.Name)
	if req.Attestant.ID != "" {
		fmt.Fprintf(&b, "Attestant: %s\n", req.Attestant.Name)
	}
	return b.Bytes(), nil
}

func (d *Documents) Dispatch(_ context.Context, id generic.DocumentID) error {
	if err := d.dispatchFaults.get(); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrDocumentDispatchFailed, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, isLetter := d.requests[id]
	_, isNotice := d.notices[id]
	if !isLetter && !isNotice {
		return fmt.Errorf("%w: unknown document %s", generic.ErrDocumentDispatchFailed, id)
	}
	d.dispatched[id]++
	return nil
}

// Request returns what the document was generated from.
func (d *Documents) Request(id generic.DocumentID) (execution.DocumentRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.requests[id]
	return r, ok
}

// Notice returns what an advance notice was generated from.
func (d *Documents) Notice(id generic.DocumentID) (execution.NoticeRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.notices[id]
	return n, ok
}

// Dispatched counts dispatches of a document.
func (d *Documents) Dispatched(id generic.DocumentID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatched[id]
}

// Generated counts distinct decision documents.
func (d *Documents) Generated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// =============================================================================
// TASKS
// =============================================================================

type Tasks struct {
	mu     sync.Mutex
	closed map[generic.RevisionID]generic.CaseID
	faults faults
}

func NewTasks() *Tasks {
	return &Tasks{closed: make(map[generic.RevisionID]generic.CaseID)}
}

func (t *Tasks) Fail(err error) { t.faults.set(err) }

func (t *Tasks) CloseOrReassignTask(_ context.Context, caseID generic.CaseID, revisionID generic.RevisionID) error {
	if err := t.faults.get(); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrTaskUpdateFailed, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed[revisionID] = caseID
	return nil
}

func (t *Tasks) Closed(revisionID generic.RevisionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.closed[revisionID]
	return ok
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity resolves known people and invents a name for anyone else.
type Identity struct {
	mu     sync.Mutex
	names  map[string]string
	faults faults
}

func NewIdentity() *Identity {
	return &Identity{names: make(map[string]string)}
}

func (i *Identity) Fail(err error) { i.faults.set(err) }

// Register sets the display name for a national ID or NAV ident.
func (i *Identity) Register(id, name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.names[id] = name
}

func (i *Identity) Beneficiary(_ context.Context, id generic.BeneficiaryID) (execution.Person, error) {
	return i.lookup(string(id))
}

func (i *Identity) Caseworker(_ context.Context, ident generic.NavIdent) (execution.Person, error) {
	return i.lookup(string(ident))
}

func (i *Identity) lookup(id string) (execution.Person, error) {
	if err := i.faults.get(); err != nil {
		return execution.Person{}, fmt.Errorf("%w: %v", generic.ErrUpstreamIdentityLookupFailed, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	name, ok := i.names[id]
	if !ok {
		name = "Person " + id
	}
	return execution.Person{ID: id, Name: name}, nil
}

var (
	_ execution.DocumentService = (*Documents)(nil)
	_ execution.TaskService     = (*Tasks)(nil)
	_ execution.IdentityLookup  = (*Identity)(nil)
)

/*
reconciler.go - Side effect reconciliation sweep

PURPOSE:
  An executed revision can be left with a missing decision letter, an
  undispatched letter or an open task when a collaborator was down. The
  reconciler periodically finds those revisions and re-runs the missing
  steps. The decision itself is never touched.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each sweep lists incomplete revisions and completes them concurrently,
    bounded by Concurrency
  - Each revision is processed under its case lock, the same lock the
    service takes for writes
  - A failing revision is logged and retried on the next sweep

USAGE:
  r := NewReconciler(orchestrator, repo, locks)
  r.Start()
  // ... later
  r.Stop()

SEE ALSO:
  - orchestrator.go: CompleteSideEffects
  - service/service.go: shares the KeyedMutex
*/
package execution

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/navikt/su-se-bakover-sub005/generic"
	"github.com/navikt/su-se-bakover-sub005/revision"
	"github.com/navikt/su-se-bakover-sub005/store"
)

// SweepResult summarises one reconciliation sweep.
type SweepResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Remaining int `json:"remaining"`
}

type Reconciler struct {
	Orchestrator *Orchestrator
	Repo         store.Revisions
	Locks        *generic.KeyedMutex
	Interval     time.Duration
	Concurrency  int
	Enabled      bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewReconciler(o *Orchestrator, repo store.Revisions, locks *generic.KeyedMutex) *Reconciler {
	if locks == nil {
		locks = generic.NewKeyedMutex()
	}
	return &Reconciler{
		Orchestrator: o,
		Repo:         repo,
		Locks:        locks,
		Interval:     5 * time.Minute,
		Concurrency:  4,
		Enabled:      true,
	}
}

// Start begins periodic sweeps.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Enabled {
		log.Println("[Reconciler] Disabled, not starting")
		return
	}
	if r.ticker != nil {
		return
	}

	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.run()

	log.Printf("[Reconciler] Started with interval: %v", r.Interval)
}

// Stop waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		r.ticker.Stop()
		close(r.stop)
		r.wg.Wait()
		r.ticker = nil
		log.Println("[Reconciler] Stopped")
	}
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stop
		cancel()
	}()

	r.sweep(ctx)
	for {
		select {
		case <-r.ticker.C:
			r.sweep(ctx)
		case <-r.stop:
			return
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	res, err := r.RunOnce(ctx)
	if err != nil {
		log.Printf("[Reconciler] Sweep failed: %v", err)
		return
	}
	if res.Checked > 0 {
		log.Printf("[Reconciler] Completed: %d checked, %d completed, %d remaining",
			res.Checked, res.Completed, res.Remaining)
	}
}

// RunOnce performs a single sweep. Per-revision failures are counted in
// Remaining, not returned.
func (r *Reconciler) RunOnce(ctx context.Context) (SweepResult, error) {
	pending, err := r.Repo.ListIncomplete(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var (
		mu  sync.Mutex
		res = SweepResult{Checked: len(pending)}
	)
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, e := range pending {
		e := e
		g.Go(func() error {
			done := r.reconcile(gctx, e)
			mu.Lock()
			if done {
				res.Completed++
			} else {
				res.Remaining++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res, ctx.Err()
}

func (r *Reconciler) reconcile(ctx context.Context, e *revision.Executed) bool {
	if ctx.Err() != nil {
		return false
	}
	unlock := r.Locks.Lock(string(e.CaseID))
	defer unlock()

	before := e.SideEffects
	rep, err := r.Orchestrator.CompleteSideEffects(ctx, e.ID)
	if err != nil {
		log.Printf("[Reconciler] revision %s: %v", e.ID, err)
		return false
	}
	for _, step := range revision.SideEffectSteps {
		if !before.Done(step) && rep.Revision.SideEffects.Done(step) {
			r.Orchestrator.metrics.incReconciled(string(step))
		}
	}
	return rep.Complete()
}

package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/config"
	"folio/internal/coverage"
	"folio/internal/identity"
	"folio/internal/logging"
	"folio/internal/sources"
)

// Options control one batch run.
type Options struct {
	Collection string
	// ForceRefresh re-runs settled providers on the first pass. Later
	// passes fall back to normal retry selection, otherwise a forced run
	// would never drain.
	ForceRefresh bool
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Succeeded  int
	Transient  int
	Persistent int
	Passes     int
	Elapsed    time.Duration
}

// Runner walks the identifier population and resolves whatever still lacks
// coverage.
type Runner struct {
	ids          *identity.Store
	ledger       *coverage.Ledger
	orchestrator *coverage.Orchestrator
	cfg          *config.Config
	logger       *slog.Logger

	locks keyedMutex
}

// NewRunner wires the batch runner.
func NewRunner(ids *identity.Store, ledger *coverage.Ledger, orchestrator *coverage.Orchestrator, cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		ids:          ids,
		ledger:       ledger,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "batch"),
	}
}

// Run executes passes until the population is settled, progress plateaus, or
// the context is cancelled. Cancellation between identifiers is clean: items
// already dispatched finish, nothing new starts.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	started := time.Now()
	ctx = sources.WithRunID(ctx, report.RunID)
	logger := r.logger.With(logging.String(logging.FieldRunID, report.RunID))
	logger.InfoContext(ctx, "batch run started",
		logging.String(logging.FieldCollection, opts.Collection),
		logging.Bool("force_refresh", opts.ForceRefresh))

	force := opts.ForceRefresh
	stalePasses := 0
	for {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(started)
			return report, err
		}

		workset, err := r.selectWorkset(ctx, opts.Collection, force)
		if err != nil {
			report.Elapsed = time.Since(started)
			return report, err
		}
		if len(workset) == 0 {
			break
		}

		report.Passes++
		settled := r.runPass(ctx, workset, opts.Collection, force, &report, logger)
		force = false

		logger.InfoContext(ctx, "batch pass finished",
			logging.Int("pass", report.Passes),
			logging.Int("workset", len(workset)),
			logging.Int("settled", settled))

		if settled == 0 {
			stalePasses++
			if stalePasses >= r.cfg.Batch.PlateauPasses {
				logger.WarnContext(ctx, "batch run plateaued",
					logging.Int("stale_passes", stalePasses))
				break
			}
		} else {
			stalePasses = 0
		}
	}

	report.Elapsed = time.Since(started)
	logger.InfoContext(ctx, "batch run finished",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("transient", report.Transient),
		logging.Int("persistent", report.Persistent),
		logging.Int("passes", report.Passes),
		logging.Duration("elapsed", report.Elapsed))
	return report, nil
}

// selectWorkset walks the identifier pages and picks up to the configured
// workset size of identifiers that still have at least one provider worth
// running.
func (r *Runner) selectWorkset(ctx context.Context, collection string, force bool) ([]identity.Identifier, error) {
	var workset []identity.Identifier
	afterID := int64(0)
	for len(workset) < r.cfg.Batch.WorksetSize {
		page, lastID, err := r.ids.Page(ctx, afterID, r.cfg.Batch.WorksetSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		afterID = lastID

		for _, id := range page {
			needed, err := r.needsWork(ctx, id, collection, force)
			if err != nil {
				return nil, err
			}
			if needed {
				workset = append(workset, id)
				if len(workset) == r.cfg.Batch.WorksetSize {
					break
				}
			}
		}
	}
	return workset, nil
}

func (r *Runner) needsWork(ctx context.Context, id identity.Identifier, collection string, force bool) (bool, error) {
	for _, provider := range r.orchestrator.ProvidersFor(id, collection) {
		info := provider.Info()
		for range r.ledger.MissingCoverage(ctx, []identity.Identifier{id}, info.Source, info.Operation, force) {
			return true, nil
		}
	}
	return false, nil
}

// runPass dispatches one workset to the worker pool and returns how many
// outcomes settled (success or persistent). Settled outcomes are what counts
// as progress; transient churn alone plateaus the run.
func (r *Runner) runPass(ctx context.Context, workset []identity.Identifier, collection string, force bool, report *Report, logger *slog.Logger) int {
	workers := r.cfg.Batch.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		settled int
		wg      sync.WaitGroup
	)
	items := make(chan identity.Identifier)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range items {
				succeeded, transient, persistent := r.runItem(ctx, id, collection, force, logger)
				mu.Lock()
				report.Succeeded += succeeded
				report.Transient += transient
				report.Persistent += persistent
				settled += succeeded + persistent
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, id := range workset {
		select {
		case <-ctx.Done():
			break dispatch
		case items <- id:
		}
	}
	close(items)
	wg.Wait()
	return settled
}

// runItem resolves one identifier under its keyed lock and an item timeout.
// The identifier is the unit of isolation: one bad item cannot stall or fail
// the rest of the pass.
func (r *Runner) runItem(ctx context.Context, id identity.Identifier, collection string, force bool, logger *slog.Logger) (succeeded, transient, persistent int) {
	unlock := r.locks.lock(id.String())
	defer unlock()

	itemCtx := sources.WithIdentifier(ctx, id.String())
	cancel := func() {}
	if r.cfg.Batch.ItemTimeoutSeconds > 0 {
		itemCtx, cancel = context.WithTimeout(itemCtx, time.Duration(r.cfg.Batch.ItemTimeoutSeconds)*time.Second)
	}
	defer cancel()

	resolution, err := r.orchestrator.Resolve(itemCtx, id, collection, force)
	for _, outcome := range resolution.Outcomes {
		switch outcome.Status {
		case coverage.StatusSuccess:
			succeeded++
		case coverage.StatusTransient:
			transient++
		case coverage.StatusPersistent:
			persistent++
		}
	}
	if err != nil && !resolution.Failed() {
		// Timeouts and cancellations land here; the item stays eligible
		// for the next pass.
		if errors.Is(err, context.DeadlineExceeded) {
			logger.WarnContext(ctx, "item timed out",
				logging.String(logging.FieldIdentifier, id.String()))
		} else if !errors.Is(err, context.Canceled) {
			logger.ErrorContext(ctx, "item failed",
				logging.String(logging.FieldIdentifier, id.String()),
				logging.Error(err))
		}
	}
	return succeeded, transient, persistent
}

// keyedMutex serializes work per key while different keys proceed in
// parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

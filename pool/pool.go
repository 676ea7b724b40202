// Package pool implements the waiting pool: the derived set of registered,
// unassigned participants, re-evaluated in response to events that may have
// changed their eligibility (a freed slot, a new session, an attribute
// update).
//
// The pool holds no membership state of its own. Waiting participants are
// computed from coordinator state on every rescan, so the pool can never
// disagree with the assignment core about who is waiting.
package pool

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/groupmesh/coordinator"
	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/logging"
)

// Options configures a Pool.
type Options struct {
	// Parallelism bounds how many waiting participants one rescan evaluates
	// concurrently. Defaults to the coordinator's configured value.
	Parallelism int

	// Logger receives rescan logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithParallelism sets the rescan worker bound.
func WithParallelism(n int) func(o *Options) {
	return func(o *Options) { o.Parallelism = n }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Pool re-evaluates waiting participants against current session state.
type Pool struct {
	coord       *coordinator.Coordinator
	parallelism int
	logger      logging.Logger
}

// New creates a pool over the coordinator's registries.
func New(coord *coordinator.Coordinator, optFns ...func(o *Options)) *Pool {
	opts := Options{
		Parallelism: coord.Config().RescanParallelism,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Pool{coord: coord, parallelism: opts.Parallelism, logger: opts.Logger}
}

// Waiting returns the batch's waiting participants in arrival order.
func (p *Pool) Waiting(batchID string) []*core.Participant {
	return p.coord.Waiting(batchID)
}

// RescanOptions configures a single rescan pass.
type RescanOptions struct {
	// Skip lists participant IDs excluded from this pass. A detach trigger
	// excludes the vacating participant so already-waiting members claim the
	// freed slot before it can win it back.
	Skip []string
}

// WithSkip excludes the given participants from one rescan pass.
func WithSkip(ids ...string) func(o *RescanOptions) {
	return func(o *RescanOptions) { o.Skip = append(o.Skip, ids...) }
}

// Rescan re-evaluates the batch's waiting participants, minus any the
// options skip, and attempts placement. Group-based batches run bracket
// formation instead of individual placement. It returns how many
// participants were placed.
//
// Rescans are idempotent with respect to events: a participant re-deferred
// with an unchanged reason produces no duplicate deferral event, so a rescan
// over an unchanged pool is silent.
func (p *Pool) Rescan(ctx context.Context, batchID, trigger string, optFns ...func(o *RescanOptions)) (int, error) {
	start := time.Now()

	var opts RescanOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, id := range opts.Skip {
		skip[id] = struct{}{}
	}

	b, err := p.coord.Batch(batchID)
	if err != nil {
		return 0, err
	}
	if b.State() != core.BatchRunning {
		return 0, nil
	}

	if b.Config().Strategy == core.StrategyBracketedGroup {
		created, err := p.coord.FormBrackets(ctx, batchID)
		if err != nil {
			return 0, err
		}
		placed := 0
		for _, s := range created {
			placed += s.Occupancy()
		}
		p.logger.Info("waiting pool rescan completed",
			"batch_id", batchID, "trigger", trigger, "placed", placed, "duration", time.Since(start))
		return placed, nil
	}

	waiting := p.coord.Waiting(batchID)
	if len(waiting) == 0 {
		return 0, nil
	}

	var placed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, candidate := range waiting {
		id := candidate.ID
		if _, ok := skip[id]; ok {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := p.coord.TryAssign(gctx, id)
			if err != nil {
				// One participant's failure must not abort the rescan;
				// they stay waiting and the next trigger retries.
				p.logger.Warn("rescan placement failed", "participant_id", id, "error", err)
				return nil
			}
			if res.Outcome == coordinator.OutcomeAssigned {
				placed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(placed.Load()), err
	}

	p.logger.Info("waiting pool rescan completed",
		"batch_id", batchID, "trigger", trigger, "candidates", len(waiting),
		"placed", placed.Load(), "duration", time.Since(start))
	return int(placed.Load()), nil
}

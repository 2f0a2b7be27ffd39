package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wasvm/wasm-acceptor/corpus"
	"github.com/wasvm/wasm-acceptor/types"
)

// EmitFunc receives group results. It is always called from the goroutine
// that called Sweep, in group name order.
type EmitFunc func(result *types.GroupResult)

// Sweeper visits every runnable group of a corpus.
type Sweeper struct {
	executor    GroupExecutor
	concurrency int
	log         log.Logger
	tracer      trace.Tracer
}

// NewSweeper creates a sweeper. Concurrency below 2 runs groups strictly one
// after another.
func NewSweeper(executor GroupExecutor, concurrency int, logger log.Logger) (*Sweeper, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", concurrency)
	}
	if concurrency == 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	if concurrency > MaxReasonableConcurrency {
		logger.Warn("Very high concurrency requested", "concurrency", concurrency,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}
	return &Sweeper{
		executor:    executor,
		concurrency: concurrency,
		log:         logger.New("component", "sweeper"),
		tracer:      otel.Tracer("wasm-acceptor sweep"),
	}, nil
}

// Sweep runs every group that has a manifest, sorted by name, and passes each
// result to emit. Groups without a manifest are skipped silently.
//
// On context cancellation no new groups are started, running engines are
// killed, and Sweep returns the context error after emitting only the
// results that completed before the cancellation.
func (s *Sweeper) Sweep(ctx context.Context, groups []types.TestGroup, emit EmitFunc) error {
	runnable := corpus.Runnable(groups)
	corpus.SortGroups(runnable)

	ctx, span := s.tracer.Start(ctx, "sweep")
	defer span.End()
	span.SetAttributes(attribute.Int("groups", len(runnable)), attribute.Int("concurrency", s.concurrency))

	start := time.Now()
	s.log.Info("Starting sweep", "groups", len(runnable), "skipped", len(groups)-len(runnable), "concurrency", s.concurrency)

	var err error
	if s.concurrency <= 1 {
		err = s.sweepSequential(ctx, runnable, emit)
	} else {
		err = s.sweepParallel(ctx, runnable, emit)
	}

	if err != nil {
		s.log.Warn("Sweep interrupted", "err", err, "duration", time.Since(start))
		span.RecordError(err)
		return err
	}
	s.log.Info("Sweep complete", "groups", len(runnable), "duration", time.Since(start))
	return nil
}

func (s *Sweeper) sweepSequential(ctx context.Context, groups []types.TestGroup, emit EmitFunc) error {
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := s.execute(ctx, g)
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(result)
	}
	return ctx.Err()
}

type indexedResult struct {
	index  int
	result *types.GroupResult
}

// sweepParallel executes groups on a bounded pool and releases results
// through a reorder buffer so that emission order matches the sequential run.
func (s *Sweeper) sweepParallel(ctx context.Context, groups []types.TestGroup, emit EmitFunc) error {
	results := make(chan indexedResult, len(groups))

	go func() {
		defer close(results)
		p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)
		for i, g := range groups {
			if ctx.Err() != nil {
				break
			}
			p.Go(func(ctx context.Context) error {
				// Go blocks while the pool is full, so cancellation may land
				// between dispatch and the slot freeing up.
				if ctx.Err() != nil {
					return nil
				}
				results <- indexedResult{index: i, result: s.execute(ctx, g)}
				return nil
			})
		}
		_ = p.Wait()
	}()

	pending := make(map[int]*types.GroupResult)
	next := 0
	for r := range results {
		if ctx.Err() != nil {
			// Drain so the workers can exit; nothing more is emitted.
			continue
		}
		pending[r.index] = r.result
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			emit(res)
			next++
		}
	}
	return ctx.Err()
}

func (s *Sweeper) execute(ctx context.Context, g types.TestGroup) *types.GroupResult {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("group %s", g.Name))
	defer span.End()

	result := s.executor.Execute(ctx, g)
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.String("reason", result.Reason),
	)
	return result
}

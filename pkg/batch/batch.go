// Package batch executes a queue of independent fetch specifications under a
// configurable concurrency policy and aggregates the outcomes into one
// result, isolating failures per item: one bad key never loses the rest of
// the batch.
package batch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// Runner resolves and executes a single spec. The client facade implements
// this; tests substitute fakes.
type Runner interface {
	ResolveAndFetch(ctx context.Context, spec series.FetchSpec) series.SingleResult
}

// Mode selects how the queue is executed.
type Mode int

const (
	// Sequential runs specs strictly in queue order. Ordering only: a
	// failed item does not stop the items behind it.
	Sequential Mode = iota
	// Parallel dispatches specs concurrently, bounded by MaxConcurrency.
	Parallel
)

// DefaultMaxConcurrency bounds parallel fan-out against the remote service
// when the caller does not choose a bound.
const DefaultMaxConcurrency = 8

// Item is one keyed entry in the queue. Keys are caller-supplied, typically
// the site name.
type Item struct {
	Key  string
	Spec series.FetchSpec
}

// Options configure one Run call.
type Options struct {
	Mode           Mode
	MaxConcurrency int           // Parallel only; DefaultMaxConcurrency when <= 0
	ItemTimeout    time.Duration // per-spec budget; 0 means none
}

// Orchestrator executes batches against a Runner.
type Orchestrator struct {
	runner Runner
	logger *logrus.Logger
}

// NewOrchestrator creates an Orchestrator. A nil logger disables logging.
func NewOrchestrator(runner Runner, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Orchestrator{runner: runner, logger: logger}
}

// Run executes every item and always returns a complete Result: one entry
// per submitted key regardless of faults, timeouts or cancellation, ordered
// by submission. Run itself never fails; failures live inside the entries.
func (o *Orchestrator) Run(ctx context.Context, items []Item, opts Options) *Result {
	outcomes := make([]series.SingleResult, len(items))

	switch opts.Mode {
	case Parallel:
		limit := opts.MaxConcurrency
		if limit <= 0 {
			limit = DefaultMaxConcurrency
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, item := range items {
			i, item := i, item
			g.Go(func() error {
				outcomes[i] = o.runOne(gctx, item, opts.ItemTimeout)
				return nil
			})
		}
		// Workers never return errors; Wait is purely the join point.
		_ = g.Wait()
	default:
		for i, item := range items {
			outcomes[i] = o.runOne(ctx, item, opts.ItemTimeout)
		}
	}

	result := newResult()
	for i, item := range items {
		result.put(item.Key, outcomes[i])
	}
	return result
}

// runOne executes a single item with full fault isolation: panics, errors,
// timeouts and cancellation all come back as a failed SingleResult.
func (o *Orchestrator) runOne(ctx context.Context, item Item, timeout time.Duration) (out series.SingleResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{"key": item.Key}).
				Errorf("batch item panicked: %v", r)
			out = series.Fail("internal fault: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return series.Fail("cancelled before start: %v", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := o.runner.ResolveAndFetch(ctx, item.Spec)
	if !res.Success && ctx.Err() != nil {
		// Distinguish a cancelled in-flight item from an ordinary failure.
		res = series.Fail("cancelled: %v", ctx.Err()).WithMeta("partial_message", res.Message)
	}
	return res
}

// MergedRow is one row of the flattened batch table: a successful entry's
// point tagged with its originating key.
type MergedRow struct {
	Key    string
	Site   string
	Time   time.Time
	Values map[string]series.Measurement
}

// Merge flattens all successful entries into one table, key column included.
// Rows from failed keys are excluded entirely, not represented as nulls.
// The input Result is read-only to this transform.
func Merge(r *Result) []MergedRow {
	var rows []MergedRow
	for _, key := range r.Keys() {
		res, _ := r.Get(key)
		if !res.Success {
			continue
		}
		for i := 0; i < res.Series.Len(); i++ {
			p := res.Series.At(i)
			rows = append(rows, MergedRow{
				Key:    key,
				Site:   res.Series.Site(),
				Time:   p.Time,
				Values: p.Values,
			})
		}
	}
	return rows
}

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

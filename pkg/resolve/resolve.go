// Package resolve maps a requested temporal resolution onto a concrete,
// ordered fallback plan and walks that plan against the fetch port.
//
// The plan is data, not control flow: PlanFor can be inspected and tested
// without touching the network, and the Runner walks it one step at a time,
// moving to the next coarser resolution only on a soft-empty response.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hydrodata-kr/waterlink/pkg/fetch"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// hourlyMaxSpan is the officially documented upper bound for hourly queries.
// The service has been observed answering hourly up to roughly a year, but
// that behavior is undocumented and unstable, so the documented six months
// is what triggers skipping hourly under auto resolution.
const hourlyMaxSpan = 183 * 24 * time.Hour

// Plan is an ordered sequence of resolutions to attempt.
type Plan []series.Resolution

func (p Plan) String() string {
	names := make([]string, len(p))
	for i, r := range p {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}

// PlanFor builds the fallback plan for one spec.
//
// Explicit requests produce a single-step plan with no fallback, except that
// water-quality facilities only support monthly: asking them for anything
// finer is rejected up front rather than sent to the service.
// Auto requests order steps finest-first, skipping hourly for spans beyond
// the documented six-month bound.
func PlanFor(span time.Duration, req series.ResolutionRequest, facility series.FacilityType) (Plan, error) {
	if facility == series.FacilityWaterQuality {
		if res, ok := req.Explicit(); ok && res != series.ResolutionMonthly {
			return nil, fmt.Errorf("%w: %s only supports monthly, got %s",
				fetch.ErrUnsupportedResolution, facility, res)
		}
		return Plan{series.ResolutionMonthly}, nil
	}

	if res, ok := req.Explicit(); ok {
		return Plan{res}, nil
	}

	if span > hourlyMaxSpan {
		return Plan{series.ResolutionDaily, series.ResolutionMonthly}, nil
	}
	return Plan{series.ResolutionHourly, series.ResolutionDaily, series.ResolutionMonthly}, nil
}

// Runner walks resolution plans against a fetch port.
type Runner struct {
	fetcher fetch.Fetcher
	now     func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source used to anchor relative lookbacks.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner on top of the given fetch port.
func NewRunner(fetcher fetch.Fetcher, opts ...RunnerOption) *Runner {
	r := &Runner{fetcher: fetcher, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates the spec, builds its plan and walks it. It returns the first
// non-empty series together with the resolutions attempted so far. A hard
// error aborts the walk immediately; soft-empty responses advance to the
// next step; an exhausted plan returns an error naming every resolution
// tried.
func (r *Runner) Run(ctx context.Context, spec series.FetchSpec) (series.TimeSeries, []series.Resolution, error) {
	if err := spec.Validate(); err != nil {
		return series.TimeSeries{}, nil, fmt.Errorf("%w: %w", fetch.ErrInvalidSpec, err)
	}

	now := r.now()
	start, end := spec.TimeRange(now)

	plan, err := PlanFor(spec.Span(now), spec.Resolution, spec.Facility)
	if err != nil {
		return series.TimeSeries{}, nil, err
	}

	var attempted []series.Resolution
	for _, res := range plan {
		if err := ctx.Err(); err != nil {
			return series.TimeSeries{}, attempted, err
		}
		attempted = append(attempted, res)

		ts, err := r.fetcher.Fetch(ctx, fetch.Request{
			Site:         spec.Site,
			Facility:     spec.Facility,
			Measurements: spec.Measurements,
			Start:        start,
			End:          end,
			Resolution:   res,
		})
		if err != nil {
			// Hard or transport failure: surface unchanged, never
			// mask it behind a coarser retry.
			return series.TimeSeries{}, attempted, err
		}
		if !ts.IsEmpty() {
			return ts, attempted, nil
		}
	}

	return series.TimeSeries{}, attempted, fmt.Errorf(
		"no data for %s/%s after trying resolutions %s", spec.Facility, spec.Site, Plan(attempted))
}

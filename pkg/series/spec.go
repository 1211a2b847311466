package series

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// FetchSpec describes one fetch against the remote service. It is a plain
// value: the With* helpers return modified copies, so a spec handed to the
// orchestrator can never be mutated behind its back.
type FetchSpec struct {
	Site         string
	Facility     FacilityType
	Measurements []string

	// Exactly one of the absolute range (Start/End) or the relative
	// lookback (Days) must be set.
	Start time.Time
	End   time.Time
	Days  int

	Resolution ResolutionRequest
}

var (
	ErrNoTimeRange   = errors.New("fetch spec: either an absolute range or a relative day count is required")
	ErrBothTimeRange = errors.New("fetch spec: absolute range and relative day count are mutually exclusive")
)

// Validate checks the spec's structural invariants.
func (s FetchSpec) Validate() error {
	if s.Site == "" {
		return errors.New("fetch spec: site name is required")
	}
	if !s.Facility.Valid() {
		return fmt.Errorf("fetch spec: unknown facility type %q", s.Facility)
	}
	if len(s.Measurements) == 0 {
		return errors.New("fetch spec: at least one measurement item is required")
	}
	if !s.Resolution.Valid() {
		return fmt.Errorf("fetch spec: invalid resolution request %q", s.Resolution)
	}
	hasRange := !s.Start.IsZero() || !s.End.IsZero()
	hasDays := s.Days > 0
	switch {
	case hasRange && hasDays:
		return ErrBothTimeRange
	case !hasRange && !hasDays:
		return ErrNoTimeRange
	case hasRange && (s.Start.IsZero() || s.End.IsZero()):
		return errors.New("fetch spec: absolute range needs both start and end")
	case hasRange && !s.Start.Before(s.End):
		return errors.New("fetch spec: start must be before end")
	}
	return nil
}

// TimeRange resolves the spec to a concrete [start, end] window. A relative
// lookback is anchored at the supplied now.
func (s FetchSpec) TimeRange(now time.Time) (start, end time.Time) {
	if s.Days > 0 {
		return now.Add(-time.Duration(s.Days) * 24 * time.Hour), now
	}
	return s.Start, s.End
}

// Span returns the length of the requested window.
func (s FetchSpec) Span(now time.Time) time.Duration {
	start, end := s.TimeRange(now)
	return end.Sub(start)
}

// WithSite returns a copy of the spec pointing at a different site.
func (s FetchSpec) WithSite(site string) FetchSpec {
	c := s.clone()
	c.Site = site
	return c
}

// WithDays returns a copy using a relative lookback instead of any absolute range.
func (s FetchSpec) WithDays(days int) FetchSpec {
	c := s.clone()
	c.Start, c.End = time.Time{}, time.Time{}
	c.Days = days
	return c
}

// WithRange returns a copy using an absolute range instead of any relative lookback.
func (s FetchSpec) WithRange(start, end time.Time) FetchSpec {
	c := s.clone()
	c.Days = 0
	c.Start, c.End = start, end
	return c
}

// WithResolution returns a copy with a different resolution request.
func (s FetchSpec) WithResolution(r ResolutionRequest) FetchSpec {
	c := s.clone()
	c.Resolution = r
	return c
}

// WithMeasurements returns a copy requesting a different set of items.
func (s FetchSpec) WithMeasurements(items ...string) FetchSpec {
	c := s.clone()
	c.Measurements = append([]string(nil), items...)
	return c
}

func (s FetchSpec) clone() FetchSpec {
	c := s
	c.Measurements = append([]string(nil), s.Measurements...)
	return c
}

// SingleResult is the outcome of one fully resolved fetch: either a non-empty
// series, or a failure with a human-readable message. Metadata carries
// diagnostics such as the request ID and every resolution attempted.
type SingleResult struct {
	Success  bool
	Series   TimeSeries
	Message  string
	Metadata map[string]string
}

// Ok wraps a successfully fetched series.
func Ok(ts TimeSeries) SingleResult {
	return SingleResult{Success: true, Series: ts}
}

// Fail wraps a failure message. The series stays empty by contract.
func Fail(format string, args ...any) SingleResult {
	return SingleResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// WithMeta returns a copy of the result with one metadata entry added.
func (r SingleResult) WithMeta(key, value string) SingleResult {
	meta := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta[key] = value
	r.Metadata = meta
	return r
}

// MetaKeys returns the metadata keys in sorted order.
func (r SingleResult) MetaKeys() []string {
	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

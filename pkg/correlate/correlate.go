// Package correlate finds the lag at which a downstream series best tracks
// an upstream one, by scanning candidate lags and computing the Pearson
// statistic over each lag's aligned overlap.
package correlate

import (
	"errors"
	"math"
	"time"

	"github.com/hydrodata-kr/waterlink/pkg/align"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// DefaultStep is the lag scan step when the caller does not supply one.
const DefaultStep = time.Hour

// ErrInsufficientOverlap means no candidate lag produced at least two
// overlapping samples, so no statistic is defined anywhere in the range.
var ErrInsufficientOverlap = errors.New("insufficient overlapping data in lag search range")

// Candidate is one evaluated lag. Statistic is NaN when fewer than two
// samples overlapped or the overlap had zero variance on either side.
type Candidate struct {
	Lag        time.Duration
	Statistic  float64
	SampleSize int
}

// Defined reports whether the candidate carries a usable statistic.
func (c Candidate) Defined() bool {
	return !math.IsNaN(c.Statistic)
}

// Result is the outcome of a lag scan: the winning candidate plus the full
// candidate list for caller-side diagnostics.
type Result struct {
	Lag        time.Duration
	Statistic  float64
	SampleSize int
	Candidates []Candidate
}

// Scan enumerates lags from 0 to maxLag inclusive, stepping by step
// (DefaultStep when step <= 0), aligns the pair at each lag and selects the
// candidate with the largest absolute statistic. Ties go to the smallest
// lag, which is both the physically plausible choice and deterministic.
// Only non-negative lags are scanned: the model assumes downstream events
// follow upstream ones.
func Scan(up, down series.TimeSeries, upItem, downItem string, maxLag, step time.Duration) (Result, error) {
	if step <= 0 {
		step = DefaultStep
	}

	var candidates []Candidate
	for lag := time.Duration(0); lag <= maxLag; lag += step {
		pair := align.Align(up, down, upItem, downItem, lag)
		candidates = append(candidates, Candidate{
			Lag:        lag,
			Statistic:  pearson(pair.Overlap),
			SampleSize: len(pair.Overlap),
		})
	}

	best, ok := pick(candidates)
	if !ok {
		return Result{}, ErrInsufficientOverlap
	}
	return Result{
		Lag:        best.Lag,
		Statistic:  best.Statistic,
		SampleSize: best.SampleSize,
		Candidates: candidates,
	}, nil
}

// pick applies the selection rule over the full candidate set: maximum
// absolute statistic, smallest lag on ties, undefined candidates excluded.
func pick(candidates []Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		if !c.Defined() {
			continue
		}
		switch {
		case !found:
			best, found = c, true
		case math.Abs(c.Statistic) > math.Abs(best.Statistic):
			best = c
		case math.Abs(c.Statistic) == math.Abs(best.Statistic) && c.Lag < best.Lag:
			best = c
		}
	}
	return best, found
}

// pearson computes the Pearson correlation coefficient over the overlap.
// Returns NaN for fewer than two samples or zero variance on either side.
func pearson(rows []align.Row) float64 {
	n := float64(len(rows))
	if n < 2 {
		return math.NaN()
	}

	var sumX, sumY float64
	for _, r := range rows {
		sumX += r.Upstream
		sumY += r.Downstream
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for _, r := range rows {
		dx, dy := r.Upstream-meanX, r.Downstream-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// Package align intersects two independently fetched series onto a common
// timestamp index, optionally shifted by a lag, for one measurement pair.
package align

import (
	"time"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// Row is one aligned observation: a shared timestamp (in the upstream
// series' frame) with non-null readings on both sides.
type Row struct {
	Time       time.Time
	Upstream   float64
	Downstream float64
}

// Pair is the result of aligning a downstream series against an upstream one.
// An empty Overlap is a legitimate outcome, not an error: the correlation
// engine treats it as a zero-sample candidate.
type Pair struct {
	Upstream   series.TimeSeries
	Downstream series.TimeSeries
	Lag        time.Duration
	Overlap    []Row
}

// Align shifts every downstream timestamp backward by lag, intersects the
// timestamp sets and keeps only rows where both measurements are present.
// A positive lag expresses that downstream events are expected lag after
// the matching upstream event. Rows with a null on either side are dropped,
// never imputed.
func Align(up, down series.TimeSeries, upItem, downItem string, lag time.Duration) Pair {
	pair := Pair{Upstream: up, Downstream: down, Lag: lag}

	downAt := make(map[int64]series.Measurement, down.Len())
	for i := 0; i < down.Len(); i++ {
		p := down.At(i)
		downAt[p.Time.Add(-lag).UnixNano()] = p.Value(downItem)
	}

	for i := 0; i < up.Len(); i++ {
		p := up.At(i)
		u := p.Value(upItem)
		if u.Value.IsNull() {
			continue
		}
		d, ok := downAt[p.Time.UnixNano()]
		if !ok || d.Value.IsNull() {
			continue
		}
		pair.Overlap = append(pair.Overlap, Row{
			Time:       p.Time,
			Upstream:   u.Value.Float(),
			Downstream: d.Value.Float(),
		})
	}

	// Upstream points are strictly ascending, so the overlap is too.
	return pair
}

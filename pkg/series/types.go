// Package series defines the data model shared by every waterlink component:
// facility and resolution vocabularies, time-series points and series, fetch
// specifications and single-fetch results.
//
// Series are immutable once constructed: every accessor returns copies or
// read-only views, and construction validates ordering and timestamp
// uniqueness up front so downstream alignment code never has to.
package series

import (
	"fmt"
	"time"
)

// FacilityType identifies the kind of monitoring station a series belongs to.
type FacilityType string

const (
	FacilityDam          FacilityType = "dam"
	FacilityWaterLevel   FacilityType = "water_level"
	FacilityRainfall     FacilityType = "rainfall"
	FacilityWeather      FacilityType = "weather"
	FacilityWaterQuality FacilityType = "water_quality"
)

// Valid reports whether the facility type is part of the service vocabulary.
func (f FacilityType) Valid() bool {
	switch f {
	case FacilityDam, FacilityWaterLevel, FacilityRainfall, FacilityWeather, FacilityWaterQuality:
		return true
	}
	return false
}

// Resolution is the temporal granularity of a series. The string values are
// the wire keys the remote service understands.
type Resolution string

const (
	ResolutionHourly  Resolution = "h_1"
	ResolutionDaily   Resolution = "d_1"
	ResolutionMonthly Resolution = "mt_1"
)

func (r Resolution) String() string { return string(r) }

// ResolutionRequest is what a caller asks for: an explicit resolution or
// automatic selection with fallback.
type ResolutionRequest string

const (
	RequestHourly  ResolutionRequest = "hourly"
	RequestDaily   ResolutionRequest = "daily"
	RequestMonthly ResolutionRequest = "monthly"
	RequestAuto    ResolutionRequest = "auto"
)

// Explicit returns the concrete resolution named by the request, or false for
// RequestAuto.
func (r ResolutionRequest) Explicit() (Resolution, bool) {
	switch r {
	case RequestHourly:
		return ResolutionHourly, true
	case RequestDaily:
		return ResolutionDaily, true
	case RequestMonthly:
		return ResolutionMonthly, true
	}
	return "", false
}

// Valid reports whether the request is part of the accepted vocabulary.
func (r ResolutionRequest) Valid() bool {
	if r == RequestAuto {
		return true
	}
	_, ok := r.Explicit()
	return ok
}

// Point is a single observation instant carrying one measurement per
// requested item.
type Point struct {
	Time   time.Time
	Values map[string]Measurement
}

// Value returns the named measurement, or a null measurement if the item was
// not reported at this instant.
func (p Point) Value(item string) Measurement {
	if m, ok := p.Values[item]; ok {
		return m
	}
	return Measurement{Value: Null()}
}

// TimeSeries is an ordered, immutable sequence of points for one facility.
// Resolution records the granularity the data was actually obtained at,
// which can be coarser than what the caller requested when fallback ran.
type TimeSeries struct {
	site       string
	facility   FacilityType
	resolution Resolution
	points     []Point
}

// New constructs a TimeSeries, validating that points are strictly ascending
// by timestamp. Duplicate timestamps are a construction error, not a
// dedupe-silently case: the remote service never legitimately produces them.
func New(site string, facility FacilityType, resolution Resolution, points []Point) (TimeSeries, error) {
	for i := 1; i < len(points); i++ {
		if !points[i-1].Time.Before(points[i].Time) {
			return TimeSeries{}, fmt.Errorf(
				"series %q: points must be strictly ascending, got %s then %s",
				site, points[i-1].Time.Format(time.RFC3339), points[i].Time.Format(time.RFC3339),
			)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return TimeSeries{site: site, facility: facility, resolution: resolution, points: cp}, nil
}

// Empty constructs a zero-point series carrying only identity tags.
func Empty(site string, facility FacilityType, resolution Resolution) TimeSeries {
	return TimeSeries{site: site, facility: facility, resolution: resolution}
}

func (s TimeSeries) Site() string           { return s.site }
func (s TimeSeries) Facility() FacilityType { return s.facility }
func (s TimeSeries) Resolution() Resolution { return s.resolution }
func (s TimeSeries) Len() int               { return len(s.points) }
func (s TimeSeries) IsEmpty() bool          { return len(s.points) == 0 }

// At returns the i-th point in timestamp order.
func (s TimeSeries) At(i int) Point { return s.points[i] }

// Points returns a copy of the underlying points.
func (s TimeSeries) Points() []Point {
	cp := make([]Point, len(s.points))
	copy(cp, s.points)
	return cp
}

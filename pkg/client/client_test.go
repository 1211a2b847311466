package client_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrodata-kr/waterlink/pkg/batch"
	"github.com/hydrodata-kr/waterlink/pkg/client"
	"github.com/hydrodata-kr/waterlink/pkg/fetch"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// stationFetcher simulates the remote service: per-site hourly data with a
// configurable lag between an upstream and a downstream station.
type stationFetcher struct {
	data   map[string][]series.Point // keyed by site
	broken map[string]error
	empty  map[series.Resolution]bool
}

func (f *stationFetcher) Fetch(_ context.Context, req fetch.Request) (series.TimeSeries, error) {
	if err, ok := f.broken[req.Site]; ok {
		return series.TimeSeries{}, err
	}
	if f.empty[req.Resolution] {
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	}
	points, ok := f.data[req.Site]
	if !ok {
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	}
	return series.New(req.Site, req.Facility, req.Resolution, points)
}

func hourlyPoints(item string, start time.Time, values []float64) []series.Point {
	points := make([]series.Point, len(values))
	for i, v := range values {
		points[i] = series.Point{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Values: map[string]series.Measurement{item: {Value: series.NullFloat(v)}},
		}
	}
	return points
}

func newTestClient(t *testing.T, f fetch.Fetcher) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{},
		client.WithFetcher(f),
		client.WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return c
}

func damSpec(site string) series.FetchSpec {
	return series.FetchSpec{
		Site:         site,
		Facility:     series.FacilityDam,
		Measurements: []string{"release"},
		Days:         7,
		Resolution:   series.RequestAuto,
	}
}

func TestResolveAndFetchSuccessMetadata(t *testing.T) {
	f := &stationFetcher{data: map[string][]series.Point{
		"Soyang Dam": hourlyPoints("release", testNow.Add(-6*time.Hour), []float64{1, 2, 3}),
	}}
	c := newTestClient(t, f)

	res := c.ResolveAndFetch(context.Background(), damSpec("Soyang Dam"))

	require.True(t, res.Success)
	assert.Equal(t, 3, res.Series.Len())
	assert.Equal(t, "h_1", res.Metadata["resolution"])
	assert.Equal(t, "h_1", res.Metadata["attempted_resolutions"])
	assert.NotEmpty(t, res.Metadata["request_id"])
}

func TestResolveAndFetchFallbackMetadata(t *testing.T) {
	f := &stationFetcher{
		data: map[string][]series.Point{
			"Soyang Dam": hourlyPoints("release", testNow.Add(-6*time.Hour), []float64{1, 2, 3}),
		},
		empty: map[series.Resolution]bool{
			series.ResolutionHourly: true,
			series.ResolutionDaily:  true,
		},
	}
	c := newTestClient(t, f)

	res := c.ResolveAndFetch(context.Background(), damSpec("Soyang Dam"))

	require.True(t, res.Success)
	assert.Equal(t, "mt_1", res.Metadata["resolution"])
	assert.Equal(t, "h_1, d_1, mt_1", res.Metadata["attempted_resolutions"])
}

func TestResolveAndFetchFailureIsAValue(t *testing.T) {
	f := &stationFetcher{broken: map[string]error{
		"Nowhere Dam": fmt.Errorf("%w: dam/Nowhere Dam", fetch.ErrUnknownFacility),
	}}
	c := newTestClient(t, f)

	res := c.ResolveAndFetch(context.Background(), damSpec("Nowhere Dam"))

	assert.False(t, res.Success)
	assert.True(t, res.Series.IsEmpty())
	assert.Contains(t, res.Message, "unknown facility")
}

func TestRunBatchThroughClient(t *testing.T) {
	f := &stationFetcher{
		data: map[string][]series.Point{
			"site-1": hourlyPoints("release", testNow.Add(-3*time.Hour), []float64{1, 2}),
			"site-2": hourlyPoints("release", testNow.Add(-3*time.Hour), []float64{3, 4}),
		},
		broken: map[string]error{
			"site-3": fmt.Errorf("connection reset"),
		},
	}
	c := newTestClient(t, f)

	items := []batch.Item{
		{Key: "site-1", Spec: damSpec("site-1")},
		{Key: "site-2", Spec: damSpec("site-2")},
		{Key: "site-3", Spec: damSpec("site-3")},
	}
	result := c.RunBatch(context.Background(), items, batch.Options{Mode: batch.Parallel})

	require.Equal(t, 3, result.Len())
	assert.Equal(t, []string{"site-1", "site-2", "site-3"}, result.Keys())
	assert.Equal(t, 2, result.Successes().Len())
	bad, _ := result.Get("site-3")
	assert.Contains(t, bad.Message, "connection reset")
}

func TestCorrelateEndToEnd(t *testing.T) {
	pattern := []float64{1, 3, 2, 5, 4}
	f := &stationFetcher{data: map[string][]series.Point{
		"Soyang Dam": hourlyPoints("release", testNow.Add(-24*time.Hour), pattern),
		"Uiam Dam":   hourlyPoints("level", testNow.Add(-22*time.Hour), pattern),
	}}
	c := newTestClient(t, f)

	result, err := c.Correlate(
		context.Background(),
		damSpec("Soyang Dam"),
		damSpec("Uiam Dam").WithMeasurements("level"),
		"release", "level",
		4*time.Hour, time.Hour,
	)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, result.Lag)
	assert.InDelta(t, 1.0, result.Statistic, 1e-9)
}

func TestCorrelateUpstreamFailure(t *testing.T) {
	f := &stationFetcher{broken: map[string]error{
		"Soyang Dam": fmt.Errorf("%w", fetch.ErrUnknownFacility),
	}}
	c := newTestClient(t, f)

	_, err := c.Correlate(
		context.Background(),
		damSpec("Soyang Dam"), damSpec("Uiam Dam"),
		"release", "level",
		2*time.Hour, time.Hour,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream fetch failed")
}

func TestNewRequiresServiceURL(t *testing.T) {
	_, err := client.New(client.Config{})
	assert.Error(t, err)
}

func TestNewRegistersMetricsOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := client.Config{ServiceURL: "http://localhost:9"}

	_, err := client.New(cfg, client.WithRegistry(registry))
	require.NoError(t, err)
	// A second client on the same registry must tolerate the collision.
	_, err = client.New(cfg, client.WithRegistry(registry))
	require.NoError(t, err)
}

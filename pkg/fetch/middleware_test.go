package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func request(site string) Request {
	return Request{
		Site:         site,
		Facility:     series.FacilityDam,
		Measurements: []string{"storage_rate"},
		Start:        t0,
		End:          t0.Add(24 * time.Hour),
		Resolution:   series.ResolutionHourly,
	}
}

func dataFetcher(calls *int) Fetcher {
	return FetcherFunc(func(_ context.Context, req Request) (series.TimeSeries, error) {
		*calls++
		return series.New(req.Site, req.Facility, req.Resolution, []series.Point{
			{Time: t0, Values: map[string]series.Measurement{"storage_rate": {Value: 42}}},
		})
	})
}

func TestCacheMiddleware(t *testing.T) {
	calls := 0
	mw, err := WithCache(2)
	require.NoError(t, err)
	f := Chain(dataFetcher(&calls), mw)

	ctx := context.Background()

	// Miss, then hit.
	first, err := f.Fetch(ctx, request("Soyang Dam"))
	require.NoError(t, err)
	second, err := f.Fetch(ctx, request("Soyang Dam"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Len(), second.Len())

	// A different request misses.
	_, err = f.Fetch(ctx, request("Chungju Dam"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheMiddlewareSkipsEmptyResponses(t *testing.T) {
	calls := 0
	empty := FetcherFunc(func(_ context.Context, req Request) (series.TimeSeries, error) {
		calls++
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	})
	mw, err := WithCache(2)
	require.NoError(t, err)
	f := Chain(empty, mw)

	_, _ = f.Fetch(context.Background(), request("Soyang Dam"))
	_, _ = f.Fetch(context.Background(), request("Soyang Dam"))
	assert.Equal(t, 2, calls, "empty responses are re-fetched, not cached")
}

func TestCacheMiddlewareEvictsLRU(t *testing.T) {
	calls := 0
	mw, err := WithCache(1)
	require.NoError(t, err)
	f := Chain(dataFetcher(&calls), mw)

	ctx := context.Background()
	_, _ = f.Fetch(ctx, request("a"))
	_, _ = f.Fetch(ctx, request("b")) // evicts a
	_, _ = f.Fetch(ctx, request("a"))
	assert.Equal(t, 3, calls)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	inner := FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
		seen = RequestIDFrom(ctx)
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	})
	f := Chain(inner, WithRequestID())

	_, err := f.Fetch(context.Background(), request("Soyang Dam"))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)

	// An explicit ID is preserved so fallback attempts share it.
	ctx := ContextWithRequestID(context.Background(), "batch-item-7")
	_, err = f.Fetch(ctx, request("Soyang Dam"))
	require.NoError(t, err)
	assert.Equal(t, "batch-item-7", seen)
}

func TestChainOrder(t *testing.T) {
	var trace []string
	tag := func(name string) Middleware {
		return func(next Fetcher) Fetcher {
			return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
				trace = append(trace, name)
				return next.Fetch(ctx, req)
			})
		}
	}
	inner := FetcherFunc(func(_ context.Context, req Request) (series.TimeSeries, error) {
		trace = append(trace, "transport")
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	})

	f := Chain(inner, tag("outer"), tag("middle"), tag("inner"))
	_, err := f.Fetch(context.Background(), request("Soyang Dam"))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "middle", "inner", "transport"}, trace)
}

func TestMetricsMiddlewareRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	for _, c := range Collectors() {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				t.Fatalf("registering collector: %v", err)
			}
		}
	}

	calls := 0
	f := Chain(dataFetcher(&calls), WithMetrics())
	_, err := f.Fetch(context.Background(), request("Soyang Dam"))
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	assert.Contains(t, names, "waterlink_fetch_requests_total")
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	calls := 0
	f := Chain(dataFetcher(&calls), WithLogging(logger))
	ts, err := f.Fetch(context.Background(), request("Soyang Dam"))
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Len())
	assert.Equal(t, 1, calls)
}

func TestRateLimitMiddlewareRespectsCancellation(t *testing.T) {
	calls := 0
	f := Chain(dataFetcher(&calls), WithRateLimit(0.001, 1))

	ctx := context.Background()
	_, err := f.Fetch(ctx, request("Soyang Dam"))
	require.NoError(t, err, "burst admits the first request")

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(short, request("Chungju Dam"))
	assert.Error(t, err, "second request cannot pass a drained limiter")
	assert.Equal(t, 1, calls)
}

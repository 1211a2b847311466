package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDFrom returns the request ID carried by the context, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID attaches an explicit request ID, used by the batch
// orchestrator so every fallback attempt of one item shares an ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRequestID assigns a fresh UUID to requests that do not carry one yet.
func WithRequestID() Middleware {
	return func(next Fetcher) Fetcher {
		return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
			if RequestIDFrom(ctx) == "" {
				ctx = ContextWithRequestID(ctx, uuid.NewString())
			}
			return next.Fetch(ctx, req)
		})
	}
}

// WithRateLimit throttles outbound requests. Unlike a server-side limiter
// this one waits instead of rejecting: the remote service is the scarce
// resource, not us.
func WithRateLimit(rps float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next Fetcher) Fetcher {
		return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
			if err := limiter.Wait(ctx); err != nil {
				return series.TimeSeries{}, fmt.Errorf("rate limit wait: %w", err)
			}
			return next.Fetch(ctx, req)
		})
	}
}

// WithLogging logs every fetch attempt with its outcome and duration.
func WithLogging(logger *logrus.Logger) Middleware {
	return func(next Fetcher) Fetcher {
		return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
			start := time.Now()
			ts, err := next.Fetch(ctx, req)
			fields := logrus.Fields{
				"request_id": RequestIDFrom(ctx),
				"site":       req.Site,
				"facility":   req.Facility,
				"resolution": req.Resolution.String(),
				"duration":   time.Since(start).String(),
			}
			if err != nil {
				logger.WithFields(fields).WithError(err).Warn("fetch failed")
			} else {
				fields["points"] = ts.Len()
				logger.WithFields(fields).Debug("fetch completed")
			}
			return ts, err
		})
	}
}

// Metric collectors for the fetch path. Callers register them on their own
// registry via Collectors.
var (
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterlink_fetch_requests_total",
			Help: "Fetch attempts against the remote service.",
		},
		[]string{"facility", "resolution", "outcome"},
	)
	Latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waterlink_fetch_duration_seconds",
			Help:    "Fetch round-trip latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"facility", "resolution"},
	)
)

// Collectors returns the fetch metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{Requests, Latency}
}

// WithMetrics records request counts and latencies per facility/resolution.
func WithMetrics() Middleware {
	return func(next Fetcher) Fetcher {
		return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
			start := time.Now()
			ts, err := next.Fetch(ctx, req)

			outcome := "ok"
			switch {
			case err != nil:
				outcome = "error"
			case ts.IsEmpty():
				outcome = "empty"
			}
			Requests.WithLabelValues(string(req.Facility), req.Resolution.String(), outcome).Inc()
			Latency.WithLabelValues(string(req.Facility), req.Resolution.String()).Observe(time.Since(start).Seconds())

			return ts, err
		})
	}
}

// WithCache memoizes successful non-empty responses in an in-memory LRU.
// Empty responses are not cached so a station that starts reporting is
// picked up on the next attempt.
func WithCache(size int) (Middleware, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	mw := func(next Fetcher) Fetcher {
		return FetcherFunc(func(ctx context.Context, req Request) (series.TimeSeries, error) {
			key := cacheKey(req)
			if cached, ok := cache.Get(key); ok {
				return cached.(series.TimeSeries), nil
			}
			ts, err := next.Fetch(ctx, req)
			if err == nil && !ts.IsEmpty() {
				cache.Add(key, ts)
			}
			return ts, err
		})
	}
	return mw, nil
}

// cacheKey serializes the request into a stable string key.
func cacheKey(req Request) string {
	b, _ := json.Marshal(req)
	return string(b)
}

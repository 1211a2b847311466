// Package client is the waterlink entry point: it owns the connection to the
// remote service, wires the fetch middleware chain, and exposes the three
// public operations — single resolved fetches, batches and lag correlation.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hydrodata-kr/waterlink/pkg/batch"
	"github.com/hydrodata-kr/waterlink/pkg/correlate"
	"github.com/hydrodata-kr/waterlink/pkg/fetch"
	"github.com/hydrodata-kr/waterlink/pkg/resolve"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// Config holds client construction options.
type Config struct {
	ServiceURL     string
	RequestTimeout time.Duration // per HTTP request; 30s when zero
	RateLimit      float64       // requests per second; 0 disables throttling
	RateLimitBurst int
	CacheSize      int // LRU entries; 0 disables response caching
}

// DefaultConfig mirrors the limits the service tolerates comfortably.
func DefaultConfig(serviceURL string) Config {
	return Config{
		ServiceURL:     serviceURL,
		RequestTimeout: 30 * time.Second,
		RateLimit:      5.0,
		RateLimitBurst: 10,
		CacheSize:      1000,
	}
}

// Client executes fetches against one remote service endpoint. It holds the
// connection handle explicitly; nothing in this package is process-global.
type Client struct {
	fetcher      fetch.Fetcher
	runner       *resolve.Runner
	orchestrator *batch.Orchestrator
	logger       *logrus.Logger
}

// Option customizes a Client beyond its Config.
type Option func(*options)

type options struct {
	logger     *logrus.Logger
	registry   prometheus.Registerer
	fetcher    fetch.Fetcher
	clock      func() time.Time
	extraChain []fetch.Middleware
}

// WithLogger sets the structured logger. Defaults to a quiet logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry registers the fetch metrics on the given registerer and
// enables the metrics middleware.
func WithRegistry(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// WithFetcher replaces the HTTP transport entirely, mainly for tests.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithClock overrides the time source anchoring relative lookbacks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithMiddleware appends extra middlewares to the end of the chain, closest
// to the transport.
func WithMiddleware(mws ...fetch.Middleware) Option {
	return func(o *options) { o.extraChain = append(o.extraChain, mws...) }
}

// New builds a Client. The middleware chain is request-ID, caching, rate
// limiting, logging, metrics: cache hits short-circuit before the rate
// limiter, so only real round trips are throttled, logged and counted.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logrus.New()
		o.logger.SetLevel(logrus.WarnLevel)
	}

	transport := o.fetcher
	if transport == nil {
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("client: service URL is required")
		}
		var serviceOpts []fetch.ServiceOption
		if cfg.RequestTimeout > 0 {
			serviceOpts = append(serviceOpts, fetch.WithTimeout(cfg.RequestTimeout))
		}
		transport = fetch.NewServiceFetcher(cfg.ServiceURL, serviceOpts...)
	}

	chain := []fetch.Middleware{fetch.WithRequestID()}
	if cfg.CacheSize > 0 {
		cacheMW, err := fetch.WithCache(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("client: building cache: %w", err)
		}
		chain = append(chain, cacheMW)
	}
	if cfg.RateLimit > 0 {
		chain = append(chain, fetch.WithRateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	}
	chain = append(chain, fetch.WithLogging(o.logger))
	if o.registry != nil {
		for _, c := range fetch.Collectors() {
			if err := o.registry.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					return nil, fmt.Errorf("client: registering metrics: %w", err)
				}
			}
		}
		chain = append(chain, fetch.WithMetrics())
	}
	chain = append(chain, o.extraChain...)

	c := &Client{
		fetcher: fetch.Chain(transport, chain...),
		logger:  o.logger,
	}
	c.runner = resolve.NewRunner(c.fetcher, resolve.WithClock(o.clock))
	c.orchestrator = batch.NewOrchestrator(c, o.logger)
	return c, nil
}

// ResolveAndFetch runs one spec through its resolution plan and wraps the
// outcome. Failures come back as a result value, never as an error: the
// message and metadata carry what went wrong and which resolutions were
// tried.
func (c *Client) ResolveAndFetch(ctx context.Context, spec series.FetchSpec) series.SingleResult {
	requestID := fetch.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = fetch.ContextWithRequestID(ctx, requestID)
	}

	ts, attempted, err := c.runner.Run(ctx, spec)

	res := series.Ok(ts)
	if err != nil {
		res = series.Fail("%v", err)
	}
	res = res.WithMeta("request_id", requestID).
		WithMeta("attempted_resolutions", resolve.Plan(attempted).String())
	if res.Success {
		res = res.WithMeta("resolution", ts.Resolution().String())
	}
	return res
}

// RunBatch executes a queue of keyed specs under the given options.
func (c *Client) RunBatch(ctx context.Context, items []batch.Item, opts batch.Options) *batch.Result {
	return c.orchestrator.Run(ctx, items, opts)
}

// Correlate fetches both specs, then scans lags from 0 to maxLag (step
// defaults to one hour) for the lag that best aligns the downstream
// measurement with the upstream one.
func (c *Client) Correlate(
	ctx context.Context,
	upSpec, downSpec series.FetchSpec,
	upItem, downItem string,
	maxLag, step time.Duration,
) (correlate.Result, error) {
	up := c.ResolveAndFetch(ctx, upSpec)
	if !up.Success {
		return correlate.Result{}, fmt.Errorf("upstream fetch failed: %s", up.Message)
	}
	down := c.ResolveAndFetch(ctx, downSpec)
	if !down.Success {
		return correlate.Result{}, fmt.Errorf("downstream fetch failed: %s", down.Message)
	}
	return correlate.Scan(up.Series, down.Series, upItem, downItem, maxLag, step)
}

var _ batch.Runner = (*Client)(nil)

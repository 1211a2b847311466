// Package fetch defines the port through which waterlink reaches the remote
// monitoring service, its error taxonomy, an HTTP implementation, and a set
// of composable middlewares (request IDs, rate limiting, logging, metrics,
// caching) that wrap any Fetcher.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// Request is one concrete fetch attempt: a spec pinned to an absolute time
// window and a single resolution. The resolution resolver produces these.
type Request struct {
	Site         string
	Facility     series.FacilityType
	Measurements []string
	Start        time.Time
	End          time.Time
	Resolution   series.Resolution
}

// Fetcher is the outbound port to the remote service. A nil error with an
// empty series is a valid response: the service answered but holds no data
// for the window, which the resolver treats as a fallback trigger.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (series.TimeSeries, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) (series.TimeSeries, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (series.TimeSeries, error) {
	return f(ctx, req)
}

// Hard errors: the request itself is wrong, so retrying at a coarser
// resolution cannot help and the resolver aborts its plan immediately.
var (
	ErrInvalidSpec           = errors.New("invalid fetch request")
	ErrUnknownFacility       = errors.New("unknown facility")
	ErrUnsupportedResolution = errors.New("unsupported resolution for facility")
)

// IsHard reports whether the error indicates a malformed or unanswerable
// request rather than a transient or data-availability condition.
func IsHard(err error) bool {
	return errors.Is(err, ErrInvalidSpec) ||
		errors.Is(err, ErrUnknownFacility) ||
		errors.Is(err, ErrUnsupportedResolution)
}

// Middleware decorates a Fetcher with one cross-cutting concern.
type Middleware func(Fetcher) Fetcher

// Chain applies middlewares so that the first one listed sees the request
// first, mirroring the order middlewares are listed at construction sites.
func Chain(f Fetcher, mws ...Middleware) Fetcher {
	for i := len(mws) - 1; i >= 0; i-- {
		f = mws[i](f)
	}
	return f
}

func (r Request) String() string {
	return fmt.Sprintf("%s/%s %s [%s..%s]",
		r.Facility, r.Site, r.Resolution,
		r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

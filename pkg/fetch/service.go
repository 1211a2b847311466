package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// apiResponse mirrors the JSON envelope the data service returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []struct {
		Time   time.Time                     `json:"time"`
		Values map[string]series.Measurement `json:"values"`
	} `json:"data"`
}

// ServiceFetcher fetches series over the service's HTTP JSON endpoint. It
// owns its http.Client explicitly; there is deliberately no package-level
// connection state.
type ServiceFetcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// ServiceOption customizes a ServiceFetcher.
type ServiceOption func(*ServiceFetcher)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(f *ServiceFetcher) { f.client = c }
}

// WithTimeout sets the per-request timeout. Defaults to 30s.
func WithTimeout(d time.Duration) ServiceOption {
	return func(f *ServiceFetcher) { f.timeout = d }
}

// NewServiceFetcher creates a fetcher against the given base URL, e.g.
// "https://data.example.org/api/v1/series".
func NewServiceFetcher(baseURL string, opts ...ServiceOption) *ServiceFetcher {
	f := &ServiceFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one HTTP round trip. Client-side rejections from the
// service (bad request, unknown facility, unsupported resolution) map onto
// the package's hard errors; an empty data array decodes to an empty series.
func (f *ServiceFetcher) Fetch(ctx context.Context, req Request) (series.TimeSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("site", req.Site)
	q.Set("facility", string(req.Facility))
	q.Set("items", strings.Join(req.Measurements, ","))
	q.Set("time_key", req.Resolution.String())
	q.Set("start", req.Start.Format(time.RFC3339))
	q.Set("end", req.End.Format(time.RFC3339))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return series.TimeSeries{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return series.TimeSeries{}, fmt.Errorf("fetching %s: %w", req, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return series.TimeSeries{}, fmt.Errorf("%w: %s", ErrInvalidSpec, req)
	case http.StatusNotFound:
		return series.TimeSeries{}, fmt.Errorf("%w: %s/%s", ErrUnknownFacility, req.Facility, req.Site)
	case http.StatusUnprocessableEntity:
		return series.TimeSeries{}, fmt.Errorf("%w: %s at %s", ErrUnsupportedResolution, req.Facility, req.Resolution)
	default:
		return series.TimeSeries{}, fmt.Errorf("fetching %s: unexpected status %d", req, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return series.TimeSeries{}, fmt.Errorf("decoding response for %s: %v", req, err)
	}
	if !body.Success {
		return series.TimeSeries{}, fmt.Errorf("%w: %s", ErrInvalidSpec, body.Message)
	}

	if len(body.Data) == 0 {
		return series.Empty(req.Site, req.Facility, req.Resolution), nil
	}

	points := make([]series.Point, len(body.Data))
	for i, row := range body.Data {
		points[i] = series.Point{Time: row.Time, Values: row.Values}
	}
	return series.New(req.Site, req.Facility, req.Resolution, points)
}

var _ Fetcher = (*ServiceFetcher)(nil)

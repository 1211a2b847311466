// Package waterlink is a client-side data-access layer for a remote
// water-monitoring time-series service covering dam, river, rainfall,
// weather and water-quality stations.
//
// # Architecture
//
// The SDK is structured into several key packages:
//   - pkg/series: shared data model (points, series, specs, results)
//   - pkg/fetch: the outbound port to the remote service, with an HTTP
//     implementation and composable middlewares
//   - pkg/resolve: temporal-resolution fallback planning and execution
//   - pkg/align: pairwise time-series alignment under a lag shift
//   - pkg/correlate: lag-correlation scanning between two facilities
//   - pkg/batch: resilient multi-site batch orchestration
//   - pkg/export: CSV and XLSX rendering of results
//   - pkg/monitor: cron-driven periodic batch refresh
//   - pkg/client: the facade tying everything together
//
// Key behaviors
//
//   - Resolution fallback:
//     Requests with automatic resolution walk an ordered plan (hourly,
//     daily, monthly) until a non-empty series comes back; water-quality
//     stations only ever answer monthly queries.
//
//   - Failure isolation:
//     A batch always returns one entry per submitted key. Faults, timeouts
//     and cancellation become per-item failures, never batch aborts.
//
//   - Lag correlation:
//     Correlate scans candidate lags between an upstream and a downstream
//     facility and selects the lag with the strongest Pearson statistic.
//
// Example usage
//
//	c, err := client.New(client.DefaultConfig("https://data.example.org/api/v1/series"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := c.ResolveAndFetch(ctx, series.FetchSpec{
//	    Site:         "Soyang Dam",
//	    Facility:     series.FacilityDam,
//	    Measurements: []string{"storage_rate"},
//	    Days:         30,
//	    Resolution:   series.RequestAuto,
//	})
//
// For more information about specific packages, see their respective
// documentation.
package waterlink

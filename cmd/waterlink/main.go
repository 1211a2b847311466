// Command waterlink fetches water-monitoring time series from the remote
// data service and exports them as tables.
//
// One-shot mode fetches every listed site once and writes the merged table
// to the output file (.csv or .xlsx, decided by extension). Monitor mode
// keeps re-running the same batch on the configured cron schedule and
// rewrites the output after each run.
//
// Usage:
//
//	waterlink [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-sites string
//	      comma-separated site names
//	-facility string
//	      facility type: dam, water_level, rainfall, weather, water_quality
//	-items string
//	      comma-separated measurement items
//	-days int
//	      relative lookback in days (default 7)
//	-resolution string
//	      hourly, daily, monthly or auto (default "auto")
//	-out string
//	      output file (default "waterlink.csv")
//	-monitor
//	      keep refreshing on the configured schedule
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hydrodata-kr/waterlink/internal/config"
	"github.com/hydrodata-kr/waterlink/pkg/batch"
	"github.com/hydrodata-kr/waterlink/pkg/client"
	"github.com/hydrodata-kr/waterlink/pkg/export"
	"github.com/hydrodata-kr/waterlink/pkg/monitor"
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to config file")
		sites       = flag.String("sites", "", "comma-separated site names")
		facility    = flag.String("facility", string(series.FacilityDam), "facility type")
		items       = flag.String("items", "", "comma-separated measurement items")
		days        = flag.Int("days", 7, "relative lookback in days")
		resolution  = flag.String("resolution", string(series.RequestAuto), "resolution request")
		out         = flag.String("out", "waterlink.csv", "output file (.csv or .xlsx)")
		monitorMode = flag.Bool("monitor", false, "keep refreshing on the configured schedule")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)

	if *sites == "" || *items == "" {
		logger.Fatal("both -sites and -items are required")
	}

	c, err := client.New(client.Config{
		ServiceURL:     cfg.Service.URL,
		RequestTimeout: time.Duration(cfg.Service.TimeoutSeconds) * time.Second,
		RateLimit:      cfg.Service.RateLimit,
		RateLimitBurst: cfg.Service.RateLimitBurst,
		CacheSize:      cfg.Service.CacheSize,
	},
		client.WithLogger(logger),
		client.WithRegistry(prometheus.DefaultRegisterer),
	)
	if err != nil {
		logger.Fatalf("Failed to create client: %v", err)
	}

	base := series.FetchSpec{
		Facility:     series.FacilityType(*facility),
		Measurements: splitList(*items),
		Days:         *days,
		Resolution:   series.ResolutionRequest(*resolution),
	}
	var queue []batch.Item
	for _, site := range splitList(*sites) {
		queue = append(queue, batch.Item{Key: site, Spec: base.WithSite(site)})
	}

	opts := batch.Options{
		Mode:           batch.Sequential,
		MaxConcurrency: cfg.Batch.MaxConcurrency,
		ItemTimeout:    time.Duration(cfg.Batch.ItemTimeoutSeconds) * time.Second,
	}
	if cfg.Batch.Parallel {
		opts.Mode = batch.Parallel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writeOut := func(result *batch.Result) {
		if err := writeResult(*out, result); err != nil {
			logger.WithError(err).Error("Failed to write output")
			return
		}
		logger.WithFields(logrus.Fields{
			"file":      *out,
			"keys":      result.Len(),
			"succeeded": result.Successes().Len(),
			"failed":    result.Failures().Len(),
		}).Info("Wrote output")
	}

	if *monitorMode {
		m := monitor.New(c, queue, opts, cfg.Monitor.Schedule, writeOut, logger)
		if err := m.Start(); err != nil {
			logger.Fatalf("Failed to start monitor: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"schedule": cfg.Monitor.Schedule,
			"sites":    len(queue),
		}).Info("Monitoring started")

		<-ctx.Done()
		logger.Info("Shutting down monitor")
		m.Stop()
		return
	}

	result := c.RunBatch(ctx, queue, opts)
	writeOut(result)

	result.Failures().Each(func(key string, res series.SingleResult) {
		logger.WithFields(logrus.Fields{"site": key}).Warn(res.Message)
	})
}

func newLogger(cfg config.Logging) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeResult(path string, result *batch.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".xlsx":
		return export.WriteXLSX(f, result)
	case ".csv":
		return export.WriteCSV(f, result)
	default:
		return fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}
}

// Package monitor re-runs a fixed batch of fetch specifications on a cron
// schedule, handing each completed batch to a caller-supplied sink. It is
// the standing consumer of the batch layer for dashboards and alerting.
package monitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hydrodata-kr/waterlink/pkg/batch"
	"github.com/hydrodata-kr/waterlink/pkg/client"
)

// Sink receives each completed batch result.
type Sink func(*batch.Result)

// Monitor periodically executes one batch against a client.
type Monitor struct {
	client   *client.Client
	items    []batch.Item
	opts     batch.Options
	schedule string
	budget   time.Duration
	sink     Sink
	logger   *logrus.Logger
	cron     *cron.Cron
}

// New creates a Monitor. schedule is a standard cron expression, e.g.
// "*/10 * * * *". budget bounds each run; it defaults to five minutes.
func New(c *client.Client, items []batch.Item, opts batch.Options, schedule string, sink Sink, logger *logrus.Logger) *Monitor {
	return &Monitor{
		client:   c,
		items:    items,
		opts:     opts,
		schedule: schedule,
		budget:   5 * time.Minute,
		sink:     sink,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the schedule and begins running.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.runOnce); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// RunNow kicks one immediate refresh outside the schedule.
func (m *Monitor) RunNow() {
	m.runOnce()
}

// runOnce executes the batch with a bounded budget and forwards the result.
func (m *Monitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.budget)
	defer cancel()

	result := m.client.RunBatch(ctx, m.items, m.opts)

	failed := result.Failures().Len()
	m.logger.WithFields(logrus.Fields{
		"keys":   result.Len(),
		"failed": failed,
	}).Info("monitor batch completed")

	if m.sink != nil {
		m.sink(result)
	}
}

// Stop halts the schedule. Runs already in flight finish on their own.
func (m *Monitor) Stop() {
	m.cron.Stop()
}

// Package metrics exports the outcome of a pass in the Prometheus exposition format,
// either as a node_exporter textfile or to a Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/codex-k8s/rrbot/internal/scan"
	"github.com/codex-k8s/rrbot/internal/thread"
)

var (
	itemsDesc = prometheus.NewDesc(
		"rrbot_last_pass_items",
		"Items handled by the last pass by kind and outcome.",
		[]string{"kind", "outcome"},
		nil,
	)
	scannedDesc = prometheus.NewDesc(
		"rrbot_last_pass_posts_scanned",
		"Posts scanned by the last pass.",
		nil, nil,
	)
	visitedDesc = prometheus.NewDesc(
		"rrbot_last_pass_comments_visited",
		"Comments visited by the last pass.",
		nil, nil,
	)
	durationDesc = prometheus.NewDesc(
		"rrbot_last_pass_duration_seconds",
		"Wall time of the last pass.",
		nil, nil,
	)
	finishedDesc = prometheus.NewDesc(
		"rrbot_last_pass_timestamp_seconds",
		"Unix time the last pass finished.",
		nil, nil,
	)
	monitorDesc = prometheus.NewDesc(
		"rrbot_last_pass_monitor_only",
		"1 when the last pass suppressed replies.",
		nil, nil,
	)
	ledgerDesc = prometheus.NewDesc(
		"rrbot_ledger_entries",
		"Ids recorded in each reply ledger after the last pass.",
		[]string{"ledger"},
		nil,
	)
)

var (
	kinds    = []thread.Kind{thread.KindPost, thread.KindComment}
	outcomes = []string{scan.OutcomeReplied, scan.OutcomeFailed, scan.OutcomeSkipped}
)

// PassCollector exposes a finished pass report as constant metrics.
type PassCollector struct {
	report *scan.Report
}

// NewPassCollector returns a collector for report.
func NewPassCollector(report *scan.Report) *PassCollector {
	return &PassCollector{report: report}
}

// Describe sends the metric descriptors to the channel.
func (c *PassCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{itemsDesc, scannedDesc, visitedDesc, durationDesc, finishedDesc, monitorDesc, ledgerDesc} {
		ch <- d
	}
}

// Collect emits the report counters.
func (c *PassCollector) Collect(ch chan<- prometheus.Metric) {
	r := c.report
	if r == nil {
		return
	}
	for _, kind := range kinds {
		for _, outcome := range outcomes {
			ch <- prometheus.MustNewConstMetric(itemsDesc, prometheus.GaugeValue,
				float64(r.Count(kind, outcome)), string(kind), outcome)
		}
	}
	ch <- prometheus.MustNewConstMetric(scannedDesc, prometheus.GaugeValue, float64(r.Scanned))
	ch <- prometheus.MustNewConstMetric(visitedDesc, prometheus.GaugeValue, float64(r.Visited))
	ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.GaugeValue, r.Duration().Seconds())
	ch <- prometheus.MustNewConstMetric(finishedDesc, prometheus.GaugeValue, float64(r.FinishedAt.Unix()))

	monitor := 0.0
	if r.MonitorOnly {
		monitor = 1
	}
	ch <- prometheus.MustNewConstMetric(monitorDesc, prometheus.GaugeValue, monitor)

	names := make([]string, 0, len(r.LedgerSizes))
	for name := range r.LedgerSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ch <- prometheus.MustNewConstMetric(ledgerDesc, prometheus.GaugeValue, float64(r.LedgerSizes[name]), name)
	}
}

// Registry returns a fresh registry holding only the pass collector.
func Registry(report *scan.Report) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPassCollector(report))
	return reg
}

// WriteTextfile atomically writes the pass metrics to path for the node_exporter textfile collector.
func WriteTextfile(path string, report *scan.Report) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("metrics textfile path is empty")
	}
	if err := prometheus.WriteToTextfile(path, Registry(report)); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push replaces the metrics of job on the Pushgateway at url, grouped by subreddit.
func Push(ctx context.Context, url, job, subreddit string, report *scan.Report) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("pushgateway url is empty")
	}
	if strings.TrimSpace(job) == "" {
		job = "rrbot"
	}
	pusher := push.New(url, job).Gatherer(Registry(report))
	if subreddit != "" {
		pusher = pusher.Grouping("subreddit", subreddit)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Package observability holds the application's Prometheus registry and
// collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// ReportsGeneratedTotal counts metrics reports by scope (agent|fleet).
var ReportsGeneratedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "breaktracker",
	Name:      "reports_generated_total",
	Help:      "Total metrics reports computed, by scope",
}, []string{"scope"})

// IntegrityWarningsTotal counts malformed records excluded from computations.
var IntegrityWarningsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "breaktracker",
	Name:      "integrity_warnings_total",
	Help:      "Total malformed records excluded from metrics computations",
})

// ActiveBreaks tracks open breaks as of the last monitor scan.
var ActiveBreaks = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "breaktracker",
	Name:      "active_breaks",
	Help:      "Open breaks observed by the last overdue scan",
})

// OverdueFlaggedTotal counts breaks newly flagged overdue by the monitor.
var OverdueFlaggedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "breaktracker",
	Name:      "overdue_flagged_total",
	Help:      "Breaks flagged as overdue by the monitor",
})

// MonitorScansTotal counts completed monitor scan passes.
var MonitorScansTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "breaktracker",
	Name:      "monitor_scans_total",
	Help:      "Completed overdue monitor scan passes",
})

// MonitorScanSeconds tracks the duration of one scan pass.
var MonitorScanSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "breaktracker",
	Name:      "monitor_scan_seconds",
	Help:      "Time taken by one overdue monitor scan",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
})

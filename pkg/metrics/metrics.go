// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch cycle metrics
	DispatchCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catfacts_dispatch_cycles_total",
		Help: "Total number of dispatch cycles run, by result (success, data_fetch_error, panic)",
	}, []string{"result"})
	DispatchLastCycleTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catfacts_dispatch_last_cycle_timestamp_seconds",
		Help: "Unix timestamp of the last finished dispatch cycle",
	})
	DispatchCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catfacts_dispatch_cycle_duration_seconds",
		Help:    "Wall-clock duration of dispatch cycles",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	// Scheduler metrics
	SchedulerNextTriggerTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catfacts_scheduler_next_trigger_timestamp_seconds",
		Help: "Unix timestamp of the next scheduled dispatch",
	})
	SchedulerComputeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catfacts_scheduler_compute_errors_total",
		Help: "Total number of failed trigger time computations",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catfacts_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catfacts_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	// Store gate metrics
	StoreGateWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catfacts_store_gate_wait_seconds",
		Help:    "Time callers spent waiting for exclusive store access",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})
	StoreContention = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catfacts_store_contention_total",
		Help: "Total number of callers that gave up waiting for the store gate",
	})

	// API write metrics
	FactsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catfacts_facts_created_total",
		Help: "Total number of cat facts created through the API",
	})
	SubscribersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catfacts_subscribers_created_total",
		Help: "Total number of subscribers registered through the API",
	})

	// Audit metrics
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catfacts_audit_events_written_total",
		Help: "Total number of audit events written, by sink",
	}, []string{"sink"})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catfacts_audit_sink_errors_total",
		Help: "Total number of audit sink write errors, by sink and error type",
	}, []string{"sink", "error_type"})
)

func init() {
	prometheus.MustRegister(DispatchCycles)
	prometheus.MustRegister(DispatchLastCycleTimestamp)
	prometheus.MustRegister(DispatchCycleDuration)
	prometheus.MustRegister(SchedulerNextTriggerTimestamp)
	prometheus.MustRegister(SchedulerComputeErrors)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(StoreGateWait)
	prometheus.MustRegister(StoreContention)
	prometheus.MustRegister(FactsCreated)
	prometheus.MustRegister(SubscribersCreated)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditSinkErrors)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

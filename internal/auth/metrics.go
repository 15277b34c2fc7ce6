// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for auth operations.
var (
	// operationsTotal counts operation outcomes by operation and result.
	// result is one of: ok, rejected (field error), fault.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reddical_auth_operations_total",
		Help: "Total number of auth operations by operation and result",
	}, []string{"operation", "result"})

	// hashDuration tracks the latency of password hashing, the dominant
	// cost of register/login/reset.
	hashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reddical_auth_hash_duration_seconds",
		Help:    "Histogram of password hashing latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Metric result labels.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFault    = "fault"
)

func recordOperation(operation, result string) {
	operationsTotal.WithLabelValues(operation, result).Inc()
}

func observeHash(start time.Time) {
	hashDuration.Observe(time.Since(start).Seconds())
}

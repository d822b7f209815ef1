// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	faultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazyexec_faults_total",
			Help: "Page faults seen by the demand-paging handler",
		},
		[]string{"outcome"},
	)

	materializeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lazyexec_materialize_duration_seconds",
			Help:    "Time spent mapping and filling a single page",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	zeroFilledBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazyexec_zero_filled_bytes_total",
			Help: "Bytes zeroed past segment file sizes",
		},
	)
)

/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qpsindex"

var (
	AllocatorResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocator",
		Name:      "resolutions_total",
		Help:      "Allocator resolutions by requested name and outcome.",
	}, []string{"requested", "resolved", "outcome"})

	GrantedFraction = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "allocator",
		Name:      "granted_fraction",
		Help:      "Fraction of the cluster capacity granted per batch.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
	}, []string{"allocator"})

	AllocatorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocator",
		Name:      "errors_total",
		Help:      "Runtime errors raised by allocators.",
	}, []string{"allocator", "op"})

	Batches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "batches_total",
		Help:      "Store batches issued by the index.",
	}, []string{"op", "result"})

	BatchKeys = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "batch_keys_total",
		Help:      "Keys sent to the store.",
	}, []string{"op"})

	ThrottleSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "index",
		Name:      "throttle_seconds",
		Help:      "Time a batch waited on the local rate limiter.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		AllocatorResolutions,
		GrantedFraction,
		AllocatorErrors,
		Batches,
		BatchKeys,
		ThrottleSeconds,
	)
}

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

// Package allocator decides how much of the cluster capacity an indexing job may use for every batch it sends
// to the external store.
//
// Strategies register a Factory under a name at process start. The index resolves the configured name once and
// any failure to build the named strategy falls back to the default one, so a misconfigured allocator never
// fails a job. Errors returned by a built strategy while the job runs are propagated to the batch.
package allocator

import (
	"math"

	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// DefaultAllocatorName selects the passthrough allocator.
	DefaultAllocatorName = "default"
	// MinQPSFraction replaces non-positive requests. Valid requests below it are kept as they are.
	MinQPSFraction = 0.001
	MaxQPSFraction = 1.0
)

// Allocator is implemented by every qps allocation strategy. Implementations must be safe for concurrent use,
// the index calls them from many batches at once without any locking.
type Allocator interface {
	// AcquireQPSResources returns the fraction of the cluster capacity granted for the next batch of numRecords keys.
	// It may throttle before returning, but must not block forever.
	AcquireQPSResources(desiredFraction float64, numRecords int64) (float64, error)
	// ReleaseQPSResources gives back what the last acquire reserved, if anything.
	ReleaseQPSResources() error
}

// FractionCalculator is implemented by allocators which compute the desired fraction of a put stage, it is
// consulted when dynamic qps is enabled.
type FractionCalculator interface {
	CalculateQPSFractionForPutsTime(numPuts int64, numRegionServers int) float64
}

// Deps are the collaborators injected into a strategy when it is built.
type Deps struct {
	JobID string
	// Snapshot is the cluster view at the moment the index was created.
	Snapshot   cluster.Snapshot
	EtcdClient *clientv3.Client
	RootPath   string
}

// NormalizeFraction leaves a fraction in (0, 1] untouched, caps larger ones to 1 and raises NaN or non-positive
// ones to MinQPSFraction.
func NormalizeFraction(f float64) float64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return MinQPSFraction
	case f > MaxQPSFraction:
		return MaxQPSFraction
	default:
		return f
	}
}

// ClampFraction normalizes f and bounds it by [lower, upper].
func ClampFraction(f, lower, upper float64) float64 {
	f = NormalizeFraction(f)
	if lower > upper {
		lower, upper = upper, lower
	}
	return math.Max(NormalizeFraction(lower), math.Min(f, NormalizeFraction(upper)))
}

// IsValidFraction reports whether f is in (0, 1].
func IsValidFraction(f float64) bool {
	return !math.IsNaN(f) && f > 0 && f <= 1
}

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

package limiter

import (
	"context"
	"math"
	"sync"

	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"golang.org/x/time/rate"
)

// FlowLimiter throttles the batches one index sends to the store, to the share of the cluster capacity the
// allocator granted.
type FlowLimiter struct {
	l *rate.Limiter
	// maxQPSPerRegionServer converts a granted fraction to ops per second.
	maxQPSPerRegionServer int

	// RWMutex is used to protect following fields.
	lock sync.RWMutex
	// limitCap caps the derived rate, 0 means no cap.
	limitCap int
	// minBurst is the least burst configured.
	minBurst int
	// limit is the current rate of tokens.
	limit int
	// burst is the maximum number of tokens.
	burst int
	// enable is used to control the switch of the limiter.
	enable bool
}

func NewFlowLimiter(cfg config.LimiterConfig, maxQPSPerRegionServer int) *FlowLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.Limit > 0 {
		limit = rate.Limit(cfg.Limit)
	}

	return &FlowLimiter{
		l:                     rate.NewLimiter(limit, burst),
		maxQPSPerRegionServer: maxQPSPerRegionServer,
		lock:                  sync.RWMutex{},
		limitCap:              cfg.Limit,
		minBurst:              cfg.Burst,
		limit:                 cfg.Limit,
		burst:                 burst,
		enable:                cfg.Enable,
	}
}

// Update derives the rate from the granted fraction of the cluster described by snapshot:
// granted * regionServers * maxQPSPerRegionServer ops per second, with a burst large enough for batchSize.
// It returns the rate in effect.
func (f *FlowLimiter) Update(granted float64, snapshot cluster.Snapshot, batchSize int) int {
	limit := int(math.Ceil(granted * float64(snapshot.NumRegionServers) * float64(f.maxQPSPerRegionServer)))
	if limit < 1 {
		limit = 1
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if f.limitCap > 0 && limit > f.limitCap {
		limit = f.limitCap
	}
	burst := max(f.minBurst, batchSize, 1)

	if limit != f.limit {
		f.l.SetLimit(rate.Limit(limit))
		f.limit = limit
	}
	if burst > f.burst {
		f.l.SetBurst(burst)
		f.burst = burst
	}
	return limit
}

func (f *FlowLimiter) Allow() bool {
	if !f.isEnabled() {
		return true
	}
	return f.l.Allow()
}

// Wait blocks until n ops may proceed or ctx is done. Requests larger than the burst are split.
func (f *FlowLimiter) Wait(ctx context.Context, n int) error {
	if !f.isEnabled() {
		return ctx.Err()
	}

	for n > 0 {
		chunk := min(n, max(f.l.Burst(), 1))
		if err := f.l.WaitN(ctx, chunk); err != nil {
			// The burst may be lowered between reading it and waiting, retry with the new one.
			if burst := f.l.Burst(); ctx.Err() == nil && burst > 0 && chunk > burst {
				continue
			}
			return err
		}
		n -= chunk
	}
	return nil
}

func (f *FlowLimiter) isEnabled() bool {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return f.enable
}

// UpdateLimiter replaces the cap, the least burst and the switch. The current rate is lowered to the new cap.
func (f *FlowLimiter) UpdateLimiter(cfg config.LimiterConfig) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.limitCap = cfg.Limit
	f.minBurst = cfg.Burst
	f.enable = cfg.Enable
	if f.limitCap > 0 && (f.limit <= 0 || f.limit > f.limitCap) {
		f.l.SetLimit(rate.Limit(f.limitCap))
		f.limit = f.limitCap
	}
	if cfg.Burst > 0 {
		f.l.SetBurst(cfg.Burst)
		f.burst = cfg.Burst
	}
	return nil
}

// GetConfig returns the limiter config currently applied.
func (f *FlowLimiter) GetConfig() *config.LimiterConfig {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return &config.LimiterConfig{
		Limit:  f.limitCap,
		Burst:  f.minBurst,
		Enable: f.enable,
	}
}

// Stats is the state of the limiter.
type Stats struct {
	Limit  int  `json:"limit"`
	Burst  int  `json:"burst"`
	Cap    int  `json:"cap"`
	Enable bool `json:"enable"`
}

func (f *FlowLimiter) Stats() Stats {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return Stats{
		Limit:  f.limit,
		Burst:  f.burst,
		Cap:    f.limitCap,
		Enable: f.enable,
	}
}

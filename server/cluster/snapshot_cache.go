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

package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SnapshotCache keeps the latest snapshot of a Probe and refreshes it once it gets older than the ttl.
// Readers never block on each other: the snapshot is swapped atomically and refreshes are serialized.
type SnapshotCache struct {
	probe Probe
	ttl   time.Duration
	clock clockwork.Clock

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
}

func NewSnapshotCache(probe Probe, ttl time.Duration, clock clockwork.Clock) *SnapshotCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SnapshotCache{
		probe: probe,
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns a fresh enough snapshot. When the refresh fails the last known snapshot is returned together with
// no error, an error is only returned if no snapshot has ever been loaded.
func (c *SnapshotCache) Get(ctx context.Context) (Snapshot, error) {
	if s := c.current.Load(); s != nil && !s.IsStale(c.clock.Now(), c.ttl) {
		return *s, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed it while waiting for the lock.
	prev := c.current.Load()
	if prev != nil && !prev.IsStale(c.clock.Now(), c.ttl) {
		return *prev, nil
	}

	s, err := c.probe.Snapshot(ctx)
	if err == nil && s.NumRegionServers <= 0 {
		err = ErrInvalidSnapshot.WithMessagef("region servers:%d", s.NumRegionServers)
	}
	if err != nil {
		if prev == nil {
			return Snapshot{}, err
		}
		log.Warn("refresh cluster snapshot failed, keep the last one", zap.Int("regionServers", prev.NumRegionServers), zap.Error(err))
		return *prev, nil
	}

	// The cache clock decides staleness, not the probe.
	s.Timestamp = c.clock.Now()
	c.current.Store(&s)
	return s, nil
}

// Peek returns the cached snapshot without refreshing it.
func (c *SnapshotCache) Peek() (Snapshot, bool) {
	s := c.current.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

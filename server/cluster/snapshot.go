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
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Snapshot is an immutable view of the external cluster load.
// It is passed into allocators by value and never mutated after creation.
type Snapshot struct {
	NumRegionServers int       `json:"numRegionServers"`
	Timestamp        time.Time `json:"timestamp"`
}

// IsStale returns true if the snapshot is older than ttl at the moment now.
func (s Snapshot) IsStale(now time.Time, ttl time.Duration) bool {
	return s.Timestamp.IsZero() || now.Sub(s.Timestamp) >= ttl
}

// Probe supplies snapshots of the external cluster.
type Probe interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// StaticProbe always reports the same number of region servers.
type StaticProbe struct {
	NumRegionServers int
	Now              func() time.Time
}

func (p StaticProbe) Snapshot(_ context.Context) (Snapshot, error) {
	if p.NumRegionServers <= 0 {
		return Snapshot{}, ErrNoRegionServers.WithMessagef("static probe reports %d region servers", p.NumRegionServers)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Snapshot{NumRegionServers: p.NumRegionServers, Timestamp: now()}, nil
}

// EtcdProbe treats every etcd member as a region server.
type EtcdProbe struct {
	client *clientv3.Client
}

func NewEtcdProbe(client *clientv3.Client) *EtcdProbe {
	return &EtcdProbe{client: client}
}

func (p *EtcdProbe) Snapshot(ctx context.Context) (Snapshot, error) {
	resp, err := p.client.MemberList(ctx)
	if err != nil {
		return Snapshot{}, ErrListMembers.WithCause(err)
	}

	n := 0
	for _, member := range resp.Members {
		// Learners don't serve requests.
		if !member.IsLearner {
			n++
		}
	}
	if n == 0 {
		return Snapshot{}, ErrNoRegionServers.WithMessagef("etcd cluster has no voting member")
	}
	return Snapshot{NumRegionServers: n, Timestamp: time.Now()}, nil
}

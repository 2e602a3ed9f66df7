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

package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/hash"
)

const memRingReplicas = 64

var (
	_ Store         = &MemStore{}
	_ cluster.Probe = &MemStore{}
)

type region struct {
	lock sync.RWMutex
	data map[string][]byte
	ops  atomic.Int64
}

// MemStore is an in-memory store whose keys are spread over simulated region servers.
type MemStore struct {
	ring    *hash.Ring
	regions map[string]*region
	closed  atomic.Bool
}

func NewMemStore(numRegionServers int) *MemStore {
	if numRegionServers <= 0 {
		numRegionServers = 1
	}
	ring := hash.New(memRingReplicas, nil)
	regions := make(map[string]*region, numRegionServers)
	for i := 0; i < numRegionServers; i++ {
		name := fmt.Sprintf("region-server-%d", i)
		ring.Add(name)
		regions[name] = &region{data: make(map[string][]byte)}
	}
	return &MemStore{
		ring:    ring,
		regions: regions,
	}
}

func (s *MemStore) regionOf(key string) *region {
	return s.regions[s.ring.Get(key)]
}

func (s *MemStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := s.check(ctx, keys); err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		r := s.regionOf(key)
		r.ops.Add(1)
		r.lock.RLock()
		v, ok := r.data[key]
		r.lock.RUnlock()
		if ok {
			result[key] = append([]byte(nil), v...)
		}
	}
	return result, nil
}

func (s *MemStore) BatchPut(ctx context.Context, kvs []KeyValue) error {
	keys := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		keys = append(keys, kv.Key)
	}
	if err := s.check(ctx, keys); err != nil {
		return err
	}

	for _, kv := range kvs {
		r := s.regionOf(kv.Key)
		r.ops.Add(1)
		r.lock.Lock()
		r.data[kv.Key] = append([]byte(nil), kv.Value...)
		r.lock.Unlock()
	}
	return nil
}

func (s *MemStore) BatchDelete(ctx context.Context, keys []string) error {
	if err := s.check(ctx, keys); err != nil {
		return err
	}

	for _, key := range keys {
		r := s.regionOf(key)
		r.ops.Add(1)
		r.lock.Lock()
		delete(r.data, key)
		r.lock.Unlock()
	}
	return nil
}

func (s *MemStore) Close() error {
	s.closed.Store(true)
	return nil
}

// Snapshot reports the number of simulated region servers.
func (s *MemStore) Snapshot(_ context.Context) (cluster.Snapshot, error) {
	return cluster.Snapshot{NumRegionServers: len(s.regions), Timestamp: time.Now()}, nil
}

// RegionOps returns the number of key operations served by every region server so far.
func (s *MemStore) RegionOps() map[string]int64 {
	ops := make(map[string]int64, len(s.regions))
	for name, r := range s.regions {
		ops[name] = r.ops.Load()
	}
	return ops
}

// Len returns the number of keys stored.
func (s *MemStore) Len() int {
	n := 0
	for _, r := range s.regions {
		r.lock.RLock()
		n += len(r.data)
		r.lock.RUnlock()
	}
	return n
}

func (s *MemStore) check(ctx context.Context, keys []string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return validateKeys(keys)
}

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

// The ring is based on [groupcache](https://github.com/golang/groupcache/blob/4a4ac3fbac33b83bb138f808c8945a2812023fc4/consistenthash/consistenthash.go)

package hash

import (
	"sort"
	"strconv"

	"github.com/spaolacci/murmur3"
)

type Hash func(data []byte) uint32

// Ring maps keys to nodes on a consistent hash ring. It is not safe for concurrent modification, build it once
// and share it read-only afterward.
type Ring struct {
	hash     Hash
	replicas int
	ring     []uint32
	nodes    map[uint32]string
}

// New creates a ring with the given virtual replicas per node. murmur3 is used if fn is nil.
func New(replicas int, fn Hash) *Ring {
	if replicas <= 0 {
		replicas = 1
	}
	r := &Ring{
		replicas: replicas,
		hash:     fn,
		nodes:    make(map[uint32]string),
	}
	if r.hash == nil {
		r.hash = murmur3.Sum32
	}
	return r
}

// IsEmpty returns true if there are no items available.
func (r *Ring) IsEmpty() bool {
	return len(r.ring) == 0
}

// Add adds some nodes to the ring.
func (r *Ring) Add(nodes ...string) {
	for _, node := range nodes {
		for i := 0; i < r.replicas; i++ {
			h := r.hash([]byte(strconv.Itoa(i) + node))
			if _, exists := r.nodes[h]; exists {
				continue
			}
			r.ring = append(r.ring, h)
			r.nodes[h] = node
		}
	}
	sort.Slice(r.ring, func(i, j int) bool { return r.ring[i] < r.ring[j] })
}

// Get gets the closest node in the ring to the provided key.
func (r *Ring) Get(key string) string {
	if r.IsEmpty() {
		return ""
	}

	h := r.hash([]byte(key))

	// Binary search for appropriate replica.
	idx := sort.Search(len(r.ring), func(i int) bool { return r.ring[i] >= h })

	// Means we have cycled back to the first replica.
	if idx == len(r.ring) {
		idx = 0
	}

	return r.nodes[r.ring[idx]]
}

// Nodes returns the distinct nodes of the ring.
func (r *Ring) Nodes() []string {
	seen := make(map[string]struct{}, len(r.nodes))
	nodes := make([]string, 0)
	for _, node := range r.nodes {
		if _, ok := seen[node]; ok {
			continue
		}
		seen[node] = struct{}{}
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

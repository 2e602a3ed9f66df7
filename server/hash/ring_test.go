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

package hash

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingWithCustomHash(t *testing.T) {
	re := require.New(t)
	r := New(3, func(key []byte) uint32 {
		i, err := strconv.Atoi(string(key))
		if err != nil {
			panic(err)
		}
		return uint32(i)
	})

	// Given the above hash function, this will give replicas with "hashes":
	// 2, 4, 6, 12, 14, 16, 22, 24, 26
	r.Add("6", "4", "2")

	testCases := map[string]string{
		"2":  "2",
		"11": "2",
		"23": "4",
		"27": "2",
	}
	for k, v := range testCases {
		re.Equal(v, r.Get(k), "asking for %s", k)
	}

	// Adds 8, 18, 28
	r.Add("8")

	// 27 should now map to 8.
	testCases["27"] = "8"
	for k, v := range testCases {
		re.Equal(v, r.Get(k), "asking for %s", k)
	}
}

func TestRingConsistency(t *testing.T) {
	re := require.New(t)
	r1 := New(16, nil)
	r2 := New(16, nil)

	r1.Add("region-0", "region-1", "region-2")
	r2.Add("region-2", "region-0", "region-1")

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("record-%d", i)
		re.Equal(r1.Get(key), r2.Get(key))
	}
	re.Equal([]string{"region-0", "region-1", "region-2"}, r1.Nodes())
}

func TestRingSpreadsKeys(t *testing.T) {
	re := require.New(t)
	r := New(64, nil)
	r.Add("region-0", "region-1", "region-2", "region-3")

	counts := make(map[string]int)
	for i := 0; i < 4000; i++ {
		counts[r.Get(fmt.Sprintf("key-%d", i))]++
	}
	re.Len(counts, 4)
	for node, n := range counts {
		re.Greater(n, 400, "node %s is underloaded", node)
	}
}

func TestEmptyRing(t *testing.T) {
	r := New(0, nil)
	require.True(t, r.IsEmpty())
	require.Equal(t, "", r.Get("anything"))
}

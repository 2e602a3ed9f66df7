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

package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutBatchSize(t *testing.T) {
	re := require.New(t)

	cases := []struct {
		numTasks      int
		maxExecutors  int
		regionServers int
		maxQPS        int
		fraction      float64
		sleepMs       int
		expected      int
	}{
		{numTasks: 100, maxExecutors: 4, regionServers: 3, maxQPS: 1000, fraction: 0.5, sleepMs: 100, expected: 37},
		{numTasks: 2, maxExecutors: 4, regionServers: 3, maxQPS: 1000, fraction: 0.5, sleepMs: 100, expected: 75},
		{numTasks: 0, maxExecutors: 4, regionServers: 3, maxQPS: 1000, fraction: 0.5, sleepMs: 100, expected: 150},
		{numTasks: 100, maxExecutors: 4, regionServers: 1, maxQPS: 1000, fraction: 0.002, sleepMs: 100, expected: 1},
		{numTasks: 10, maxExecutors: 10, regionServers: 10, maxQPS: 1000, fraction: 1, sleepMs: 2000, expected: 1000},
	}
	for _, c := range cases {
		got := PutBatchSize(c.numTasks, c.maxExecutors, c.regionServers, c.maxQPS, c.fraction, c.sleepMs)
		re.Equal(c.expected, got, "case:%+v", c)
	}
}

func TestSplitBatches(t *testing.T) {
	re := require.New(t)
	batches := splitBatches([]int{1, 2, 3, 4, 5}, 2)
	re.Equal([][]int{{1, 2}, {3, 4}, {5}}, batches)
	re.Empty(splitBatches([]int{}, 3))
	re.Len(splitBatches([]int{1, 2}, 0), 2)
}

func TestLatestRecords(t *testing.T) {
	re := require.New(t)
	l1 := &Location{FileID: "f1"}
	l2 := &Location{FileID: "f2"}
	records := latestRecords([]Record{{Key: "a", Location: l1}, {Key: "b", Location: l1}, {Key: "a"}, {Key: "b", Location: l2}})
	re.Equal([]Record{{Key: "a"}, {Key: "b", Location: l2}}, records)
}

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

import "math"

const millisPerSecond = 1000

// PutBatchSize computes how many keys one put batch carries so that numTasks tasks, at most maxExecutors of
// them running at once and each sending a batch every sleepMs, stay within qpsFraction of the cluster capacity.
func PutBatchSize(numTasks, maxExecutors, numRegionServers, maxQPSPerRegionServer int, qpsFraction float64, sleepMs int) int {
	maxReqPerSec := int(math.Floor(qpsFraction * float64(numRegionServers) * float64(maxQPSPerRegionServer)))
	maxParallelPuts := max(1, min(numTasks, maxExecutors))
	reqsPerTaskPerSec := 1
	if sleepMs > 0 {
		reqsPerTaskPerSec = max(1, millisPerSecond/sleepMs)
	}
	return max(1, maxReqPerSec/(maxParallelPuts*reqsPerTaskPerSec))
}

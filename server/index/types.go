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
	"encoding/json"

	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/limiter"
)

// Location tells where the latest version of a record is stored.
type Location struct {
	CommitTime    string `json:"commitTime"`
	PartitionPath string `json:"partitionPath"`
	FileID        string `json:"fileID"`
}

func (l Location) encode() ([]byte, error) {
	value, err := json.Marshal(l)
	if err != nil {
		return nil, ErrEncodeLocation.WithCause(err)
	}
	return value, nil
}

func decodeLocation(key string, value []byte) (Location, error) {
	var l Location
	if err := json.Unmarshal(value, &l); err != nil {
		return Location{}, ErrDecodeLocation.WithCausef(err, "key:%s", key)
	}
	return l, nil
}

// Record is one entry of an update. A record without location is removed from the index.
type Record struct {
	Key      string
	Location *Location
}

func (r Record) IsDelete() bool {
	return r.Location == nil
}

type Status struct {
	Table     string           `json:"table"`
	Status    string           `json:"status"`
	Allocator allocator.Status `json:"allocator"`
	Limiter   limiter.Stats    `json:"limiter"`
	Snapshot  cluster.Snapshot `json:"snapshot"`
}

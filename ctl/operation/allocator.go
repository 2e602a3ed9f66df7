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

package operation

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jedib0t/go-pretty/v6/table"
)

type AllocatorStatus struct {
	Allocator   string   `json:"allocator"`
	State       string   `json:"state"`
	LastGranted float64  `json:"lastGranted"`
	Acquires    int64    `json:"acquires"`
	Releases    int64    `json:"releases"`
	Outstanding int64    `json:"outstanding"`
	Failures    int64    `json:"failures"`
	Registered  []string `json:"registered"`
}

func AllocatorGet(w io.Writer) error {
	var response Response[AllocatorStatus]
	if err := HTTPUtil(http.MethodGet, apiURL(APIAllocator), nil, &response); err != nil {
		return err
	}

	data := response.Data
	t := tableWriter(allocatorHeader)
	t.AppendRow(table.Row{data.Allocator, data.State, data.LastGranted, data.Acquires, data.Releases, data.Outstanding, data.Failures})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func AllocatorList(w io.Writer) error {
	var response Response[[]string]
	if err := HTTPUtil(http.MethodGet, apiURL(APIAllocators), nil, &response); err != nil {
		return err
	}

	// The allocator in use is unknown when no index runs.
	var inUse Response[AllocatorStatus]
	_ = HTTPUtil(http.MethodGet, apiURL(APIAllocator), nil, &inUse)

	t := tableWriter(allocatorsHeader)
	for _, name := range response.Data {
		t.AppendRow(table.Row{name, name == inUse.Data.Allocator})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

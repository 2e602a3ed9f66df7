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
	"testing"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/server/etcdutil/etcdtest"
	"github.com/stretchr/testify/require"
)

const defaultRequestTimeout = time.Second * 10

func TestEtcdStore(t *testing.T) {
	re := require.New(t)
	client := etcdtest.NewClient(t)

	s := NewEtcdStore(client, "/qpsindex/", "test_table", defaultRequestTimeout)
	testStoreReadWrite(re, s)

	// Keys are kept under the table path.
	re.NoError(s.BatchPut(context.Background(), []KeyValue{{Key: "k", Value: []byte("v")}}))
	resp, err := client.Get(context.Background(), "/qpsindex/test_table/k")
	re.NoError(err)
	re.Len(resp.Kvs, 1)
	re.Equal("v", string(resp.Kvs[0].Value))

	other := NewEtcdStore(client, "/qpsindex", "other_table", defaultRequestTimeout)
	got, err := other.BatchGet(context.Background(), []string{"k"})
	re.NoError(err)
	re.Empty(got)
	re.NoError(s.Close())
}

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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore(3)
	testStoreReadWrite(require.New(t), s)

	snapshot, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, snapshot.NumRegionServers)
}

func TestMemStoreSpreadsOverRegions(t *testing.T) {
	re := require.New(t)
	s := NewMemStore(4)
	kvs := make([]KeyValue, 0, 1000)
	for i := 0; i < 1000; i++ {
		kvs = append(kvs, KeyValue{Key: fmt.Sprintf("record-%d", i), Value: []byte("v")})
	}
	re.NoError(s.BatchPut(context.Background(), kvs))
	re.Equal(1000, s.Len())

	ops := s.RegionOps()
	re.Len(ops, 4)
	var total int64
	for _, n := range ops {
		re.Positive(n)
		total += n
	}
	re.Equal(int64(1000), total)
}

func TestMemStoreClosed(t *testing.T) {
	s := NewMemStore(1)
	require.NoError(t, s.Close())
	_, err := s.BatchGet(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemStore(1).BatchPut(ctx, []KeyValue{{Key: "a"}})
	require.ErrorIs(t, err, context.Canceled)
}

func testStoreReadWrite(re *require.Assertions, s Store) {
	ctx := context.Background()

	got, err := s.BatchGet(ctx, []string{"k1", "k2"})
	re.NoError(err)
	re.Empty(got)

	re.NoError(s.BatchPut(ctx, []KeyValue{
		{Key: "k1", Value: []byte("v1")},
		{Key: "k2", Value: []byte("v2")},
	}))
	got, err = s.BatchGet(ctx, []string{"k1", "k2", "k3"})
	re.NoError(err)
	re.Equal(map[string][]byte{"k1": []byte("v1"), "k2": []byte("v2")}, got)

	re.NoError(s.BatchDelete(ctx, []string{"k1", "k3"}))
	got, err = s.BatchGet(ctx, []string{"k1", "k2"})
	re.NoError(err)
	re.Equal(map[string][]byte{"k2": []byte("v2")}, got)

	_, err = s.BatchGet(ctx, []string{""})
	re.Error(err)
	re.Error(s.BatchPut(ctx, []KeyValue{{Key: ""}}))

	// Batches larger than one etcd txn.
	kvs := make([]KeyValue, 0, 300)
	keys := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		k := fmt.Sprintf("bulk-%03d", i)
		kvs = append(kvs, KeyValue{Key: k, Value: []byte(k)})
		keys = append(keys, k)
	}
	re.NoError(s.BatchPut(ctx, kvs))
	got, err = s.BatchGet(ctx, keys)
	re.NoError(err)
	re.Len(got, 300)
	re.Equal([]byte("bulk-299"), got["bulk-299"])
	re.NoError(s.BatchDelete(ctx, keys))
}

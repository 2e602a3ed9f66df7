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

package reservation

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/etcdutil/etcdtest"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const testRootPath = "/qpsindex/"

func newTestAllocator(re *require.Assertions, client *clientv3.Client, jobID string) *Allocator {
	a, err := New(config.DefaultIndexConfig(), allocator.Deps{
		JobID:      jobID,
		EtcdClient: client,
		RootPath:   testRootPath,
	})
	re.NoError(err)
	return a
}

func TestReserveAndRelease(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()
	client := etcdtest.NewClient(t)

	a := newTestAllocator(re, client, "job-a")
	re.Equal("/qpsindex/qps/reservations", a.Key())

	granted, err := a.AcquireQPSResources(0.5, 100)
	re.NoError(err)
	re.Equal(0.5, granted)

	table, err := a.Table(ctx)
	re.NoError(err)
	re.Equal(Entry{Fraction: 0.5, Holders: 1}, table["job-a"])

	granted, err = a.AcquireQPSResources(0.5, 100)
	re.NoError(err)
	re.Equal(0.5, granted)
	table, err = a.Table(ctx)
	re.NoError(err)
	re.Equal(int64(2), table["job-a"].Holders)

	re.NoError(a.ReleaseQPSResources())
	re.NoError(a.ReleaseQPSResources())
	table, err = a.Table(ctx)
	re.NoError(err)
	re.Empty(table)

	// Releasing without a reservation is a no-op.
	re.NoError(a.ReleaseQPSResources())
	resp, err := client.Get(ctx, a.Key())
	re.NoError(err)
	re.Empty(resp.Kvs)
}

func TestGrantNeverExceedsFreeShare(t *testing.T) {
	re := require.New(t)
	client := etcdtest.NewClient(t)

	a := newTestAllocator(re, client, "job-a")
	b := newTestAllocator(re, client, "job-b")
	c := newTestAllocator(re, client, "job-c")

	granted, err := a.AcquireQPSResources(0.7, 100)
	re.NoError(err)
	re.Equal(0.7, granted)

	granted, err = b.AcquireQPSResources(0.5, 100)
	re.NoError(err)
	re.InDelta(0.3, granted, 1e-9)

	// Nothing is left, the job still gets the minimum fraction.
	granted, err = c.AcquireQPSResources(0.5, 100)
	re.NoError(err)
	re.Equal(allocator.MinQPSFraction, granted)

	re.NoError(a.ReleaseQPSResources())
	granted, err = c.AcquireQPSResources(0.5, 100)
	re.NoError(err)
	re.Equal(0.5, granted)

	re.NoError(b.Close())
	re.NoError(c.Close())
	table, err := a.Table(context.Background())
	re.NoError(err)
	re.Empty(table)
}

func TestConcurrentJobs(t *testing.T) {
	re := require.New(t)
	client := etcdtest.NewClient(t)

	const jobs = 4
	allocators := make([]*Allocator, 0, jobs)
	for _, id := range []string{"job-0", "job-1", "job-2", "job-3"} {
		allocators = append(allocators, newTestAllocator(re, client, id))
	}

	grants := make([]float64, jobs)
	var wg sync.WaitGroup
	for i, a := range allocators {
		wg.Add(1)
		go func(i int, a *Allocator) {
			defer wg.Done()
			granted, err := a.AcquireQPSResources(0.4, 10)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			grants[i] = granted
		}(i, a)
	}
	wg.Wait()

	var sum float64
	for _, g := range grants {
		re.GreaterOrEqual(g, allocator.MinQPSFraction)
		sum += g
	}
	// Serializable txns never hand out more than the cluster, up to the minimum grant of late jobs.
	re.LessOrEqual(sum, 1+jobs*allocator.MinQPSFraction)

	table, err := allocators[0].Table(context.Background())
	re.NoError(err)
	re.Len(table, jobs)
}

func TestNewRequiresDeps(t *testing.T) {
	re := require.New(t)
	cfg := config.DefaultIndexConfig()

	_, err := New(cfg, allocator.Deps{JobID: "job"})
	re.ErrorIs(err, ErrMissingEtcdClient)

	cfg.AllocatorClassName = Name
	a, name := allocator.Resolve(cfg.AllocatorClassName, cfg, allocator.Deps{JobID: "job"})
	re.Equal(allocator.DefaultAllocatorName, name)
	re.IsType(&allocator.DefaultAllocator{}, a)
}

func TestTableReserved(t *testing.T) {
	table := Table{
		"a": {Fraction: 0.2, Holders: 1},
		"b": {Fraction: 0.3, Holders: 2},
		"c": {Fraction: 0.4, Holders: 0},
	}
	require.InDelta(t, 0.3, table.Reserved("a"), 1e-9)
	require.InDelta(t, 0.5, table.Reserved("d"), 1e-9)
}

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

// Package index keeps the location of every record of a table in the external key-value cluster.
//
// Lookups and updates are split into batches sent concurrently. Before a batch is sent the allocator of the
// index grants a fraction of the cluster capacity, the local limiter throttles the batch to that share, and
// the grant is released once the batch is done.
package index

import (
	"context"
	"sync"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"
	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/limiter"
	"github.com/apache/incubator-horaedb-qpsindex/server/metrics"
	"github.com/apache/incubator-horaedb-qpsindex/server/status"
	"github.com/apache/incubator-horaedb-qpsindex/server/storage"
	"github.com/jonboulle/clockwork"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	// Built-in allocators register themselves.
	_ "github.com/apache/incubator-horaedb-qpsindex/server/allocator/bounded"
	_ "github.com/apache/incubator-horaedb-qpsindex/server/allocator/reservation"
)

const (
	opGet    = "get"
	opPut    = "put"
	opDelete = "delete"

	resultOk     = "ok"
	resultFailed = "failed"
)

type Options struct {
	JobID   string
	Config  config.IndexConfig
	Limiter config.LimiterConfig
	Store   storage.Store
	Probe   cluster.Probe

	// EtcdClient and RootPath are handed to the allocators that keep state in etcd.
	EtcdClient *clientv3.Client
	RootPath   string

	Clock clockwork.Clock
}

type Index struct {
	jobID     string
	cfg       config.IndexConfig
	store     storage.Store
	snapshots *cluster.SnapshotCache
	handle    *allocator.Handle
	limiter   *limiter.FlowLimiter
	status    *status.ServerStatus

	// lock is held for reading by every lookup and update, Close takes it for writing to wait for them.
	lock      sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// NewIndex resolves the allocator configured by opts.Config once for the whole life of the index.
// An allocator which can not be built is replaced by the default one, it never makes NewIndex fail.
func NewIndex(ctx context.Context, opts Options) (*Index, error) {
	if opts.Store == nil || opts.Probe == nil {
		return nil, ErrInvalidOptions.WithMessagef("store and probe are required")
	}
	cfg := withDefaults(opts.Config)

	snapshots := cluster.NewSnapshotCache(opts.Probe, cfg.SnapshotTTL(), opts.Clock)
	snapshot, err := snapshots.Get(ctx)
	if err != nil {
		return nil, ErrLoadSnapshot.WithCause(err)
	}

	handle := allocator.NewHandle(cfg, allocator.Deps{
		JobID:      opts.JobID,
		Snapshot:   snapshot,
		EtcdClient: opts.EtcdClient,
		RootPath:   opts.RootPath,
	})

	idx := &Index{
		jobID:     opts.JobID,
		cfg:       cfg,
		store:     opts.Store,
		snapshots: snapshots,
		handle:    handle,
		limiter:   limiter.NewFlowLimiter(opts.Limiter, cfg.MaxQPSPerRegionServer),
		status:    status.NewServerStatus(),
	}
	idx.status.Set(status.StatusRunning)

	log.Info("index created", zap.String("job", opts.JobID), zap.String("table", cfg.TableName),
		zap.String("allocator", handle.Name()), zap.Int("regionServers", snapshot.NumRegionServers))
	return idx, nil
}

// AllocatorName returns the name of the allocator the index resolved to.
func (i *Index) AllocatorName() string {
	return i.handle.Name()
}

func (i *Index) Limiter() *limiter.FlowLimiter {
	return i.limiter
}

func (i *Index) Status() Status {
	snapshot, _ := i.snapshots.Peek()
	return Status{
		Table:     i.cfg.TableName,
		Status:    i.status.Get().String(),
		Allocator: i.handle.Status(),
		Limiter:   i.limiter.Stats(),
		Snapshot:  snapshot,
	}
}

// Lookup returns the locations of the keys found in the index.
func (i *Index) Lookup(ctx context.Context, keys []string) (map[string]Location, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()

	if !i.status.IsHealthy() {
		return nil, ErrIndexClosed.WithMessagef("table:%s", i.cfg.TableName)
	}

	var (
		mu     sync.Mutex
		result = make(map[string]Location, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Parallelism)
	for _, batch := range splitBatches(keys, i.cfg.GetBatchSize) {
		batch := batch
		g.Go(func() error {
			return i.runBatch(gctx, opGet, i.cfg.QPSFraction, len(batch), func(ctx context.Context) error {
				values, err := i.store.BatchGet(ctx, batch)
				if err != nil {
					return coderr.Wrapf(err, "batch get, keys:%d", len(batch))
				}

				locations := make(map[string]Location, len(values))
				for key, value := range values {
					l, err := decodeLocation(key, value)
					if err != nil {
						return err
					}
					locations[key] = l
				}

				mu.Lock()
				defer mu.Unlock()
				for key, l := range locations {
					result[key] = l
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update writes the location of every record and removes the records without location.
// When a key appears more than once, its last record wins.
func (i *Index) Update(ctx context.Context, records []Record) error {
	i.lock.RLock()
	defer i.lock.RUnlock()

	if !i.status.IsHealthy() {
		return ErrIndexClosed.WithMessagef("table:%s", i.cfg.TableName)
	}
	for _, r := range records {
		if r.Key == "" {
			return ErrInvalidRecord.WithMessagef("empty key")
		}
	}
	records = latestRecords(records)
	if len(records) == 0 {
		return nil
	}

	snapshot, err := i.snapshots.Get(ctx)
	if err != nil {
		return ErrLoadSnapshot.WithCause(err)
	}
	fraction := i.putsFraction(int64(len(records)), snapshot)
	batchSize := i.putBatchSize(len(records), fraction, snapshot)
	log.Debug("update index", zap.String("table", i.cfg.TableName), zap.Int("records", len(records)),
		zap.Float64("fraction", fraction), zap.Int("batchSize", batchSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Parallelism)
	for _, batch := range splitBatches(records, batchSize) {
		batch := batch
		g.Go(func() error {
			return i.runBatch(gctx, opPut, fraction, len(batch), func(ctx context.Context) error {
				return i.writeBatch(ctx, batch)
			})
		})
	}
	return g.Wait()
}

func (i *Index) writeBatch(ctx context.Context, batch []Record) error {
	var (
		puts    = make([]storage.KeyValue, 0, len(batch))
		deletes = make([]string, 0)
	)
	for _, r := range batch {
		if r.IsDelete() {
			deletes = append(deletes, r.Key)
			continue
		}
		value, err := r.Location.encode()
		if err != nil {
			return err
		}
		puts = append(puts, storage.KeyValue{Key: r.Key, Value: value})
	}

	if len(puts) > 0 {
		if err := i.store.BatchPut(ctx, puts); err != nil {
			return coderr.Wrapf(err, "batch put, keys:%d", len(puts))
		}
		metrics.BatchKeys.WithLabelValues(opPut).Add(float64(len(puts)))
	}
	if len(deletes) > 0 {
		if err := i.store.BatchDelete(ctx, deletes); err != nil {
			return coderr.Wrapf(err, "batch delete, keys:%d", len(deletes))
		}
		metrics.BatchKeys.WithLabelValues(opDelete).Add(float64(len(deletes)))
	}
	return nil
}

// putsFraction is the desired fraction of a put stage. With dynamic qps it is computed by the allocator, when
// the allocator can, and kept within the configured bounds.
func (i *Index) putsFraction(numPuts int64, snapshot cluster.Snapshot) float64 {
	if !i.cfg.DynamicQPS {
		return i.cfg.QPSFraction
	}
	calc, ok := i.handle.Calculator()
	if !ok {
		return i.cfg.QPSFraction
	}
	desired := calc.CalculateQPSFractionForPutsTime(numPuts, snapshot.NumRegionServers)
	return allocator.ClampFraction(desired, i.cfg.MinQPSFraction, i.cfg.MaxQPSFraction)
}

func (i *Index) putBatchSize(numRecords int, fraction float64, snapshot cluster.Snapshot) int {
	if !i.cfg.PutBatchSizeAutoCompute {
		return i.cfg.PutBatchSize
	}
	numTasks := (numRecords + i.cfg.PutBatchSize - 1) / i.cfg.PutBatchSize
	return PutBatchSize(numTasks, i.cfg.Parallelism, snapshot.NumRegionServers, i.cfg.MaxQPSPerRegionServer,
		fraction, i.cfg.SleepMsForPutBatch)
}

// runBatch sends one batch between an acquire and a release of the allocator.
func (i *Index) runBatch(ctx context.Context, op string, desired float64, size int, send func(context.Context) error) (err error) {
	defer func() {
		result := resultOk
		if err != nil {
			result = resultFailed
		}
		metrics.Batches.WithLabelValues(op, result).Inc()
	}()

	granted, err := i.handle.Acquire(desired, int64(size))
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := i.handle.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	snapshot, err := i.snapshots.Get(ctx)
	if err != nil {
		return ErrLoadSnapshot.WithCause(err)
	}
	i.limiter.Update(granted, snapshot, size)

	start := time.Now()
	if err := i.limiter.Wait(ctx, size); err != nil {
		return coderr.Wrapf(err, "wait limiter, op:%s, keys:%d", op, size)
	}
	metrics.ThrottleSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if op == opGet {
		metrics.BatchKeys.WithLabelValues(opGet).Add(float64(size))
	}
	return send(ctx)
}

// Close waits for the lookups and updates in flight, then releases the allocator.
// The store is owned by the caller and stays open.
func (i *Index) Close() error {
	i.closeOnce.Do(func() {
		i.lock.Lock()
		defer i.lock.Unlock()

		i.status.Set(status.StatusTerminated)
		i.closeErr = i.handle.Close()
		log.Info("index closed", zap.String("job", i.jobID), zap.String("table", i.cfg.TableName), zap.Error(i.closeErr))
	})
	return i.closeErr
}

// withDefaults replaces the sizes which can not be used. The qps fraction is left to the allocator.
func withDefaults(cfg config.IndexConfig) config.IndexConfig {
	defaults := config.DefaultIndexConfig()
	if cfg.GetBatchSize <= 0 {
		cfg.GetBatchSize = defaults.GetBatchSize
	}
	if cfg.PutBatchSize <= 0 {
		cfg.PutBatchSize = defaults.PutBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaults.Parallelism
	}
	if cfg.MaxQPSPerRegionServer <= 0 {
		cfg.MaxQPSPerRegionServer = defaults.MaxQPSPerRegionServer
	}
	if cfg.SleepMsForPutBatch <= 0 {
		cfg.SleepMsForPutBatch = defaults.SleepMsForPutBatch
	}
	if cfg.ReservationTimeoutMs <= 0 {
		cfg.ReservationTimeoutMs = defaults.ReservationTimeoutMs
	}
	if cfg.ReservationKey == "" {
		cfg.ReservationKey = defaults.ReservationKey
	}
	return cfg
}

// latestRecords keeps the last record of every key, in the order the keys first appear.
func latestRecords(records []Record) []Record {
	positions := make(map[string]int, len(records))
	result := make([]Record, 0, len(records))
	for _, r := range records {
		if pos, ok := positions[r.Key]; ok {
			result[pos] = r
			continue
		}
		positions[r.Key] = len(result)
		result = append(result, r)
	}
	return result
}

func splitBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

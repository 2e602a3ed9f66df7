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

// Package reservation provides an allocator sharing the cluster capacity between the jobs running against it.
//
// Every job reserves the fraction it was granted in a table kept under one etcd key. A job is never granted more
// than what the other jobs leave free, and holds its reservation until all of its batches released it.
package reservation

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

const (
	Name = "etcd-reservation"

	delimiter = "/"
)

var (
	_ allocator.Allocator = &Allocator{}
)

func init() {
	allocator.MustRegister(Name, func(cfg config.IndexConfig, deps allocator.Deps) (allocator.Allocator, error) {
		return New(cfg, deps)
	})
}

// Entry is the reservation of one job.
type Entry struct {
	Fraction float64 `json:"fraction"`
	Holders  int64   `json:"holders"`
}

// Table maps job ids to their reservation.
type Table map[string]Entry

// Reserved sums the fractions reserved by the jobs other than jobID.
func (t Table) Reserved(jobID string) float64 {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	// Summing in a fixed order keeps the result stable.
	sort.Strings(ids)

	var sum float64
	for _, id := range ids {
		if id == jobID || t[id].Holders <= 0 {
			continue
		}
		sum += t[id].Fraction
	}
	return sum
}

type Allocator struct {
	client         *clientv3.Client
	key            string
	jobID          string
	requestTimeout time.Duration
}

func New(cfg config.IndexConfig, deps allocator.Deps) (*Allocator, error) {
	if deps.EtcdClient == nil {
		return nil, ErrMissingEtcdClient.WithMessagef("allocator:%s", Name)
	}
	if deps.JobID == "" {
		return nil, ErrMissingJobID.WithMessagef("allocator:%s", Name)
	}

	key := strings.Trim(cfg.ReservationKey, delimiter)
	return &Allocator{
		client:         deps.EtcdClient,
		key:            strings.Join([]string{strings.TrimSuffix(deps.RootPath, delimiter), key}, delimiter),
		jobID:          deps.JobID,
		requestTimeout: cfg.ReservationTimeout(),
	}, nil
}

// Key is the etcd key holding the reservation table.
func (a *Allocator) Key() string {
	return a.key
}

// AcquireQPSResources grants the desired fraction, reduced to what the other jobs leave free.
// The grant is never below allocator.MinQPSFraction so a job always makes progress.
func (a *Allocator) AcquireQPSResources(desiredFraction float64, numRecords int64) (float64, error) {
	desired := allocator.NormalizeFraction(desiredFraction)

	var granted float64
	err := a.update(func(table Table) {
		free := allocator.MaxQPSFraction - table.Reserved(a.jobID)
		granted = math.Max(math.Min(desired, free), allocator.MinQPSFraction)

		entry := table[a.jobID]
		entry.Fraction = granted
		entry.Holders++
		table[a.jobID] = entry
	})
	if err != nil {
		return 0, err
	}

	log.Debug("qps reserved", zap.String("job", a.jobID), zap.Float64("desired", desired),
		zap.Float64("granted", granted), zap.Int64("records", numRecords))
	return granted, nil
}

// ReleaseQPSResources drops one holder of the reservation and removes it once nothing holds it.
func (a *Allocator) ReleaseQPSResources() error {
	return a.update(func(table Table) {
		entry, ok := table[a.jobID]
		if !ok {
			return
		}
		entry.Holders--
		if entry.Holders <= 0 {
			delete(table, a.jobID)
			return
		}
		table[a.jobID] = entry
	})
}

// Close removes the reservation of the job whatever holds it.
func (a *Allocator) Close() error {
	return a.update(func(table Table) {
		delete(table, a.jobID)
	})
}

// Table reads the current reservation table.
func (a *Allocator) Table(ctx context.Context) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	resp, err := a.client.Get(ctx, a.key)
	if err != nil {
		return nil, ErrReservationTxn.WithCausef(err, "get table, key:%s", a.key)
	}
	if len(resp.Kvs) == 0 {
		return Table{}, nil
	}
	return decodeTable(string(resp.Kvs[0].Value))
}

func (a *Allocator) update(modify func(Table)) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.requestTimeout)
	defer cancel()

	apply := func(s concurrency.STM) error {
		table, err := decodeTable(s.Get(a.key))
		if err != nil {
			return err
		}
		modify(table)

		if len(table) == 0 {
			s.Del(a.key)
			return nil
		}
		value, err := json.Marshal(table)
		if err != nil {
			return ErrCorruptedReservation.WithCause(err)
		}
		s.Put(a.key, string(value))
		return nil
	}

	_, err := concurrency.NewSTM(a.client, apply,
		concurrency.WithAbortContext(ctx),
		concurrency.WithIsolation(concurrency.SerializableSnapshot))
	if err != nil {
		return ErrReservationTxn.WithCausef(err, "key:%s, job:%s", a.key, a.jobID)
	}
	return nil
}

func decodeTable(value string) (Table, error) {
	table := Table{}
	if value == "" {
		return table, nil
	}
	if err := json.Unmarshal([]byte(value), &table); err != nil {
		return nil, ErrCorruptedReservation.WithCause(err)
	}
	return table, nil
}

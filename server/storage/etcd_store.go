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
	"strings"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	delimiter = "/"
	// maxTxnOps is the default limit of operations in one etcd txn.
	maxTxnOps = 128
)

var _ Store = &EtcdStore{}

// EtcdStore keeps the index of one table in etcd, every batch is sent as one or more txns.
// The client is owned by the caller.
type EtcdStore struct {
	client   *clientv3.Client
	rootPath string

	requestTimeout time.Duration
}

func NewEtcdStore(client *clientv3.Client, rootPath, table string, requestTimeout time.Duration) *EtcdStore {
	return &EtcdStore{
		client:         client,
		rootPath:       strings.Join([]string{strings.TrimSuffix(rootPath, delimiter), table}, delimiter),
		requestTimeout: requestTimeout,
	}
}

func (s *EtcdStore) key(k string) string {
	return strings.Join([]string{s.rootPath, k}, delimiter)
}

func (s *EtcdStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	err := s.forEachChunk(len(keys), func(start, end int) error {
		ops := make([]clientv3.Op, 0, end-start)
		for _, k := range keys[start:end] {
			ops = append(ops, clientv3.OpGet(s.key(k)))
		}

		resp, err := s.commit(ctx, ops)
		if err != nil {
			return ErrEtcdKVGet.WithCause(err)
		}
		for i, r := range resp.Responses {
			rangeResp := r.GetResponseRange()
			if rangeResp == nil || len(rangeResp.Kvs) == 0 {
				continue
			}
			result[keys[start+i]] = rangeResp.Kvs[0].Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *EtcdStore) BatchPut(ctx context.Context, kvs []KeyValue) error {
	for _, kv := range kvs {
		if kv.Key == "" {
			return ErrEmptyKey.WithMessagef("batch of %d key values", len(kvs))
		}
	}

	return s.forEachChunk(len(kvs), func(start, end int) error {
		ops := make([]clientv3.Op, 0, end-start)
		for _, kv := range kvs[start:end] {
			ops = append(ops, clientv3.OpPut(s.key(kv.Key), string(kv.Value)))
		}
		if _, err := s.commit(ctx, ops); err != nil {
			e := ErrEtcdKVPut.WithCause(err)
			log.Error("save to etcd meet error", zap.Int("batchSize", end-start), zap.Error(e))
			return e
		}
		return nil
	})
}

func (s *EtcdStore) BatchDelete(ctx context.Context, keys []string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	return s.forEachChunk(len(keys), func(start, end int) error {
		ops := make([]clientv3.Op, 0, end-start)
		for _, k := range keys[start:end] {
			ops = append(ops, clientv3.OpDelete(s.key(k)))
		}
		if _, err := s.commit(ctx, ops); err != nil {
			e := ErrEtcdKVDelete.WithCause(err)
			log.Error("remove from etcd meet error", zap.Int("batchSize", end-start), zap.Error(e))
			return e
		}
		return nil
	})
}

func (s *EtcdStore) Close() error {
	return nil
}

func (s *EtcdStore) commit(ctx context.Context, ops []clientv3.Op) (*clientv3.TxnResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return nil, err
	}
	if !resp.Succeeded {
		return nil, ErrEtcdTxnAborted.WithMessagef("ops:%d", len(ops))
	}
	return resp, nil
}

func (s *EtcdStore) forEachChunk(n int, do func(start, end int) error) error {
	for start := 0; start < n; start += maxTxnOps {
		end := start + maxTxnOps
		if end > n {
			end = n
		}
		if err := do(start, end); err != nil {
			return err
		}
	}
	return nil
}

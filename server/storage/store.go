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
)

type KeyValue struct {
	Key   string
	Value []byte
}

// Store is the client of the external key-value cluster the index lives in.
// Connection management and retries belong to the implementations.
type Store interface {
	// BatchGet returns the values of the keys found, missing keys are absent from the result.
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)
	BatchPut(ctx context.Context, kvs []KeyValue) error
	BatchDelete(ctx context.Context, keys []string) error
	Close() error
}

func validateKeys(keys []string) error {
	for _, key := range keys {
		if key == "" {
			return ErrEmptyKey.WithMessagef("batch of %d keys", len(keys))
		}
	}
	return nil
}

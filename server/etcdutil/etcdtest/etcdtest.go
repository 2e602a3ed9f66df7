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

// Package etcdtest starts throwaway etcd members for tests.
package etcdtest

import (
	"net/url"
	"testing"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/server/etcdutil"
	"github.com/stretchr/testify/require"
	"github.com/tikv/pd/pkg/tempurl"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const startTimeout = 10 * time.Second

// NewClient starts a single member etcd under a temporary directory and returns a client connected to it.
// Both are closed when the test ends.
func NewClient(t *testing.T) *clientv3.Client {
	re := require.New(t)

	peerURL, err := url.Parse(tempurl.Alloc())
	re.NoError(err)
	clientURL, err := url.Parse(tempurl.Alloc())
	re.NoError(err)

	cfg := etcdutil.NewEmbedConfig("test_etcd", t.TempDir(), clientURL, peerURL)
	etcd, err := etcdutil.StartEmbed(cfg, startTimeout)
	re.NoError(err)

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{clientURL.String()},
		DialTimeout: startTimeout,
	})
	re.NoError(err)

	t.Cleanup(func() {
		_ = client.Close()
		etcd.Close()
	})
	return client
}

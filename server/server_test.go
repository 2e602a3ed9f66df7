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

package server

import (
	"context"
	"testing"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/status"
	"github.com/stretchr/testify/require"
)

const defaultTestTimeout = 10 * time.Second

func newTestConfig(re *require.Assertions, args ...string) *config.Config {
	cfg, err := config.MakeConfigParser().Parse(append([]string{"-http-port=0"}, args...))
	re.NoError(err)
	re.NoError(cfg.ValidateAndAdjust())
	return cfg
}

func TestServerRunsJob(t *testing.T) {
	re := require.New(t)
	cfg := newTestConfig(re, "-num-records=300", "-allocator-class-name=bounded", "-max-qps-per-region-server=100000")

	srv, err := CreateServer(context.Background(), cfg)
	re.NoError(err)
	re.NoError(srv.Run())
	re.Equal(status.StatusRunning, srv.status.Get())
	re.Equal("bounded", srv.index.AllocatorName())

	select {
	case err := <-srv.Done():
		re.NoError(err)
	case <-time.After(defaultTestTimeout):
		re.FailNow("index job does not finish in time")
	}
	re.Equal(300, srv.JobResult().Updated)

	srv.Close()
	srv.Close()
	re.Equal(status.StatusTerminated, srv.status.Get())
}

func TestServerFallsBackOnUnknownAllocator(t *testing.T) {
	re := require.New(t)
	cfg := newTestConfig(re, "-num-records=10", "-allocator-class-name=com.example.MissingAllocator")

	srv, err := CreateServer(context.Background(), cfg)
	re.NoError(err)
	re.NoError(srv.Run())
	defer srv.Close()
	re.Equal("default", srv.index.AllocatorName())

	select {
	case err := <-srv.Done():
		re.NoError(err)
	case <-time.After(defaultTestTimeout):
		re.FailNow("index job does not finish in time")
	}
}

func TestServerFailsOnMissingInput(t *testing.T) {
	re := require.New(t)
	cfg := newTestConfig(re, "-input=/not/exist/records.csv")

	srv, err := CreateServer(context.Background(), cfg)
	re.NoError(err)
	re.NoError(srv.Run())
	defer srv.Close()

	select {
	case err := <-srv.Done():
		re.ErrorIs(err, ErrLoadRecords)
	case <-time.After(defaultTestTimeout):
		re.FailNow("index job does not finish in time")
	}
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"
	"github.com/stretchr/testify/require"
)

func noEnv() []string { return nil }

func TestParseDefaults(t *testing.T) {
	re := require.New(t)
	cfg, err := makeConfigParser(noEnv).Parse(nil)
	re.NoError(err)
	re.NoError(cfg.ValidateAndAdjust())

	re.Equal(DefaultQPSFraction, cfg.Index.QPSFraction)
	re.Equal("", cfg.Index.AllocatorClassName)
	re.Equal(100, cfg.Index.GetBatchSize)
	re.Equal(StoreTypeMemory, cfg.Store.Type)
	re.NotEmpty(cfg.JobID)
	re.Equal([]string{"127.0.0.1:2379"}, cfg.Etcd.EndpointList())
}

func TestParsePriority(t *testing.T) {
	re := require.New(t)
	path := filepath.Join(t.TempDir(), "qpsindex.toml")
	content := `
job-id = "job-from-file"

[index]
qps-fraction = 0.3
allocator-class-name = "bounded"
get-batch-size = 50

[log]
level = "warn"
`
	re.NoError(os.WriteFile(path, []byte(content), 0o600))

	environ := func() []string {
		return []string{"QPS_INDEX_GET_BATCH_SIZE=70", "QPS_JOB_ID=job-from-env", "UNRELATED=1"}
	}
	cfg, err := makeConfigParser(environ).Parse([]string{"-config", path, "-job-id", "job-from-flag"})
	re.NoError(err)

	re.Equal(0.3, cfg.Index.QPSFraction)
	re.Equal("bounded", cfg.Index.AllocatorClassName)
	re.Equal("warn", cfg.Log.Level)
	re.Equal(70, cfg.Index.GetBatchSize)
	re.Equal("job-from-flag", cfg.JobID)
}

func TestParseFlagsOverrideFileAndEnv(t *testing.T) {
	re := require.New(t)
	path := filepath.Join(t.TempDir(), "qpsindex.toml")
	content := `
[index]
qps-fraction = 0.3
parallelism = 2

[limiter]
enable = false
`
	re.NoError(os.WriteFile(path, []byte(content), 0o600))

	environ := func() []string {
		return []string{"QPS_INDEX_QPS_FRACTION=0.4", "QPS_INDEX_PARALLELISM=6", "QPS_LIMITER_ENABLE=false"}
	}
	cfg, err := makeConfigParser(environ).Parse([]string{"-config", path, "-qps-fraction", "0.9", "-enable-limiter=true"})
	re.NoError(err)

	re.Equal(0.9, cfg.Index.QPSFraction)
	re.True(cfg.Limiter.Enable)
	// Not given on the command line, the environment wins over the file.
	re.Equal(6, cfg.Index.Parallelism)
}

func TestParseUnknownFileField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("no-such-option = 1\n"), 0o600))

	_, err := makeConfigParser(noEnv).Parse([]string{"-config", path})
	require.Error(t, err)
	require.True(t, coderr.Is(err, coderr.InvalidParams))
}

func TestParseInvalidArgs(t *testing.T) {
	_, err := makeConfigParser(noEnv).Parse([]string{"-qps-fraction", "half"})
	require.Error(t, err)

	_, err = makeConfigParser(noEnv).Parse([]string{"-h"})
	require.True(t, coderr.Is(err, coderr.PrintHelpUsage))
}

func TestIndexConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *IndexConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(_ *IndexConfig) {}},
		{name: "full fraction", mutate: func(c *IndexConfig) { c.QPSFraction = 1 }},
		{name: "zero fraction", mutate: func(c *IndexConfig) { c.QPSFraction = 0 }, wantErr: true},
		{name: "negative fraction", mutate: func(c *IndexConfig) { c.QPSFraction = -0.1 }, wantErr: true},
		{name: "fraction over one", mutate: func(c *IndexConfig) { c.QPSFraction = 1.01 }, wantErr: true},
		{name: "zero batch", mutate: func(c *IndexConfig) { c.GetBatchSize = 0 }, wantErr: true},
		{name: "zero parallelism", mutate: func(c *IndexConfig) { c.Parallelism = 0 }, wantErr: true},
		{name: "zero region server qps", mutate: func(c *IndexConfig) { c.MaxQPSPerRegionServer = 0 }, wantErr: true},
		{name: "unknown allocator is fine", mutate: func(c *IndexConfig) { c.AllocatorClassName = "InvalidResourceAllocatorClassName" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultIndexConfig()
			tc.mutate(&cfg)
			err := cfg.ValidateAndAdjust()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIndexConfigSwapBounds(t *testing.T) {
	re := require.New(t)
	cfg := DefaultIndexConfig()
	cfg.MinQPSFraction, cfg.MaxQPSFraction = 0.5, 0.1
	re.NoError(cfg.ValidateAndAdjust())
	re.Equal(0.1, cfg.MinQPSFraction)
	re.Equal(0.5, cfg.MaxQPSFraction)
}

func TestValidateStore(t *testing.T) {
	re := require.New(t)
	cfg, err := makeConfigParser(noEnv).Parse([]string{"-store-type", "hbase"})
	re.NoError(err)
	re.Error(cfg.ValidateAndAdjust())

	cfg, err = makeConfigParser(noEnv).Parse([]string{"-store-type", "etcd", "-etcd-endpoints", " , "})
	re.NoError(err)
	re.Error(cfg.ValidateAndAdjust())
}

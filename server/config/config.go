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
	"bytes"
	"flag"
	"math"
	"os"
	"strings"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	EnvPrefix = "QPS_"

	StoreTypeMemory = "memory"
	StoreTypeEtcd   = "etcd"

	DefaultQPSFraction    = 0.5
	DefaultMinQPSFraction = 0.002
	DefaultMaxQPSFraction = 0.06

	defaultMaxQPSPerRegionServer = 1000
	defaultGetBatchSize          = 100
	defaultPutBatchSize          = 100
	defaultSleepMsForPutBatch    = 100
	defaultParallelism           = 4
	defaultTableName             = "record_index"
	defaultReservationKey        = "qps/reservations"

	defaultSnapshotTTLMs        int64 = 30 * 1000
	defaultReservationTimeoutMs int64 = 3 * 1000
	defaultEtcdDialTimeoutMs    int64 = 5 * 1000
	defaultEtcdCallTimeoutMs    int64 = 5 * 1000
	defaultHTTPReadTimeoutMs    int64 = 5 * 1000
	defaultHTTPWriteTimeoutMs   int64 = 5 * 1000

	defaultEnableLimiter = true

	defaultMemRegionServers = 3
	defaultEtcdEndpoints    = "127.0.0.1:2379"
	defaultEtcdRootPath     = "/qpsindex"
	defaultHTTPPort         = 8080
	defaultNumRecords       = 10000
)

// IndexConfig holds the options consumed by the record index and by its qps resource allocator.
type IndexConfig struct {
	TableName string `toml:"table-name" json:"table-name" env:"TABLE_NAME"`
	// QPSFraction is the desired share of the cluster capacity the job may consume, in (0, 1].
	QPSFraction float64 `toml:"qps-fraction" json:"qps-fraction" env:"QPS_FRACTION"`
	// AllocatorClassName names the registered allocator. Empty selects the default allocator.
	AllocatorClassName string `toml:"allocator-class-name" json:"allocator-class-name" env:"ALLOCATOR_CLASS_NAME"`

	GetBatchSize            int  `toml:"get-batch-size" json:"get-batch-size" env:"GET_BATCH_SIZE"`
	PutBatchSize            int  `toml:"put-batch-size" json:"put-batch-size" env:"PUT_BATCH_SIZE"`
	PutBatchSizeAutoCompute bool `toml:"put-batch-size-auto-compute" json:"put-batch-size-auto-compute" env:"PUT_BATCH_SIZE_AUTO_COMPUTE"`

	MaxQPSPerRegionServer int `toml:"max-qps-per-region-server" json:"max-qps-per-region-server" env:"MAX_QPS_PER_REGION_SERVER"`
	// DynamicQPS lets the allocator compute the desired fraction of every put stage.
	DynamicQPS     bool    `toml:"dynamic-qps" json:"dynamic-qps" env:"DYNAMIC_QPS"`
	MinQPSFraction float64 `toml:"min-qps-fraction" json:"min-qps-fraction" env:"MIN_QPS_FRACTION"`
	MaxQPSFraction float64 `toml:"max-qps-fraction" json:"max-qps-fraction" env:"MAX_QPS_FRACTION"`

	SleepMsForPutBatch int `toml:"sleep-ms-for-put-batch" json:"sleep-ms-for-put-batch" env:"SLEEP_MS_FOR_PUT_BATCH"`
	// Parallelism is the number of batches issued concurrently against the store.
	Parallelism   int   `toml:"parallelism" json:"parallelism" env:"PARALLELISM"`
	SnapshotTTLMs int64 `toml:"snapshot-ttl-ms" json:"snapshot-ttl-ms" env:"SNAPSHOT_TTL_MS"`

	ReservationKey       string `toml:"reservation-key" json:"reservation-key" env:"RESERVATION_KEY"`
	ReservationTimeoutMs int64  `toml:"reservation-timeout-ms" json:"reservation-timeout-ms" env:"RESERVATION_TIMEOUT_MS"`
}

func (c *IndexConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMs) * time.Millisecond
}

func (c *IndexConfig) ReservationTimeout() time.Duration {
	return time.Duration(c.ReservationTimeoutMs) * time.Millisecond
}

// LimiterConfig tunes the local throttle of the index. The rate itself follows the granted qps fraction.
type LimiterConfig struct {
	// Limit caps the derived rate in ops per second, 0 means no cap.
	Limit int `toml:"limit" json:"limit" env:"LIMIT"`
	// Burst is the least burst of the limiter, it is raised to the batch size when smaller.
	Burst  int  `toml:"burst" json:"burst" env:"BURST"`
	Enable bool `toml:"enable" json:"enable" env:"ENABLE"`
}

type StoreConfig struct {
	// Type is either 'memory' or 'etcd'.
	Type             string `toml:"type" json:"type" env:"TYPE"`
	MemRegionServers int    `toml:"mem-region-servers" json:"mem-region-servers" env:"MEM_REGION_SERVERS"`
}

type EtcdConfig struct {
	Endpoints     string `toml:"endpoints" json:"endpoints" env:"ENDPOINTS"`
	RootPath      string `toml:"root-path" json:"root-path" env:"ROOT_PATH"`
	DialTimeoutMs int64  `toml:"dial-timeout-ms" json:"dial-timeout-ms" env:"DIAL_TIMEOUT_MS"`
	CallTimeoutMs int64  `toml:"call-timeout-ms" json:"call-timeout-ms" env:"CALL_TIMEOUT_MS"`
}

func (c *EtcdConfig) EndpointList() []string {
	items := strings.Split(c.Endpoints, ",")
	endpoints := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			endpoints = append(endpoints, item)
		}
	}
	return endpoints
}

func (c *EtcdConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

func (c *EtcdConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

type Config struct {
	Log log.Config `toml:"log" json:"log" envPrefix:"LOG_"`

	JobID string      `toml:"job-id" json:"job-id" env:"JOB_ID"`
	Index   IndexConfig   `toml:"index" json:"index" envPrefix:"INDEX_"`
	Limiter LimiterConfig `toml:"limiter" json:"limiter" envPrefix:"LIMITER_"`
	Store   StoreConfig   `toml:"store" json:"store" envPrefix:"STORE_"`
	Etcd    EtcdConfig    `toml:"etcd" json:"etcd" envPrefix:"ETCD_"`

	HTTPPort           int   `toml:"http-port" json:"http-port" env:"HTTP_PORT"`
	HTTPReadTimeoutMs  int64 `toml:"http-read-timeout-ms" json:"http-read-timeout-ms" env:"HTTP_READ_TIMEOUT_MS"`
	HTTPWriteTimeoutMs int64 `toml:"http-write-timeout-ms" json:"http-write-timeout-ms" env:"HTTP_WRITE_TIMEOUT_MS"`

	// Input is a file of records, one `key,partition,file-id` per line. Records are generated when it is empty.
	Input      string `toml:"input" json:"input" env:"INPUT"`
	NumRecords int    `toml:"num-records" json:"num-records" env:"NUM_RECORDS"`

	ConfigFile string `toml:"-" json:"-"`
}

func (c *Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTPReadTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPWriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteTimeoutMs) * time.Millisecond
}

// DefaultIndexConfig returns the index options used when nothing is configured.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		TableName:               defaultTableName,
		QPSFraction:             DefaultQPSFraction,
		AllocatorClassName:      "",
		GetBatchSize:            defaultGetBatchSize,
		PutBatchSize:            defaultPutBatchSize,
		PutBatchSizeAutoCompute: false,
		MaxQPSPerRegionServer:   defaultMaxQPSPerRegionServer,
		DynamicQPS:              false,
		MinQPSFraction:          DefaultMinQPSFraction,
		MaxQPSFraction:          DefaultMaxQPSFraction,
		SleepMsForPutBatch:      defaultSleepMsForPutBatch,
		Parallelism:             defaultParallelism,
		SnapshotTTLMs:           defaultSnapshotTTLMs,
		ReservationKey:          defaultReservationKey,
		ReservationTimeoutMs:    defaultReservationTimeoutMs,
	}
}

// ValidateAndAdjust validates the config fields and adjusts some fields which should be adjusted.
// Return error if any field is invalid.
func (c *Config) ValidateAndAdjust() error {
	if err := c.Index.ValidateAndAdjust(); err != nil {
		return err
	}

	switch c.Store.Type {
	case StoreTypeMemory:
		if c.Store.MemRegionServers <= 0 {
			return ErrInvalidConfig.WithMessagef("mem-region-servers must be positive, got:%d", c.Store.MemRegionServers)
		}
	case StoreTypeEtcd:
		if len(c.Etcd.EndpointList()) == 0 {
			return ErrInvalidConfig.WithMessagef("etcd endpoints are required by the etcd store")
		}
	default:
		return ErrInvalidConfig.WithMessagef("unknown store type:%s", c.Store.Type)
	}

	if c.Limiter.Limit < 0 || c.Limiter.Burst < 0 {
		return ErrInvalidConfig.WithMessagef("limiter limit and burst must not be negative, limit:%d, burst:%d", c.Limiter.Limit, c.Limiter.Burst)
	}

	if c.JobID == "" {
		c.JobID = uuid.NewString()
	}
	return nil
}

// ValidateAndAdjust checks the index options. The allocator class name is never validated here, an unknown
// name is resolved to the default allocator when the index is built.
func (c *IndexConfig) ValidateAndAdjust() error {
	if math.IsNaN(c.QPSFraction) || c.QPSFraction <= 0 || c.QPSFraction > 1 {
		return ErrInvalidConfig.WithMessagef("qps-fraction must be in (0, 1], got:%v", c.QPSFraction)
	}
	if c.GetBatchSize <= 0 || c.PutBatchSize <= 0 {
		return ErrInvalidConfig.WithMessagef("batch sizes must be positive, get:%d, put:%d", c.GetBatchSize, c.PutBatchSize)
	}
	if c.MaxQPSPerRegionServer <= 0 {
		return ErrInvalidConfig.WithMessagef("max-qps-per-region-server must be positive, got:%d", c.MaxQPSPerRegionServer)
	}
	if c.Parallelism <= 0 {
		return ErrInvalidConfig.WithMessagef("parallelism must be positive, got:%d", c.Parallelism)
	}
	if c.SleepMsForPutBatch <= 0 {
		return ErrInvalidConfig.WithMessagef("sleep-ms-for-put-batch must be positive, got:%d", c.SleepMsForPutBatch)
	}
	if c.MinQPSFraction > c.MaxQPSFraction {
		log.Warn("min qps fraction is larger than max qps fraction, swap them",
			zap.Float64("min", c.MinQPSFraction), zap.Float64("max", c.MaxQPSFraction))
		c.MinQPSFraction, c.MaxQPSFraction = c.MaxQPSFraction, c.MinQPSFraction
	}
	if c.MinQPSFraction <= 0 || c.MaxQPSFraction > 1 {
		return ErrInvalidConfig.WithMessagef("qps fraction bounds must be in (0, 1], min:%v, max:%v", c.MinQPSFraction, c.MaxQPSFraction)
	}
	return nil
}

// Parser builds the config from the flags, an optional toml file and the environment.
// Priority from low to high: defaults, file, environment, explicitly set flags.
type Parser struct {
	flagSet *flag.FlagSet
	cfg     *Config
	lookup  func() []string
}

func (p *Parser) Parse(arguments []string) (*Config, error) {
	if err := p.flagSet.Parse(arguments); err != nil {
		if err == flag.ErrHelp {
			return nil, ErrHelpRequested.WithCause(err)
		}
		return nil, ErrInvalidCommandArgs.WithCausef(err, "original arguments:%v", arguments)
	}

	// The file and the environment write to the same fields as the flags, keep the explicit ones aside.
	explicit := make(map[string]string)
	p.flagSet.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if p.cfg.ConfigFile != "" {
		if err := p.loadFile(p.cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := p.loadEnv(); err != nil {
		return nil, err
	}

	// Flags given on the command line always win.
	for name, value := range explicit {
		if err := p.flagSet.Set(name, value); err != nil {
			return nil, ErrInvalidCommandArgs.WithCausef(err, "flag:%s", name)
		}
	}

	return p.cfg, nil
}

func (p *Parser) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrLoadConfigFile.WithCausef(err, "path:%s", path)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := decoder.Decode(p.cfg); err != nil {
		return ErrLoadConfigFile.WithCausef(err, "path:%s", path)
	}
	return nil
}

func (p *Parser) loadEnv() error {
	opts := env.Options{Prefix: EnvPrefix}
	if p.lookup != nil {
		opts.Environment = toEnvMap(p.lookup())
	}
	if err := env.Parse(p.cfg, opts); err != nil {
		return ErrLoadEnv.WithCause(err)
	}
	return nil
}

func toEnvMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

func MakeConfigParser() *Parser {
	return makeConfigParser(nil)
}

func makeConfigParser(lookup func() []string) *Parser {
	fs, cfg := flag.NewFlagSet("qpsindex", flag.ContinueOnError), &Config{}
	builder := &Parser{
		flagSet: fs,
		cfg:     cfg,
		lookup:  lookup,
	}
	defaults := DefaultIndexConfig()

	fs.StringVar(&cfg.ConfigFile, "config", "", "toml config file")
	fs.StringVar(&cfg.Log.Level, "log-level", log.DefaultLogLevel, "level of the log")
	fs.StringVar(&cfg.Log.File, "log-file", log.DefaultLogFile, "file for log output")
	fs.StringVar(&cfg.JobID, "job-id", "", "id of the indexing job, a random one is generated if empty")

	fs.StringVar(&cfg.Index.TableName, "table-name", defaults.TableName, "table holding the record index")
	fs.Float64Var(&cfg.Index.QPSFraction, "qps-fraction", defaults.QPSFraction, "desired fraction of the cluster capacity the job may consume")
	fs.StringVar(&cfg.Index.AllocatorClassName, "allocator-class-name", defaults.AllocatorClassName, "name of the qps resource allocator, empty for the default one")
	fs.IntVar(&cfg.Index.GetBatchSize, "get-batch-size", defaults.GetBatchSize, "number of keys per batch get")
	fs.IntVar(&cfg.Index.PutBatchSize, "put-batch-size", defaults.PutBatchSize, "number of keys per batch put")
	fs.BoolVar(&cfg.Index.PutBatchSizeAutoCompute, "put-batch-size-auto-compute", defaults.PutBatchSizeAutoCompute, "compute the put batch size from the cluster capacity")
	fs.IntVar(&cfg.Index.MaxQPSPerRegionServer, "max-qps-per-region-server", defaults.MaxQPSPerRegionServer, "max requests per second a region server can serve")
	fs.BoolVar(&cfg.Index.DynamicQPS, "dynamic-qps", defaults.DynamicQPS, "let the allocator compute the desired fraction of each put stage")
	fs.Float64Var(&cfg.Index.MinQPSFraction, "min-qps-fraction", defaults.MinQPSFraction, "lower bound of a dynamically computed fraction")
	fs.Float64Var(&cfg.Index.MaxQPSFraction, "max-qps-fraction", defaults.MaxQPSFraction, "upper bound of a dynamically computed fraction")
	fs.IntVar(&cfg.Index.SleepMsForPutBatch, "sleep-ms-for-put-batch", defaults.SleepMsForPutBatch, "expected interval between two put batches of one task")
	fs.IntVar(&cfg.Index.Parallelism, "parallelism", defaults.Parallelism, "number of concurrent batches")
	fs.Int64Var(&cfg.Index.SnapshotTTLMs, "snapshot-ttl-ms", defaults.SnapshotTTLMs, "how long a cluster snapshot is reused")
	fs.StringVar(&cfg.Index.ReservationKey, "reservation-key", defaults.ReservationKey, "etcd key of the shared qps reservations, relative to the root path")
	fs.Int64Var(&cfg.Index.ReservationTimeoutMs, "reservation-timeout-ms", defaults.ReservationTimeoutMs, "timeout of one reservation transaction")

	fs.BoolVar(&cfg.Limiter.Enable, "enable-limiter", defaultEnableLimiter, "throttle batches by the granted qps fraction")
	fs.IntVar(&cfg.Limiter.Limit, "limiter-limit", 0, "cap of the throttle rate in ops per second, 0 means no cap")
	fs.IntVar(&cfg.Limiter.Burst, "limiter-burst", 0, "least burst of the throttle")

	fs.StringVar(&cfg.Store.Type, "store-type", StoreTypeMemory, "type of the external store, memory or etcd")
	fs.IntVar(&cfg.Store.MemRegionServers, "mem-region-servers", defaultMemRegionServers, "number of region servers simulated by the memory store")

	fs.StringVar(&cfg.Etcd.Endpoints, "etcd-endpoints", defaultEtcdEndpoints, "comma separated etcd endpoints")
	fs.StringVar(&cfg.Etcd.RootPath, "etcd-root-path", defaultEtcdRootPath, "root path of all the keys in etcd")
	fs.Int64Var(&cfg.Etcd.DialTimeoutMs, "etcd-dial-timeout-ms", defaultEtcdDialTimeoutMs, "timeout for dialing etcd server")
	fs.Int64Var(&cfg.Etcd.CallTimeoutMs, "etcd-call-timeout-ms", defaultEtcdCallTimeoutMs, "timeout for one etcd request")

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "port of the status http service")
	fs.Int64Var(&cfg.HTTPReadTimeoutMs, "http-read-timeout-ms", defaultHTTPReadTimeoutMs, "read timeout of the status http service")
	fs.Int64Var(&cfg.HTTPWriteTimeoutMs, "http-write-timeout-ms", defaultHTTPWriteTimeoutMs, "write timeout of the status http service")

	fs.StringVar(&cfg.Input, "input", "", "file of records to index, one key,partition,file-id per line")
	fs.IntVar(&cfg.NumRecords, "num-records", defaultNumRecords, "number of generated records when no input is given")

	return builder
}

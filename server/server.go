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
	"sync"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/etcdutil"
	"github.com/apache/incubator-horaedb-qpsindex/server/index"
	"github.com/apache/incubator-horaedb-qpsindex/server/service/http"
	"github.com/apache/incubator-horaedb-qpsindex/server/status"
	"github.com/apache/incubator-horaedb-qpsindex/server/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const httpStopTimeout = 5 * time.Second

// Server runs one index job and serves its status over http until it is closed.
type Server struct {
	ctx         context.Context
	bgJobCtx    context.Context
	bgJobCancel func()
	bgJobWg     sync.WaitGroup

	cfg    *config.Config
	status *status.ServerStatus

	// etcd client, only created for the etcd store.
	etcdClient *clientv3.Client
	store      storage.Store
	probe      cluster.Probe
	index      *index.Index

	httpService *http.Service

	jobDone   chan error
	jobResult JobResult
	closeOnce sync.Once
}

// CreateServer creates the server instance without starting any services or background jobs.
func CreateServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	srv := &Server{
		ctx:     ctx,
		cfg:     cfg,
		status:  status.NewServerStatus(),
		jobDone: make(chan error, 1),
	}
	return srv, nil
}

// Run builds the store and the index, then starts the http service and the index job.
func (srv *Server) Run() error {
	if err := srv.createStore(); err != nil {
		return err
	}

	idx, err := index.NewIndex(srv.ctx, index.Options{
		JobID:      srv.cfg.JobID,
		Config:     srv.cfg.Index,
		Limiter:    srv.cfg.Limiter,
		Store:      srv.store,
		Probe:      srv.probe,
		EtcdClient: srv.etcdClient,
		RootPath:   srv.cfg.Etcd.RootPath,
	})
	if err != nil {
		return ErrCreateIndex.WithCause(err)
	}
	srv.index = idx

	api := http.NewAPI(idx, srv.status)
	srv.httpService = http.NewHTTPService(srv.cfg.HTTPPort, srv.cfg.HTTPReadTimeout(), srv.cfg.HTTPWriteTimeout(), api.NewAPIRouter())

	srv.startBgJobs()
	srv.status.Set(status.StatusRunning)
	return nil
}

// Done is notified with the result of the index job.
func (srv *Server) Done() <-chan error {
	return srv.jobDone
}

// JobResult is available once Done is notified.
func (srv *Server) JobResult() JobResult {
	return srv.jobResult
}

func (srv *Server) createStore() error {
	switch srv.cfg.Store.Type {
	case config.StoreTypeEtcd:
		client, err := etcdutil.NewClient(srv.cfg.Etcd)
		if err != nil {
			return ErrCreateStore.WithCause(err)
		}
		srv.etcdClient = client
		srv.store = storage.NewEtcdStore(client, srv.cfg.Etcd.RootPath, srv.cfg.Index.TableName, srv.cfg.Etcd.CallTimeout())
		srv.probe = cluster.NewEtcdProbe(client)
	default:
		memStore := storage.NewMemStore(srv.cfg.Store.MemRegionServers)
		srv.store = memStore
		srv.probe = memStore
	}
	log.Info("store created", zap.String("type", srv.cfg.Store.Type), zap.String("table", srv.cfg.Index.TableName))
	return nil
}

func (srv *Server) Close() {
	srv.closeOnce.Do(func() {
		srv.status.Set(status.StatusTerminated)
		srv.stopBgJobs()

		if srv.index != nil {
			if err := srv.index.Close(); err != nil {
				log.Error("fail to close index", zap.Error(err))
			}
		}
		if srv.store != nil {
			if err := srv.store.Close(); err != nil {
				log.Error("fail to close store", zap.Error(err))
			}
		}
		if srv.etcdClient != nil {
			if err := srv.etcdClient.Close(); err != nil {
				log.Error("fail to close client", zap.Error(err))
			}
		}
	})
}

func (srv *Server) startBgJobs() {
	srv.bgJobCtx, srv.bgJobCancel = context.WithCancel(srv.ctx)

	srv.bgJobWg = sync.WaitGroup{}
	srv.bgJobWg.Add(2)
	go srv.serveHTTP()
	go srv.runIndexJob()
}

func (srv *Server) stopBgJobs() {
	if srv.bgJobCancel == nil {
		return
	}
	srv.bgJobCancel()

	ctx, cancel := context.WithTimeout(context.Background(), httpStopTimeout)
	defer cancel()
	if err := srv.httpService.Stop(ctx); err != nil {
		log.Error("fail to stop http service", zap.Error(err))
	}
	srv.bgJobWg.Wait()
}

func (srv *Server) serveHTTP() {
	defer srv.bgJobWg.Done()

	log.Info("http service starts", zap.Int("port", srv.cfg.HTTPPort))
	if err := srv.httpService.Start(); err != nil {
		log.Error("http service exits", zap.Error(ErrStartServer.WithCause(err)))
	}
}

func (srv *Server) runIndexJob() {
	defer srv.bgJobWg.Done()

	commitTime := time.Now().Format(commitTimeLayout)
	records, err := LoadRecords(srv.cfg.Input, srv.cfg.NumRecords, commitTime)
	if err != nil {
		srv.jobDone <- err
		return
	}

	result, err := RunJob(srv.bgJobCtx, srv.index, records)
	srv.jobResult = result
	if err != nil {
		log.Error("index job failed", zap.Error(err))
	}
	srv.jobDone <- err
}

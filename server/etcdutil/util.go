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

package etcdutil

import (
	"fmt"
	"net/url"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.uber.org/zap"
)

// NewClient connects to the etcd cluster described by cfg.
func NewClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.EndpointList(),
		DialTimeout: cfg.DialTimeout(),
		Logger:      log.GetLogger().Named("etcd-client"),
	})
	if err != nil {
		return nil, ErrCreateClient.WithCausef(err, "endpoints:%s", cfg.Endpoints)
	}
	return client, nil
}

// NewEmbedConfig creates the config of a single member etcd serving on the given urls.
func NewEmbedConfig(name, dir string, clientURL, peerURL *url.URL) *embed.Config {
	cfg := embed.NewConfig()
	cfg.Name = name
	cfg.Dir = dir
	cfg.WalDir = ""
	cfg.Logger = "zap"
	cfg.LogOutputs = []string{"stderr"}
	cfg.LogLevel = "error"

	cfg.ListenPeerUrls = []url.URL{*peerURL}
	cfg.AdvertisePeerUrls = cfg.ListenPeerUrls
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.AdvertiseClientUrls = cfg.ListenClientUrls

	cfg.StrictReconfigCheck = false
	cfg.InitialCluster = fmt.Sprintf("%s=%s", cfg.Name, &cfg.ListenPeerUrls[0])
	cfg.ClusterState = embed.ClusterStateFlagNew
	return cfg
}

// StartEmbed starts an etcd member and waits until it is ready to serve.
func StartEmbed(cfg *embed.Config, timeout time.Duration) (*embed.Etcd, error) {
	etcd, err := embed.StartEtcd(cfg)
	if err != nil {
		return nil, ErrStartEmbedEtcd.WithCause(err)
	}

	select {
	case <-etcd.Server.ReadyNotify():
		log.Info("embed etcd is ready", zap.String("name", cfg.Name), zap.String("clientURL", cfg.ListenClientUrls[0].String()))
		return etcd, nil
	case <-time.After(timeout):
		etcd.Server.Stop()
		etcd.Close()
		return nil, ErrEmbedEtcdTimout.WithMessagef("timeout:%v", timeout)
	}
}

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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"
	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"go.uber.org/zap"
)

func panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(msg)
}

func main() {
	cfg, err := config.MakeConfigParser().Parse(os.Args[1:])
	if coderr.Is(err, coderr.PrintHelpUsage) {
		return
	}
	if err != nil {
		panicf("fail to parse config from command line params, err:%v", err)
	}

	if err := cfg.ValidateAndAdjust(); err != nil {
		panicf("invalid config, err:%v", err)
	}

	if _, err := log.InitGlobalLogger(&cfg.Log); err != nil {
		panicf("fail to init global logger, err:%v", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.CreateServer(ctx, cfg)
	if err != nil {
		log.Error("fail to create server", zap.Error(err))
		return
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	if err := srv.Run(); err != nil {
		log.Error("fail to run server", zap.Error(err))
		srv.Close()
		return
	}
	log.Info("index job starts", zap.String("job", cfg.JobID), zap.String("table", cfg.Index.TableName))

	select {
	case sig := <-sc:
		log.Info("got signal to exit", zap.String("signal", sig.String()))
	case err := <-srv.Done():
		if err != nil {
			log.Error("index job fails", zap.Error(err))
		} else {
			result := srv.JobResult()
			log.Info("index job succeeds", zap.Int("updated", result.Updated), zap.Int("deleted", result.Deleted),
				zap.Duration("duration", result.Duration))
		}
	}

	srv.Close()
}

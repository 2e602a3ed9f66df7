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

package operation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, limiter *LimiterConfig) {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, code int, v any) {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc(APIAllocator, func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, Response[AllocatorStatus]{Status: "success", Data: AllocatorStatus{
			Allocator: "default", State: "ACTIVE", LastGranted: 0.3, Acquires: 4, Releases: 4,
		}})
	})
	mux.HandleFunc(APIAllocators, func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, Response[[]string]{Status: "success", Data: []string{"bounded", "default"}})
	})
	mux.HandleFunc(APIFlowLimiter, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var cfg LimiterConfig
			if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil || cfg.Limit < 0 {
				write(w, http.StatusBadRequest, Response[string]{Status: "error", Error: "parse request params"})
				return
			}
			*limiter = cfg
			write(w, http.StatusOK, Response[string]{Status: "success", Data: "success"})
			return
		}
		write(w, http.StatusOK, Response[LimiterConfig]{Status: "success", Data: *limiter})
	})

	mux.HandleFunc(APIHealth, func(w http.ResponseWriter, _ *http.Request) {
		if limiter.Limit < 0 {
			write(w, http.StatusServiceUnavailable, Response[any]{Status: "error", Error: "server health check"})
			return
		}
		write(w, http.StatusOK, Response[any]{Status: "success"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	viper.Set(RootAddr, strings.TrimPrefix(server.URL, HTTP))
}

func TestAllocatorOperations(t *testing.T) {
	re := require.New(t)
	newTestServer(t, &LimiterConfig{})

	var out bytes.Buffer
	re.NoError(AllocatorGet(&out))
	re.Contains(out.String(), "ACTIVE")
	re.Contains(out.String(), "0.3")

	out.Reset()
	re.NoError(AllocatorList(&out))
	re.Contains(out.String(), "bounded")
	re.Contains(out.String(), "true")
}

func TestLimiterOperations(t *testing.T) {
	re := require.New(t)
	limiter := &LimiterConfig{Limit: 100, Burst: 10, Enable: true}
	newTestServer(t, limiter)

	var out bytes.Buffer
	re.NoError(LimiterGet(&out))
	re.Contains(out.String(), "100")

	out.Reset()
	re.NoError(LimiterSet(&out, LimiterConfig{Limit: 500, Burst: 50, Enable: false}))
	re.Equal(LimiterConfig{Limit: 500, Burst: 50, Enable: false}, *limiter)

	err := LimiterSet(&out, LimiterConfig{Limit: -1})
	re.Error(err)
	re.Contains(err.Error(), "status code:400")
}

func TestHealth(t *testing.T) {
	re := require.New(t)
	limiter := &LimiterConfig{}
	newTestServer(t, limiter)
	re.Equal(HealthHealthy, Health())

	limiter.Limit = -1
	re.Equal(HealthUnhealthy, Health())

	viper.Set(RootAddr, "127.0.0.1:1")
	re.Equal(HealthUnreachable, Health())
}

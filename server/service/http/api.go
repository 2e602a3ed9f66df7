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

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"
	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/index"
	"github.com/apache/incubator-horaedb-qpsindex/server/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewAPI(idx *index.Index, serverStatus *status.ServerStatus) *API {
	return &API{
		index:        idx,
		serverStatus: serverStatus,
	}
}

func (a *API) NewAPIRouter() *Router {
	router := New().WithPrefix(apiPrefix).WithInstrumentation(printRequestInsmt)

	router.Get("/allocator", wrap(a.getAllocator))
	router.Get("/allocators", wrap(a.listAllocators))
	router.Get("/index", wrap(a.getIndexStatus))
	router.Get("/flowLimiter", wrap(a.getFlowLimiter))
	router.Put("/flowLimiter", wrap(a.updateFlowLimiter))
	router.Get("/health", wrap(a.health))

	router.GetWithoutPrefix("/metrics", promhttp.Handler().ServeHTTP)

	// Register debug API.
	router.GetWithoutPrefix("/debug/pprof/profile", pprof.Profile)
	router.GetWithoutPrefix("/debug/pprof/symbol", pprof.Symbol)
	router.GetWithoutPrefix("/debug/pprof/trace", pprof.Trace)
	router.GetWithoutPrefix("/debug/pprof/heap", pprof.Handler("heap").ServeHTTP)
	router.GetWithoutPrefix("/debug/pprof/goroutine", pprof.Handler("goroutine").ServeHTTP)

	return router
}

func (a *API) getAllocator(_ *http.Request) apiFuncResult {
	if a.index == nil {
		return errResult(ErrNoIndex, "")
	}
	return okResult(AllocatorResponse{
		Status:     a.index.Status().Allocator,
		Registered: allocator.Names(),
	})
}

func (a *API) listAllocators(_ *http.Request) apiFuncResult {
	return okResult(allocator.Names())
}

func (a *API) getIndexStatus(_ *http.Request) apiFuncResult {
	if a.index == nil {
		return errResult(ErrNoIndex, "")
	}
	return okResult(a.index.Status())
}

func (a *API) getFlowLimiter(_ *http.Request) apiFuncResult {
	if a.index == nil {
		return errResult(ErrNoIndex, "")
	}
	limiter := a.index.Limiter().GetConfig()
	return okResult(limiter)
}

func (a *API) updateFlowLimiter(req *http.Request) apiFuncResult {
	if a.index == nil {
		return errResult(ErrNoIndex, "")
	}

	var updateFlowLimiterRequest UpdateFlowLimiterRequest
	err := json.NewDecoder(req.Body).Decode(&updateFlowLimiterRequest)
	if err != nil {
		log.Error("decode request body failed", zap.Error(err))
		return errResult(ErrParseRequest, err.Error())
	}
	if updateFlowLimiterRequest.Limit < 0 || updateFlowLimiterRequest.Burst < 0 {
		return errResult(ErrParseRequest, fmt.Sprintf("limit and burst must not be negative, request:%+v", updateFlowLimiterRequest))
	}

	log.Info("update flow limiter request", zap.String("request", fmt.Sprintf("%+v", updateFlowLimiterRequest)))

	newLimiterConfig := config.LimiterConfig{
		Limit:  updateFlowLimiterRequest.Limit,
		Burst:  updateFlowLimiterRequest.Burst,
		Enable: updateFlowLimiterRequest.Enable,
	}

	if err := a.index.Limiter().UpdateLimiter(newLimiterConfig); err != nil {
		log.Error("update flow limiter failed", zap.Error(err))
		return errResult(ErrUpdateFlowLimiter, err.Error())
	}

	return okResult(statusSuccess)
}

func (a *API) health(_ *http.Request) apiFuncResult {
	isServerHealthy := a.serverStatus.IsHealthy()
	if isServerHealthy {
		return okResult(nil)
	}
	return errResult(ErrHealthCheck, fmt.Sprintf("server heath check failed, status is %v", a.serverStatus.Get()))
}

func printRequestInsmt(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		bodyByte, err := io.ReadAll(request.Body)
		if err != nil {
			log.Error("read request body failed", zap.Error(err))
			return
		}
		request.Body = io.NopCloser(bytes.NewReader(bodyByte))
		log.Debug("receive http request", zap.String("handlerName", handlerName), zap.String("client host", request.RemoteAddr),
			zap.String("method", request.Method), zap.String("body", string(bodyByte)))
		handler.ServeHTTP(writer, request)
	}
}

func respond(w http.ResponseWriter, data interface{}) {
	b, err := json.Marshal(&response{
		Status: statusSuccess,
		Data:   data,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, apiErr coderr.CodeError, msg string) {
	b, err := json.Marshal(&response{
		Status: statusError,
		Error:  apiErr.Error(),
		Msg:    msg,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code().ToHTTPCode())
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func wrap(f apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := f(r)
		if result.err != nil {
			respondError(w, result.err, result.errMsg)
			return
		}
		respond(w, result.data)
	}
}

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

package allocator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/metrics"
	"go.uber.org/zap"
)

// Factory builds a strategy from the index configuration and the injected dependencies.
type Factory func(cfg config.IndexConfig, deps Deps) (Allocator, error)

const (
	outcomeResolved = "resolved"
	outcomeFallback = "fallback"
)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a strategy available under name. It is expected to be called from init functions.
func Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrInvalidAllocatorName.WithMessagef("name:%q, factory set:%v", name, factory != nil)
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[name]; exists {
		return ErrAllocatorExists.WithMessagef("name:%s", name)
	}
	factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on failure.
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered strategy names in order.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsDefault reports whether name selects the default allocator.
func IsDefault(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || name == DefaultAllocatorName
}

// Build constructs the strategy registered under name. The returned error is always one of
// ErrUnknownAllocator, ErrConstructAllocator or ErrIncompatibleAllocator.
func Build(name string, cfg config.IndexConfig, deps Deps) (a Allocator, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAllocatorName
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, ErrUnknownAllocator.WithMessagef("name:%s, registered:%v", name, Names())
	}

	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = ErrConstructAllocator.WithMessagef("name:%s, panic:%v", name, r)
		}
	}()

	a, err = factory(cfg, deps)
	if err != nil {
		return nil, ErrConstructAllocator.WithCausef(err, "name:%s", name)
	}
	if isNil(a) {
		return nil, ErrIncompatibleAllocator.WithMessagef("name:%s, factory returned nil, type:%T", name, a)
	}
	return a, nil
}

// Resolve returns the allocator configured by name together with the name it was actually resolved to.
// It never fails: whatever goes wrong while building the named strategy, the default allocator is returned.
func Resolve(name string, cfg config.IndexConfig, deps Deps) (Allocator, string) {
	requested := strings.TrimSpace(name)
	if IsDefault(requested) {
		metrics.AllocatorResolutions.WithLabelValues(DefaultAllocatorName, DefaultAllocatorName, outcomeResolved).Inc()
		return NewDefaultAllocator(cfg), DefaultAllocatorName
	}

	a, err := Build(requested, cfg, deps)
	if err != nil {
		log.Warn("fail to build qps allocator, fall back to the default one",
			zap.String("allocator", requested), zap.String("fallback", DefaultAllocatorName), zap.Error(err))
		metrics.AllocatorResolutions.WithLabelValues(requested, DefaultAllocatorName, outcomeFallback).Inc()
		return NewDefaultAllocator(cfg), DefaultAllocatorName
	}

	log.Info("qps allocator resolved", zap.String("allocator", requested), zap.String("type", fmt.Sprintf("%T", a)))
	metrics.AllocatorResolutions.WithLabelValues(requested, requested, outcomeResolved).Inc()
	return a, requested
}

// isNil also catches a nil pointer wrapped in a non-nil interface.
func isNil(a Allocator) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

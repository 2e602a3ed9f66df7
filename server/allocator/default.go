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
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
)

var (
	_ Allocator          = &DefaultAllocator{}
	_ FractionCalculator = &DefaultAllocator{}
)

func init() {
	MustRegister(DefaultAllocatorName, func(cfg config.IndexConfig, _ Deps) (Allocator, error) {
		return NewDefaultAllocator(cfg), nil
	})
}

// DefaultAllocator grants exactly what is asked for. It keeps no mutable state, so one instance can be shared
// by any number of callers.
type DefaultAllocator struct {
	qpsFraction float64
}

func NewDefaultAllocator(cfg config.IndexConfig) *DefaultAllocator {
	return &DefaultAllocator{qpsFraction: NormalizeFraction(cfg.QPSFraction)}
}

// AcquireQPSResources returns desiredFraction itself when it is in (0, 1], and its normalized value otherwise.
func (a *DefaultAllocator) AcquireQPSResources(desiredFraction float64, _ int64) (float64, error) {
	return NormalizeFraction(desiredFraction), nil
}

func (a *DefaultAllocator) ReleaseQPSResources() error {
	return nil
}

// CalculateQPSFractionForPutsTime always returns the configured qps fraction.
func (a *DefaultAllocator) CalculateQPSFractionForPutsTime(_ int64, _ int) float64 {
	return a.qpsFraction
}

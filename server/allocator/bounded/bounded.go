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

// Package bounded provides an allocator keeping every grant within the configured min and max qps fractions.
package bounded

import (
	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
)

const Name = "bounded"

var (
	_ allocator.Allocator          = &Allocator{}
	_ allocator.FractionCalculator = &Allocator{}
)

func init() {
	allocator.MustRegister(Name, func(cfg config.IndexConfig, deps allocator.Deps) (allocator.Allocator, error) {
		return New(cfg, deps)
	})
}

type Allocator struct {
	lower           float64
	upper           float64
	maxQPSPerServer int
	regionServers   int
}

func New(cfg config.IndexConfig, deps allocator.Deps) (*Allocator, error) {
	if !allocator.IsValidFraction(cfg.MinQPSFraction) || !allocator.IsValidFraction(cfg.MaxQPSFraction) {
		return nil, allocator.ErrInvalidFraction.WithMessagef("min:%v, max:%v", cfg.MinQPSFraction, cfg.MaxQPSFraction)
	}
	if cfg.MaxQPSPerRegionServer <= 0 {
		return nil, allocator.ErrInvalidFraction.WithMessagef("max qps per region server:%d", cfg.MaxQPSPerRegionServer)
	}

	lower, upper := cfg.MinQPSFraction, cfg.MaxQPSFraction
	if lower > upper {
		lower, upper = upper, lower
	}
	return &Allocator{
		lower:           lower,
		upper:           upper,
		maxQPSPerServer: cfg.MaxQPSPerRegionServer,
		regionServers:   deps.Snapshot.NumRegionServers,
	}, nil
}

func (a *Allocator) AcquireQPSResources(desiredFraction float64, _ int64) (float64, error) {
	return allocator.ClampFraction(desiredFraction, a.lower, a.upper), nil
}

func (a *Allocator) ReleaseQPSResources() error {
	return nil
}

// CalculateQPSFractionForPutsTime returns the share of the cluster capacity needed to send numPuts in one
// second, bounded by the configured fractions. The region server count of the snapshot taken at build time is
// used when numRegionServers is unknown.
func (a *Allocator) CalculateQPSFractionForPutsTime(numPuts int64, numRegionServers int) float64 {
	if numRegionServers <= 0 {
		numRegionServers = a.regionServers
	}
	if numRegionServers <= 0 || numPuts <= 0 {
		return a.lower
	}

	capacity := float64(numRegionServers) * float64(a.maxQPSPerServer)
	return allocator.ClampFraction(float64(numPuts)/capacity, a.lower, a.upper)
}

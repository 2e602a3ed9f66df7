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

package bounded

import (
	"testing"

	"github.com/apache/incubator-horaedb-qpsindex/server/allocator"
	"github.com/apache/incubator-horaedb-qpsindex/server/cluster"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/stretchr/testify/require"
)

func TestAcquireClamps(t *testing.T) {
	re := require.New(t)
	cfg := config.DefaultIndexConfig()
	a, err := New(cfg, allocator.Deps{})
	re.NoError(err)

	cases := []struct {
		desired  float64
		expected float64
	}{
		{desired: 0.5, expected: cfg.MaxQPSFraction},
		{desired: 0.0001, expected: cfg.MinQPSFraction},
		{desired: 0.01, expected: 0.01},
		{desired: -1, expected: cfg.MinQPSFraction},
	}
	for _, c := range cases {
		granted, err := a.AcquireQPSResources(c.desired, 100)
		re.NoError(err)
		re.Equal(c.expected, granted)
	}
	re.NoError(a.ReleaseQPSResources())
}

func TestCalculateQPSFractionForPutsTime(t *testing.T) {
	re := require.New(t)
	cfg := config.DefaultIndexConfig()
	cfg.MinQPSFraction = 0.002
	cfg.MaxQPSFraction = 0.5
	cfg.MaxQPSPerRegionServer = 1000
	a, err := New(cfg, allocator.Deps{Snapshot: cluster.Snapshot{NumRegionServers: 4}})
	re.NoError(err)

	re.InDelta(0.1, a.CalculateQPSFractionForPutsTime(1000, 10), 1e-9)
	re.Equal(0.5, a.CalculateQPSFractionForPutsTime(1_000_000, 10))
	re.Equal(0.002, a.CalculateQPSFractionForPutsTime(1, 10))
	// Falls back to the snapshot region servers.
	re.InDelta(0.25, a.CalculateQPSFractionForPutsTime(1000, 0), 1e-9)
	re.Equal(0.002, a.CalculateQPSFractionForPutsTime(0, 10))

	b, err := New(cfg, allocator.Deps{})
	re.NoError(err)
	re.Equal(0.002, b.CalculateQPSFractionForPutsTime(1000, 0))
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	re := require.New(t)
	cfg := config.DefaultIndexConfig()
	cfg.MinQPSFraction = 0
	_, err := New(cfg, allocator.Deps{})
	re.ErrorIs(err, allocator.ErrInvalidFraction)

	cfg = config.DefaultIndexConfig()
	cfg.MinQPSFraction, cfg.MaxQPSFraction = 0.2, 0.05
	a, err := New(cfg, allocator.Deps{})
	re.NoError(err)
	granted, err := a.AcquireQPSResources(0.5, 1)
	re.NoError(err)
	re.Equal(0.2, granted)
}

func TestResolveByName(t *testing.T) {
	re := require.New(t)
	cfg := config.DefaultIndexConfig()
	cfg.AllocatorClassName = Name

	a, name := allocator.Resolve(cfg.AllocatorClassName, cfg, allocator.Deps{})
	re.Equal(Name, name)
	re.IsType(&Allocator{}, a)

	// Invalid bounds make the factory fail, the default one is used instead.
	cfg.MaxQPSFraction = 2
	a, name = allocator.Resolve(cfg.AllocatorClassName, cfg, allocator.Deps{})
	re.Equal(allocator.DefaultAllocatorName, name)
	re.IsType(&allocator.DefaultAllocator{}, a)
}

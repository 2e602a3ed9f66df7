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
	"math"
	"sync"
	"testing"

	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultIdentity(t *testing.T) {
	re := require.New(t)
	a := NewDefaultAllocator(config.DefaultIndexConfig())

	for _, f := range []float64{0.0001, 0.001, 0.3, 0.5, 0.999, 1} {
		for _, n := range []int64{0, 1, 100, 1 << 40, -5} {
			granted, err := a.AcquireQPSResources(f, n)
			re.NoError(err)
			re.Equal(f, granted)
		}
	}
	re.NoError(a.ReleaseQPSResources())
}

func TestDefaultIdempotence(t *testing.T) {
	re := require.New(t)
	a := NewDefaultAllocator(config.DefaultIndexConfig())

	first, err := a.AcquireQPSResources(0.42, 1000)
	re.NoError(err)
	for i := 0; i < 100; i++ {
		granted, err := a.AcquireQPSResources(0.42, 1000)
		re.NoError(err)
		re.Equal(first, granted)
	}
}

func TestDefaultNormalizesInvalidInput(t *testing.T) {
	re := require.New(t)
	a := NewDefaultAllocator(config.DefaultIndexConfig())

	cases := []struct {
		desired  float64
		expected float64
	}{
		{desired: 1.5, expected: 1},
		{desired: math.Inf(1), expected: 1},
		{desired: 0, expected: MinQPSFraction},
		{desired: -0.2, expected: MinQPSFraction},
		{desired: math.NaN(), expected: MinQPSFraction},
	}
	for _, c := range cases {
		granted, err := a.AcquireQPSResources(c.desired, 10)
		re.NoError(err)
		re.Equal(c.expected, granted)
	}
}

func TestDefaultConcurrentAcquire(t *testing.T) {
	re := require.New(t)
	a := NewDefaultAllocator(config.DefaultIndexConfig())

	const n = 64
	results := make([]float64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			granted, err := a.AcquireQPSResources(float64(i+1)/n, int64(i*10))
			if err == nil {
				results[i] = granted
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		re.Equal(float64(i+1)/n, results[i])
	}
}

func TestDefaultCalculate(t *testing.T) {
	cfg := config.DefaultIndexConfig()
	cfg.QPSFraction = 0.3
	a := NewDefaultAllocator(cfg)
	require.Equal(t, 0.3, a.CalculateQPSFractionForPutsTime(1000, 10))
	require.Equal(t, 0.3, a.CalculateQPSFractionForPutsTime(0, 0))
}

func TestClampFraction(t *testing.T) {
	re := require.New(t)
	re.Equal(0.002, ClampFraction(0.0001, 0.002, 0.06))
	re.Equal(0.06, ClampFraction(0.5, 0.002, 0.06))
	re.Equal(0.01, ClampFraction(0.01, 0.06, 0.002))
	re.Equal(0.002, ClampFraction(math.NaN(), 0.002, 0.06))
}

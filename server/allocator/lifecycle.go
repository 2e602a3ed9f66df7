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
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/config"
	"github.com/apache/incubator-horaedb-qpsindex/server/metrics"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	StateUninitialized = "UNINITIALIZED"
	StateResolved      = "RESOLVED"
	StateActive        = "ACTIVE"
	StateClosed        = "CLOSED"

	eventResolve  = "EventResolve"
	eventActivate = "EventActivate"
	eventClose    = "EventClose"

	opAcquire = "acquire"
	opRelease = "release"
	opClose   = "close"
)

var (
	handleEvents = fsm.Events{
		{Name: eventResolve, Src: []string{StateUninitialized}, Dst: StateResolved},
		{Name: eventActivate, Src: []string{StateResolved}, Dst: StateActive},
		{Name: eventClose, Src: []string{StateResolved, StateActive}, Dst: StateClosed},
	}
	handleCallbacks = fsm.Callbacks{
		"enter_state": func(event *fsm.Event) {
			log.Debug("allocator state changed", zap.String("event", event.Event),
				zap.String("from", event.Src), zap.String("to", event.Dst))
		},
	}
)

// Status is a point in time view of a Handle.
type Status struct {
	Allocator   string  `json:"allocator"`
	State       string  `json:"state"`
	LastGranted float64 `json:"lastGranted"`
	Acquires    int64   `json:"acquires"`
	Releases    int64   `json:"releases"`
	Outstanding int64   `json:"outstanding"`
	Failures    int64   `json:"failures"`
}

// Handle owns the allocator of one index for the whole job.
//
// Acquire and release may be called concurrently. Close waits for the calls in flight, issues the releases still
// owed to the strategy and moves the handle to CLOSED, which happens only once.
type Handle struct {
	name      string
	allocator Allocator

	// lock guards the closing transition against acquire and release calls in flight.
	lock         sync.RWMutex
	fsm          *fsm.FSM
	activateOnce sync.Once

	lastGranted atomic.Uint64
	acquires    atomic.Int64
	releases    atomic.Int64
	outstanding atomic.Int64
	failures    atomic.Int64
}

// NewHandle resolves the allocator configured by cfg.AllocatorClassName. It never fails, see Resolve.
func NewHandle(cfg config.IndexConfig, deps Deps) *Handle {
	a, name := Resolve(cfg.AllocatorClassName, cfg, deps)
	return newHandle(name, a)
}

func newHandle(name string, a Allocator) *Handle {
	h := &Handle{
		fsm: fsm.NewFSM(StateUninitialized, handleEvents, handleCallbacks),
	}
	h.allocator, h.name = a, name
	if err := h.fsm.Event(eventResolve); err != nil {
		log.Error("resolve allocator handle", zap.String("allocator", name), zap.Error(err))
	}
	return h
}

// Name returns the identity the allocator was resolved to.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) State() string {
	return h.fsm.Current()
}

// Allocator exposes the resolved strategy.
func (h *Handle) Allocator() Allocator {
	return h.allocator
}

// Calculator returns the resolved strategy as a FractionCalculator, if it is one.
func (h *Handle) Calculator() (FractionCalculator, bool) {
	c, ok := h.allocator.(FractionCalculator)
	return c, ok
}

func (h *Handle) Acquire(desiredFraction float64, numRecords int64) (float64, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if h.fsm.Is(StateClosed) {
		return 0, ErrAllocatorClosed.WithMessagef("allocator:%s", h.name)
	}
	h.activateOnce.Do(func() {
		if err := h.fsm.Event(eventActivate); err != nil {
			log.Error("activate allocator handle", zap.String("allocator", h.name), zap.Error(err))
		}
	})

	granted, err := h.allocator.AcquireQPSResources(desiredFraction, numRecords)
	if err != nil {
		h.failures.Add(1)
		metrics.AllocatorErrors.WithLabelValues(h.name, opAcquire).Inc()
		return 0, ErrAllocatorRuntime.WithCausef(err, "acquire qps resources, allocator:%s, desired:%v, records:%d",
			h.name, desiredFraction, numRecords)
	}

	h.acquires.Add(1)
	h.outstanding.Add(1)
	h.lastGranted.Store(math.Float64bits(granted))
	metrics.GrantedFraction.WithLabelValues(h.name).Observe(granted)
	return granted, nil
}

func (h *Handle) Release() error {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if h.fsm.Is(StateClosed) {
		return ErrAllocatorClosed.WithMessagef("allocator:%s", h.name)
	}
	return h.release()
}

func (h *Handle) release() error {
	if err := h.allocator.ReleaseQPSResources(); err != nil {
		h.failures.Add(1)
		metrics.AllocatorErrors.WithLabelValues(h.name, opRelease).Inc()
		return ErrAllocatorRuntime.WithCausef(err, "release qps resources, allocator:%s", h.name)
	}
	h.releases.Add(1)
	if h.outstanding.Add(-1) < 0 {
		h.outstanding.Store(0)
	}
	return nil
}

// Close releases whatever is still held and closes the strategy if it is an io.Closer.
// Closing a closed handle is a no-op.
func (h *Handle) Close() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.fsm.Is(StateClosed) {
		return nil
	}

	var firstErr error
	for h.outstanding.Load() > 0 {
		if err := h.release(); err != nil {
			firstErr = err
			break
		}
	}
	if closer, ok := h.allocator.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			metrics.AllocatorErrors.WithLabelValues(h.name, opClose).Inc()
			if firstErr == nil {
				firstErr = ErrAllocatorRuntime.WithCausef(err, "close allocator:%s", h.name)
			}
		}
	}

	if err := h.fsm.Event(eventClose); err != nil {
		log.Error("close allocator handle", zap.String("allocator", h.name), zap.Error(err))
	}
	log.Info("allocator closed", zap.String("allocator", h.name), zap.Int64("acquires", h.acquires.Load()),
		zap.Int64("releases", h.releases.Load()), zap.Error(firstErr))
	return firstErr
}

func (h *Handle) Status() Status {
	return Status{
		Allocator:   h.name,
		State:       h.State(),
		LastGranted: math.Float64frombits(h.lastGranted.Load()),
		Acquires:    h.acquires.Load(),
		Releases:    h.releases.Load(),
		Outstanding: h.outstanding.Load(),
		Failures:    h.failures.Load(),
	}
}

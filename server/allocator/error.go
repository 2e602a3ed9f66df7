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

import "github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"

var (
	ErrUnknownAllocator      = coderr.NewCodeErrorDef(coderr.AllocatorConfiguration, "unknown allocator")
	ErrConstructAllocator    = coderr.NewCodeErrorDef(coderr.AllocatorConfiguration, "construct allocator")
	ErrIncompatibleAllocator = coderr.NewCodeErrorDef(coderr.AllocatorConfiguration, "incompatible allocator")
	ErrAllocatorExists       = coderr.NewCodeErrorDef(coderr.Conflict, "allocator already registered")
	ErrInvalidAllocatorName  = coderr.NewCodeErrorDef(coderr.InvalidParams, "invalid allocator name")

	ErrAllocatorRuntime = coderr.NewCodeErrorDef(coderr.AllocatorRuntime, "allocator runtime failure")
	ErrAllocatorClosed  = coderr.NewCodeErrorDef(coderr.AllocatorRuntime, "allocator is closed")
	ErrInvalidFraction  = coderr.NewCodeErrorDef(coderr.InvalidParams, "invalid qps fraction")
)

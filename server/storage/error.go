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

package storage

import "github.com/apache/incubator-horaedb-qpsindex/pkg/coderr"

var (
	ErrStoreClosed    = coderr.NewCodeErrorDef(coderr.Unavailable, "store is closed")
	ErrEmptyKey       = coderr.NewCodeErrorDef(coderr.InvalidParams, "empty key")
	ErrEtcdKVGet      = coderr.NewCodeErrorDef(coderr.Internal, "etcd KV get failed")
	ErrEtcdKVPut      = coderr.NewCodeErrorDef(coderr.Internal, "etcd KV put failed")
	ErrEtcdKVDelete   = coderr.NewCodeErrorDef(coderr.Internal, "etcd KV delete failed")
	ErrEtcdTxnAborted = coderr.NewCodeErrorDef(coderr.Internal, "etcd txn aborted")
)

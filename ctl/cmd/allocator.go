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

package cmd

import (
	"github.com/apache/incubator-horaedb-qpsindex/ctl/operation"
	"github.com/spf13/cobra"
)

var allocatorCmd = &cobra.Command{
	Use:     "allocator",
	Aliases: []string{"a"},
	Short:   "Qps allocator of the index",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var allocatorGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the allocator in use and its counters",
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(operation.AllocatorGet)
	},
}

var allocatorListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the registered allocators",
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(operation.AllocatorList)
	},
}

func init() {
	allocatorCmd.AddCommand(allocatorGetCmd, allocatorListCmd)
	rootCmd.AddCommand(allocatorCmd)
}

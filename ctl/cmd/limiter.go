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
	"io"

	"github.com/apache/incubator-horaedb-qpsindex/ctl/operation"
	"github.com/spf13/cobra"
)

var (
	limit  int
	burst  int
	enable bool
)

var limiterCmd = &cobra.Command{
	Use:     "limiter",
	Aliases: []string{"l"},
	Short:   "Flow limiter of the index",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var limiterGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the flow limiter config",
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(operation.LimiterGet)
	},
}

var limiterSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the flow limiter config",
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(func(w io.Writer) error {
			return operation.LimiterSet(w, operation.LimiterConfig{Limit: limit, Burst: burst, Enable: enable})
		})
	},
}

func init() {
	limiterSetCmd.Flags().IntVarP(&limit, "limit", "l", 0, "cap of the rate in ops per second, 0 means no cap")
	limiterSetCmd.Flags().IntVarP(&burst, "burst", "b", 0, "least burst of the limiter")
	limiterSetCmd.Flags().BoolVarP(&enable, "enable", "e", true, "enable or disable the limiter")
	limiterCmd.AddCommand(limiterGetCmd, limiterSetCmd)
	rootCmd.AddCommand(limiterCmd)
}

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

// Forked from https://github.com/apache/incubator-seata-ctl/blob/8427314e04cdc435b925ed41573b37e3addeea34/action/common/args_test.go.

package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/apache/incubator-horaedb-qpsindex/ctl/operation"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

var argsTestCases = []struct {
	input string
	args  []string
	valid bool
}{
	{
		`allocator get -a 127.0.0.1:8080 -c ' { "a": "b", "c": "d" }' -d -e`,
		[]string{"allocator", "get", "-a", "127.0.0.1:8080", "-c", `{ "a": "b", "c": "d" }`, "-d", "-e"},
		true,
	},
	{
		`-a xxx -b yyy \
-c \
' { \
    "a": "b", \
    "c": "d" \
}' \
-d \
-e`,
		[]string{"-a", "xxx", "-b", "yyy", "-c", `{  "a": "b",  "c": "d"  }`, "-d", "-e"},
		true,
	},
	{
		`-a xxx -b yyy
-c \
' { \
    "a": "b", \
    "c": "d" \
}' \
-d \
-e`,
		[]string{"-a", "xxx", "-b", "yyy"},
		true,
	},
	{
		`-a \
' { \
    "a": "b" \
-b`,
		[]string{},
		false,
	},
}

func TestReadArgs(t *testing.T) {
	var stdin bytes.Buffer
	for _, testCase := range argsTestCases {
		stdin.Reset()
		stdin.Write([]byte(testCase.input))
		if !testCase.valid {
			assert.NotNil(t, ReadArgs(&stdin))
			continue
		}
		assert.Nil(t, ReadArgs(&stdin))
		// The first arg stands for the program name.
		assert.Equal(t, "", os.Args[0])
		assert.Equal(t, testCase.args, os.Args[1:])
	}
}

func TestCommands(t *testing.T) {
	cases := []struct {
		path []string
		name string
	}{
		{path: []string{"allocator", "get"}, name: "get"},
		{path: []string{"a", "ls"}, name: "list"},
		{path: []string{"limiter", "get"}, name: "get"},
		{path: []string{"l", "set"}, name: "set"},
	}
	for _, c := range cases {
		cmd, _, err := rootCmd.Find(c.path)
		assert.NoError(t, err)
		assert.Equal(t, c.name, cmd.Name())
	}

	assert.NoError(t, limiterSetCmd.ParseFlags([]string{"-l", "300", "-b", "30", "-e=false"}))
	assert.Equal(t, 300, limit)
	assert.Equal(t, 30, burst)
	assert.False(t, enable)
}

func TestResetFlags(t *testing.T) {
	assert.NoError(t, limiterSetCmd.ParseFlags([]string{"-l", "300", "-e=false"}))
	resetFlags(rootCmd)
	assert.Equal(t, 0, limit)
	assert.True(t, enable)
	assert.False(t, limiterSetCmd.Flags().Changed("limit"))
}

func TestPrompt(t *testing.T) {
	viper.Set(operation.RootAddr, "127.0.0.1:1")
	defer viper.Set(operation.RootAddr, "")

	cases := []struct {
		input   string
		prompts int
	}{
		{input: "", prompts: 1},
		{input: "\n\nexit\nallocator get\n", prompts: 3},
		{input: "' unclosed\nquit\n", prompts: 2},
	}
	for _, c := range cases {
		var out bytes.Buffer
		runPrompt(strings.NewReader(c.input), &out)
		assert.Equal(t, c.prompts, strings.Count(out.String(), "127.0.0.1:1(unreachable) > "), "input:%q", c.input)
	}
}

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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/incubator-horaedb-qpsindex/ctl/operation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errUnclosedQuote = errors.New("unclosed quote in the input")

var rootCmd = &cobra.Command{
	Use:   "qpsctl",
	Short: "qpsctl inspects and tunes the qps allocation of a running index job",
	Long: `qpsctl talks to the status service of a qpsindex job.
Given a command it runs it once, otherwise it starts a prompt. Type exit or quit to leave the prompt.`,
	Run: func(cmd *cobra.Command, args []string) {},
}

// Execute runs the command given on the command line, or the interactive prompt when there is none.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		cmd, _, err := rootCmd.Find(os.Args[1:])
		if err == nil && cmd != rootCmd {
			return
		}
		for _, arg := range os.Args[1:] {
			if arg == "-h" || arg == "--help" {
				return
			}
		}
	}

	runPrompt(os.Stdin, os.Stdout)
}

func runPrompt(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		addr := viper.GetString(operation.RootAddr)
		fmt.Fprintf(out, "%s(%s) > ", addr, operation.Health())

		args, err := readArgs(scanner)
		if err == io.EOF {
			fmt.Fprintln(out)
			return
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return
		}

		resetFlags(rootCmd)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

// resetFlags puts back the defaults of every local flag, the prompt reuses the commands between inputs.
// The address flag is persistent and is kept once set.
func resetFlags(cmd *cobra.Command) {
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP(operation.RootAddr, "a", "127.0.0.1:8080", "address of the status http service of the job")
	_ = viper.BindPFlag(operation.RootAddr, rootCmd.PersistentFlags().Lookup(operation.RootAddr))
	viper.SetEnvPrefix("QPSCTL")
	viper.AutomaticEnv()

	rootCmd.CompletionOptions = cobra.CompletionOptions{
		DisableDefaultCmd:   true,
		DisableNoDescFlag:   true,
		DisableDescriptions: true,
		HiddenDefaultCmd:    true,
	}
}

func runOperation(op func(io.Writer) error) {
	if err := op(os.Stdout); err != nil {
		fmt.Println(err)
	}
}

// ReadArgs reads one command from in and installs it as os.Args, with an empty program name.
func ReadArgs(in io.Reader) error {
	args, err := readArgs(bufio.NewScanner(in))
	if err != nil && err != io.EOF {
		return err
	}
	os.Args = append([]string{""}, args...)
	return nil
}

// readArgs reads one command. A line ending with a backslash continues on the next line, and a part within
// single quotes is one argument.
func readArgs(scanner *bufio.Scanner) ([]string, error) {
	var lines []string
	for {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			if len(lines) == 0 {
				return nil, io.EOF
			}
			break
		}
		line := strings.Trim(scanner.Text(), "\r\n ")
		if strings.HasSuffix(line, "\\") {
			lines = append(lines, strings.TrimSuffix(line, "\\"))
			continue
		}
		lines = append(lines, line)
		break
	}
	return splitArgs(strings.Join(lines, " "))
}

func splitArgs(input string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		arg := strings.TrimSpace(current.String())
		if arg != "" {
			args = append(args, arg)
		}
		current.Reset()
	}

	for _, r := range input {
		switch {
		case r == '\'':
			flush()
			quoted = !quoted
		case r == ' ' && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if quoted {
		return nil, errUnclosedQuote
	}
	flush()
	return args, nil
}

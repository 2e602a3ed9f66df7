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

package operation

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const requestTimeout = 5 * time.Second

// Response is the envelope of every answer of the status api.
type Response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error"`
	Msg    string `json:"msg"`
}

func tableWriter(headers []string) table.Writer {
	header := table.Row{}
	for _, s := range headers {
		header = append(header, s)
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	return t
}

func apiURL(path string) string {
	return HTTP + viper.GetString(RootAddr) + path
}

func HTTPUtil[T any](method, url string, body io.Reader, response *Response[T]) error {
	request, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	resp, err := (&http.Client{Timeout: requestTimeout}).Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, response); err != nil {
		return errors.WithMessagef(err, "decode response, status code:%d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request failed, status code:%d, error:%s, msg:%s", resp.StatusCode, response.Error, response.Msg)
	}
	return nil
}

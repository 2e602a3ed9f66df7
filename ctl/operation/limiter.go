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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jedib0t/go-pretty/v6/table"
)

type LimiterConfig struct {
	Limit  int  `json:"limit"`
	Burst  int  `json:"burst"`
	Enable bool `json:"enable"`
}

func LimiterGet(w io.Writer) error {
	var response Response[LimiterConfig]
	if err := HTTPUtil(http.MethodGet, apiURL(APIFlowLimiter), nil, &response); err != nil {
		return err
	}

	t := tableWriter(limiterHeader)
	t.AppendRow(table.Row{response.Data.Limit, response.Data.Burst, response.Data.Enable})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func LimiterSet(w io.Writer, cfg LimiterConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	var response Response[string]
	if err := HTTPUtil(http.MethodPut, apiURL(APIFlowLimiter), bytes.NewReader(body), &response); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, response.Data)
	return err
}

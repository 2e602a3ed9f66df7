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
	"net/http"
)

const (
	HealthHealthy     = "healthy"
	HealthUnhealthy   = "unhealthy"
	HealthUnreachable = "unreachable"
)

// Health reports whether the job behind the configured address is running.
func Health() string {
	var response Response[any]
	err := HTTPUtil(http.MethodGet, apiURL(APIHealth), nil, &response)
	switch {
	case err == nil:
		return HealthHealthy
	case response.Status != "":
		return HealthUnhealthy
	default:
		return HealthUnreachable
	}
}

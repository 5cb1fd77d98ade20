/*
 *
 *  * Licensed to the Apache Software Foundation (ASF) under one or more
 *  * contributor license agreements.  See the NOTICE file distributed with
 *  * this work for additional information regarding copyright ownership.
 *  * The ASF licenses this file to You under the Apache License, Version 2.0
 *  * (the "License"); you may not use this file except in compliance with
 *  * the License.  You may obtain a copy of the License at
 *  *
 *  *     http://www.apache.org/licenses/LICENSE-2.0
 *  *
 *  * Unless required by applicable law or agreed to in writing, software
 *  * distributed under the License is distributed on an "AS IS" BASIS,
 *  * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  * See the License for the specific language governing permissions and
 *  * limitations under the License.
 *
 */

package proxy

import (
	"net/http"
)

const (
	checkOK   = "ok"
	checkDown = "down"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: checkOK})
}

// handleReady probes the offers backend and, when configured, the IPFS node.
func (p *Proxy) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"offers": checkOK}
	if err := p.offers.Check(); err != nil {
		checks["offers"] = checkDown
	}
	if p.ipfs != nil {
		checks["ipfs"] = checkOK
		if !p.ipfs.IsUp() {
			checks["ipfs"] = checkDown
		}
	}

	for _, v := range checks {
		if v != checkOK {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: checkDown, Checks: checks})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: checkOK, Checks: checks})
}

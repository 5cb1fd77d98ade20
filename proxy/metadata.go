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
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/fetcher"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/ipfs"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/metadata"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
)

const maxUploadBytes = 1 << 20

type metadataResponse struct {
	URI         string               `json:"uri"`
	URL         string               `json:"url"`
	Name        string               `json:"name,omitempty"`
	Description string               `json:"description,omitempty"`
	Image       string               `json:"image,omitempty"`
	Attributes  []metadata.Attribute `json:"attributes,omitempty"`
	Root        *resolver.CIDInfo    `json:"root,omitempty"`
	Metadata    any                  `json:"metadata"`
}

type uploadResponse struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
	URL string `json:"url"`
}

func (p *Proxy) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeError(w, http.StatusBadRequest, fetcher.KindInvalidURI.String(), "missing uri")
		return
	}
	if p.cfg.IPFS.StrictCID {
		switch resolver.Classify(uri) {
		case resolver.KindIPFS, resolver.KindCID:
			if _, err := resolver.RootCID(uri); err != nil {
				writeError(w, http.StatusBadRequest, fetcher.KindInvalidURI.String(), err.Error())
				return
			}
		}
	}

	meta, err := p.fetcher.Fetch(r.Context(), uri)
	if err != nil {
		kind := fetcher.KindOf(err)
		writeError(w, fetchStatus(kind), kind.String(), err.Error())
		return
	}

	resp := metadataResponse{
		URI:         uri,
		URL:         p.resolver.Resolve(uri),
		Name:        metadata.Name(meta),
		Description: metadata.Description(meta),
		Image:       metadata.Image(meta, p.resolver),
		Attributes:  metadata.Attributes(meta),
		Metadata:    meta,
	}
	if c, err := resolver.RootCID(uri); err == nil {
		if info, err := resolver.Describe(c); err == nil {
			resp.Root = &info
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func fetchStatus(k fetcher.Kind) int {
	switch k {
	case fetcher.KindNotFound:
		return http.StatusNotFound
	case fetcher.KindTimeout:
		return http.StatusGatewayTimeout
	case fetcher.KindInvalidURI:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// handleUploadMetadata pins the request body on IPFS.
func (p *Proxy) handleUploadMetadata(w http.ResponseWriter, r *http.Request) {
	if p.ipfs == nil {
		writeError(w, http.StatusServiceUnavailable, "ipfs_unavailable", "no ipfs api configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	c, err := p.ipfs.AddJSON(body)
	if err != nil {
		if errors.Is(err, ipfs.ErrInvalidJSON) {
			writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		logrus.Errorf("pin metadata: %v", err)
		writeError(w, http.StatusBadGateway, "ipfs_error", err.Error())
		return
	}
	p.monitor.ObserveUpload()

	s := c.String()
	writeJSON(w, http.StatusCreated, uploadResponse{
		CID: s,
		URI: "ipfs://" + s,
		URL: p.resolver.Resolve(s),
	})
}

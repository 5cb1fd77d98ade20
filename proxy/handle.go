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
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
	"github.com/IceFireDB/IceFireDB-Gateway/utils"
)

const (
	defaultContentType = "application/octet-stream"
	relayCacheControl  = "public, max-age=86400"
	cacheHeader        = "X-Cache"
	maxRedirects       = 10
)

var errHostNotAllowed = errors.New("host not in allowed_hosts")

// handleProxy relays GET /api/proxy?url=<target>.
func (p *Proxy) handleProxy(w http.ResponseWriter, r *http.Request) {
	mw := &metaWriter{ResponseWriter: w}
	p.relay(mw, r)
	p.monitor.ObserveProxy(mw.statusCode())
}

func (p *Proxy) relay(w http.ResponseWriter, r *http.Request) {
	if p.limiter != nil && !p.limiter.Allow() {
		writeText(w, http.StatusTooManyRequests, "Too Many Requests")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		writeText(w, http.StatusBadRequest, "Missing url")
		return
	}

	u, err := url.Parse(target)
	if err != nil {
		logrus.Errorf("proxy: bad target %q: %v", target, err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if !p.hostAllowed(u.Hostname()) {
		logrus.Warnf("proxy: host %q not in allowed_hosts", u.Hostname())
		writeText(w, http.StatusForbidden, "Forbidden")
		return
	}

	if p.cache != nil {
		e, ok := p.cache.Get(target)
		p.monitor.ObserveCache(ok)
		if ok {
			w.Header().Set(cacheHeader, "HIT")
			writeBody(w, e.ContentType, e.Body)
			return
		}
		w.Header().Set(cacheHeader, "MISS")
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		logrus.Errorf("proxy: build request for %s: %v", target, err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.upstream.Do(req)
	if errors.Is(err, errHostNotAllowed) {
		logrus.Warnf("proxy: fetch %s: %v", target, err)
		w.Header().Del(cacheHeader)
		writeText(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		logrus.Errorf("proxy: fetch %s: %v", target, err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.Header().Del(cacheHeader)
		writeText(w, resp.StatusCode, "Failed to fetch: "+statusText(resp))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	var body io.Reader = resp.Body
	// Unknown lengths are buffered up to the item limit and streamed past it.
	if p.cache != nil && (resp.ContentLength < 0 || p.cache.Admits(resp.ContentLength)) {
		head, err := io.ReadAll(io.LimitReader(resp.Body, p.cache.MaxItemBytes()+1))
		if err != nil {
			logrus.Errorf("proxy: read %s: %v", target, err)
			writeText(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if p.cache.Admits(int64(len(head))) {
			if _, err := p.cache.Set(target, &cache.Entry{Status: http.StatusOK, ContentType: contentType, Body: head}); err != nil {
				logrus.Debugf("proxy: not caching %s: %v", target, err)
			}
			writeBody(w, contentType, head)
			return
		}
		body = io.MultiReader(bytes.NewReader(head), resp.Body)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", relayCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logrus.Warnf("proxy: relay %s interrupted: %v", target, err)
	}
}

// checkRedirect applies the allow-list to every redirect hop.
func (p *Proxy) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !p.hostAllowed(req.URL.Hostname()) {
		return fmt.Errorf("redirect to %q: %w", req.URL.Hostname(), errHostNotAllowed)
	}
	return nil
}

func (p *Proxy) hostAllowed(host string) bool {
	allowed := p.cfg.Proxy.AllowedHosts
	return len(allowed) == 0 || utils.InArrayFold(host, allowed)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", relayCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// statusText is the reason phrase the upstream sent, or the standard one.
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

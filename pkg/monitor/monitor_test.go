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

package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
)

func TestObserve(t *testing.T) {
	m := New("test-host")

	m.ObserveProxy(http.StatusOK)
	m.ObserveProxy(http.StatusOK)
	m.ObserveProxy(http.StatusNotFound)
	m.ObserveFetchFailure("timeout")
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveUpload()
	m.SetOffers(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyRequests.WithLabelValues("404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataUploads))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Offers))
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.ObserveProxy(http.StatusOK)
		m.ObserveFetchFailure("network_error")
		m.ObserveCache(true)
		m.ObserveUpload()
		m.SetOffers(1)
		assert.NoError(t, m.RegisterCache(nil))
	})
}

func TestCacheExporter(t *testing.T) {
	c, err := cache.New(cache.Config{MaxCost: cache.MB})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("a", &cache.Entry{Status: 200, Body: []byte("hello")})
	require.NoError(t, err)
	c.Wait()
	c.Get("a")
	c.Get("b")

	e := NewCacheExporter(c, "test-host")
	assert.Equal(t, 7, testutil.CollectAndCount(e))

	m := New("test-host")
	require.NoError(t, m.RegisterCache(c))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) != 1 {
			continue
		}
		metric := f.GetMetric()[0]
		switch {
		case metric.GetCounter() != nil:
			values[f.GetName()] = metric.GetCounter().GetValue()
		case metric.GetGauge() != nil:
			values[f.GetName()] = metric.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["ipgateway_cache_hits_total"])
	assert.Equal(t, 1.0, values["ipgateway_cache_misses_total"])
	assert.Equal(t, 0.5, values["ipgateway_cache_hit_ratio"])
}

func TestHandler(t *testing.T) {
	m := New("test-host")
	m.ObserveProxy(http.StatusBadGateway)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ipgateway_proxy_requests_total{code="502",host="test-host"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestDefaultHost(t *testing.T) {
	m := New("")
	assert.NotPanics(t, func() { m.SetOffers(0) })
}

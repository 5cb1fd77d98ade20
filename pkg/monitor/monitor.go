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

// Package monitor exposes gateway metrics in the Prometheus text format.
package monitor

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
	"github.com/IceFireDB/IceFireDB-Gateway/utils"
)

const Namespace = "ipgateway"

func NewDesc(metricName string, docString string, labels []string, host string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, "", metricName),
		docString,
		labels,
		prometheus.Labels{"host": host})
}

// Monitor owns a private registry so several gateways can live in one
// process (tests do this). A nil *Monitor is valid and records nothing.
type Monitor struct {
	host     string
	registry *prometheus.Registry

	ProxyRequests   *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	CacheRequests   *prometheus.CounterVec
	MetadataUploads prometheus.Counter
	Offers          prometheus.Gauge
}

func New(host string) *Monitor {
	if host == "" {
		host = utils.GetHostname()
	}
	constLabels := prometheus.Labels{"host": host}

	m := &Monitor{
		host:     host,
		registry: prometheus.NewRegistry(),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "proxy_requests_total",
			Help:        "Count of /api/proxy requests by response code",
			ConstLabels: constLabels,
		}, []string{"code"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "metadata_fetch_failures_total",
			Help:        "Count of failed metadata fetches by kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "proxy_cache_requests_total",
			Help:        "Count of proxy cache lookups by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		MetadataUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Name:        "metadata_uploads_total",
			Help:        "Count of metadata documents pinned to IPFS",
			ConstLabels: constLabels,
		}),
		Offers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Name:        "offers",
			Help:        "Count of open offers",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(
		m.ProxyRequests,
		m.FetchFailures,
		m.CacheRequests,
		m.MetadataUploads,
		m.Offers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) ObserveProxy(code int) {
	if m == nil {
		return
	}
	m.ProxyRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Monitor) ObserveFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(kind).Inc()
}

func (m *Monitor) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

func (m *Monitor) ObserveUpload() {
	if m == nil {
		return
	}
	m.MetadataUploads.Inc()
}

func (m *Monitor) SetOffers(n int) {
	if m == nil {
		return
	}
	m.Offers.Set(float64(n))
}

// RegisterCache exports the hot cache counters.
func (m *Monitor) RegisterCache(c *cache.Cache) error {
	if m == nil || c == nil {
		return nil
	}
	return m.registry.Register(NewCacheExporter(c, m.host))
}

func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Run serves /metrics on addr in the background.
func (m *Monitor) Run(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	utils.GoWithRecover(func() {
		logrus.Infof("metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logrus.Error("metrics exporter error: ", err)
		}
	}, nil)
}

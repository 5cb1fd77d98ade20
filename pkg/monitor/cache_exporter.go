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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
)

const (
	cacheHitsKey        = "cache.hits"
	cacheMissesKey      = "cache.misses"
	cacheKeysAddedKey   = "cache.keys_added"
	cacheKeysEvictedKey = "cache.keys_evicted"
	cacheCostAddedKey   = "cache.cost_added"
	cacheSetsDroppedKey = "cache.sets_dropped"
	cacheRatioKey       = "cache.ratio"
)

// CacheExporter reads the ristretto counters of the proxy cache at scrape
// time.
type CacheExporter struct {
	cache   *cache.Cache
	metrics map[string]*prometheus.Desc
}

func NewCacheExporter(c *cache.Cache, host string) *CacheExporter {
	return &CacheExporter{
		cache: c,
		metrics: map[string]*prometheus.Desc{
			cacheHitsKey:        NewDesc("cache_hits_total", "Count of cache hits", nil, host),
			cacheMissesKey:      NewDesc("cache_misses_total", "Count of cache misses", nil, host),
			cacheKeysAddedKey:   NewDesc("cache_keys_added_total", "Count of keys added to the cache", nil, host),
			cacheKeysEvictedKey: NewDesc("cache_keys_evicted_total", "Count of keys evicted from the cache", nil, host),
			cacheCostAddedKey:   NewDesc("cache_cost_added_bytes_total", "Bytes added to the cache", nil, host),
			cacheSetsDroppedKey: NewDesc("cache_sets_dropped_total", "Count of sets dropped by the cache", nil, host),
			cacheRatioKey:       NewDesc("cache_hit_ratio", "Cache hit ratio", nil, host),
		},
	}
}

func (e *CacheExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.metrics {
		ch <- d
	}
}

func (e *CacheExporter) Collect(ch chan<- prometheus.Metric) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Error("cache prometheus collect panic ", r)
		}
	}()
	m := e.cache.Metrics()
	if m == nil {
		return
	}
	counters := map[string]uint64{
		cacheHitsKey:        m.Hits(),
		cacheMissesKey:      m.Misses(),
		cacheKeysAddedKey:   m.KeysAdded(),
		cacheKeysEvictedKey: m.KeysEvicted(),
		cacheCostAddedKey:   m.CostAdded(),
		cacheSetsDroppedKey: m.SetsDropped(),
	}
	for k, v := range counters {
		ch <- prometheus.MustNewConstMetric(e.metrics[k], prometheus.CounterValue, float64(v))
	}
	ch <- prometheus.MustNewConstMetric(e.metrics[cacheRatioKey], prometheus.GaugeValue, m.Ratio())
}

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

package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	MB                  int64 = 1024 * 1024
	defaultMaxCost      int64 = 64 * MB
	defaultMaxItemBytes int64 = 1 * MB
	defaultNumCounters  int64 = 1e6
	defaultBufferItems  int64 = 64
	entryOverheadBytes  int64 = 64
)

var ErrTooLarge = errors.New("cache: entry exceeds max item size")

// Entry is an upstream response kept in the hot cache.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
}

func (e *Entry) cost() int64 {
	return int64(len(e.Body)+len(e.ContentType)) + entryOverheadBytes
}

type Config struct {
	MaxCost      int64
	MaxItemBytes int64
	// Zero means entries never expire
	TTL time.Duration
}

// Cache is a cost-bounded response cache keyed by upstream URL.
type Cache struct {
	c            *ristretto.Cache[string, *Entry]
	maxItemBytes int64
	ttl          time.Duration
}

func New(cfg Config) (*Cache, error) {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.MaxItemBytes <= 0 {
		cfg.MaxItemBytes = defaultMaxItemBytes
	}
	if cfg.MaxItemBytes > cfg.MaxCost {
		cfg.MaxItemBytes = cfg.MaxCost
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *Entry]{
		MaxCost:     cfg.MaxCost,
		NumCounters: defaultNumCounters,
		BufferItems: defaultBufferItems,
		Metrics:     true,
		// The cost is the size of the body in bytes.
		Cost: func(e *Entry) int64 {
			return e.cost()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{c: c, maxItemBytes: cfg.MaxItemBytes, ttl: cfg.TTL}, nil
}

// Admits reports whether a body of size bytes may be cached. Unknown sizes
// (negative) are not admitted.
func (c *Cache) Admits(size int64) bool {
	return size >= 0 && size <= c.maxItemBytes
}

func (c *Cache) MaxItemBytes() int64 {
	return c.maxItemBytes
}

func (c *Cache) Get(key string) (*Entry, bool) {
	return c.c.Get(key)
}

// Set stores e under key. Admission is asynchronous, a true result only
// means the entry was queued.
func (c *Cache) Set(key string, e *Entry) (bool, error) {
	if e == nil || !c.Admits(int64(len(e.Body))) {
		return false, ErrTooLarge
	}
	if c.ttl > 0 {
		return c.c.SetWithTTL(key, e, 0, c.ttl), nil
	}
	return c.c.Set(key, e, 0), nil
}

func (c *Cache) Del(key string) {
	c.c.Del(key)
}

// Wait blocks until queued sets are applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

func (c *Cache) Close() {
	c.c.Close()
}

func (c *Cache) Metrics() *ristretto.Metrics {
	return c.c.Metrics
}

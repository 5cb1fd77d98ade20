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

package config

import "time"

type Config struct {
	Server     ServerS     `mapstructure:"server"`
	IPFS       IPFSS       `mapstructure:"ipfs"`
	Proxy      ProxyS      `mapstructure:"proxy"`
	Fetcher    FetcherS    `mapstructure:"fetcher"`
	Cache      CacheS      `mapstructure:"cache"`
	Offers     OffersS     `mapstructure:"offers"`
	Auth       AuthS       `mapstructure:"auth"`
	Monitor    MonitorS    `mapstructure:"monitor"`
	Log        LogS        `mapstructure:"log"`
	PprofDebug PprofDebugS `mapstructure:"pprof_debug"`
}

type ServerS struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type IPFSS struct {
	// Gateway base URL, always ends with "/"
	Gateway string `mapstructure:"gateway"`
	// API is the address of an IPFS node HTTP API, empty disables pinning
	API string `mapstructure:"api"`
	// Reject ipfs:// and bare-CID inputs whose root is not a valid CID
	StrictCID bool          `mapstructure:"strict_cid"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ProxyS struct {
	// Empty list means every host may be requested
	AllowedHosts    []string      `mapstructure:"allowed_hosts"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	RateLimit       RateLimitS    `mapstructure:"rate_limit"`
}

type RateLimitS struct {
	Enable bool    `mapstructure:"enable"`
	RPS    float64 `mapstructure:"rps"`
	Burst  int     `mapstructure:"burst"`
}

type FetcherS struct {
	// Proxy endpoint used by the metadata fetcher, derived from server.addr when empty
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type CacheS struct {
	Enable bool `mapstructure:"enable"`
	// Total cache capacity (unit: byte)
	MaxCost int64 `mapstructure:"max_cost"`
	// Largest upstream body kept in cache (unit: byte)
	MaxItemBytes int64         `mapstructure:"max_item_bytes"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type OffersS struct {
	// memory, redis, leveldb, badger, s3
	Type  string `mapstructure:"type"`
	Key   string `mapstructure:"key"`
	Path  string `mapstructure:"path"`
	Codec string `mapstructure:"codec"`
	Redis RedisS `mapstructure:"redis"`
	S3    S3S    `mapstructure:"s3"`
}

type RedisS struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type S3S struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

type AuthS struct {
	Enable    bool   `mapstructure:"enable"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type MonitorS struct {
	Enable  bool   `mapstructure:"enable"`
	Address string `mapstructure:"address"`
	Host    string `mapstructure:"host"`
}

type LogS struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PprofDebugS struct {
	Enable bool   `mapstructure:"enable"`
	Port   uint16 `mapstructure:"port"`
}

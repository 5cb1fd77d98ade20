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

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
	"github.com/IceFireDB/IceFireDB-Gateway/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// GatewayEnv selects the IPFS gateway base URL.
const GatewayEnv = "IPFS_GATEWAY_URL"

const DefaultGateway = resolver.DefaultGateway

var (
	ErrConfigNotInit       = errors.New("config not init")
	ErrDuplicateInitConfig = errors.New("duplicate init config")
)

// Do not use config directly in the proxy's data path to prevent races,
// copy what is needed at construction time.
var _config *Config

func InitConfig(path string) error {
	if _config != nil {
		return ErrDuplicateInitConfig
	}
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	_config = cfg
	return nil
}

func Get() *Config {
	return _config
}

// Load reads the YAML file at path (optional) on top of the defaults and
// applies the gateway environment override.
func Load(path string) (*Config, error) {
	// .env is only used for local development
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	if err := v.BindEnv("ipfs.gateway", GatewayEnv); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("config file %s not found, using defaults", path)
		} else {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("ipfs.gateway", DefaultGateway)
	v.SetDefault("ipfs.api", "")
	v.SetDefault("ipfs.strict_cid", false)
	v.SetDefault("ipfs.timeout", 60*time.Second)

	v.SetDefault("proxy.allowed_hosts", []string{})
	v.SetDefault("proxy.upstream_timeout", 60*time.Second)
	v.SetDefault("proxy.rate_limit.enable", false)
	v.SetDefault("proxy.rate_limit.rps", 50.0)
	v.SetDefault("proxy.rate_limit.burst", 100)

	v.SetDefault("fetcher.endpoint", "")
	v.SetDefault("fetcher.timeout", 30*time.Second)

	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.max_cost", int64(64<<20))
	v.SetDefault("cache.max_item_bytes", int64(1<<20))
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("offers.type", "memory")
	v.SetDefault("offers.key", "offers")
	v.SetDefault("offers.path", "data/offers")
	v.SetDefault("offers.codec", "json")
	v.SetDefault("offers.redis.addr", "127.0.0.1:6379")
	v.SetDefault("offers.redis.timeout", 3*time.Second)

	v.SetDefault("auth.enable", false)

	v.SetDefault("monitor.enable", false)
	v.SetDefault("monitor.address", ":19090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

var logFormats = []string{"text", "json"}

func (c *Config) normalize() error {
	c.IPFS.Gateway = resolver.NormalizeGateway(c.IPFS.Gateway)
	if !strings.HasPrefix(c.IPFS.Gateway, "http://") && !strings.HasPrefix(c.IPFS.Gateway, "https://") {
		return fmt.Errorf("ipfs gateway must be an http(s) URL, got %q", c.IPFS.Gateway)
	}
	if c.Auth.Enable && c.Auth.JWTSecret == "" {
		return errors.New("auth is enabled but auth.jwt_secret is empty")
	}
	if c.Fetcher.Timeout <= 0 {
		c.Fetcher.Timeout = 30 * time.Second
	}
	c.Offers.Type = strings.ToLower(c.Offers.Type)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if !utils.InArray(c.Log.Format, logFormats) {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// FetcherEndpoint is the proxy URL the metadata fetcher talks to.
func (c *Config) FetcherEndpoint() string {
	if c.Fetcher.Endpoint != "" {
		return c.Fetcher.Endpoint
	}
	addr := c.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/api/proxy"
}

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

package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/config"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/ipfs"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/monitor"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/offers"
	"github.com/IceFireDB/IceFireDB-Gateway/proxy"
	"github.com/IceFireDB/IceFireDB-Gateway/utils"
)

// BuildDate: Binary file compilation time
// BuildVersion: Binary compiled GIT version
var (
	BuildDate    string
	BuildVersion string
)

const (
	ipfsWaitUp    = 30 * time.Second
	pruneInterval = time.Minute
)

func main() {
	app := cli.NewApp()
	app.Name = "IceFireDB-Gateway"
	app.Usage = "IPFS metadata gateway for the IP marketplace"
	app.Version = BuildVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Usage: "config file",
			Value: "config/config.yaml",
		},
		cli.StringFlag{
			Name:  "log,l",
			Usage: "log level: debug, info, warning, error (overrides log.level)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the gateway http server",
			Action: start,
		},
		resolveCommand,
		fetchCommand,
	}
	app.Before = initConfig
	app.Action = start
	err := app.Run(os.Args)
	if err != nil {
		logrus.Errorf("failed to run application: %v", err)
		os.Exit(1)
	}
}

func start(c *cli.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Get()

	var mon *monitor.Monitor
	if cfg.Monitor.Enable {
		mon = monitor.New(cfg.Monitor.Host)
		mon.Run(cfg.Monitor.Address)
	}

	deps := proxy.Deps{Monitor: mon}

	if cfg.Cache.Enable {
		hot, err := cache.New(cache.Config{
			MaxCost:      cfg.Cache.MaxCost,
			MaxItemBytes: cfg.Cache.MaxItemBytes,
			TTL:          cfg.Cache.TTL,
		})
		if err != nil {
			return err
		}
		defer hot.Close()
		deps.Cache = hot
	}

	backend, err := offers.OpenBackend(ctx, cfg.Offers)
	if err != nil {
		return err
	}
	store := offers.NewStore(backend, cfg.Offers.Key)
	defer store.Close()
	if err := store.Load(); err != nil {
		return err
	}
	logrus.Infof("loaded %d offers from %s backend", store.Len(), cfg.Offers.Type)
	deps.Offers = store

	if cfg.IPFS.API != "" {
		node := ipfs.New(cfg.IPFS.API, cfg.IPFS.Timeout)
		if err := node.WaitUp(ctx, ipfsWaitUp); err != nil {
			logrus.Warnf("ipfs api %s is not reachable yet: %v", cfg.IPFS.API, err)
		}
		deps.IPFS = node
	}

	p, err := proxy.New(cfg, deps)
	if err != nil {
		return err
	}
	defer p.Close()

	wg := sync.WaitGroup{}
	errSignal := make(chan error)

	wg.Add(1)
	utils.GoWithRecover(func() {
		defer wg.Done()
		p.Run(ctx, errSignal)
	}, nil)
	if err := <-errSignal; err != nil {
		return err
	}

	wg.Add(1)
	utils.GoWithRecover(func() {
		defer wg.Done()
		pruneOffers(ctx, store)
	}, nil)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for sig := range sigs {
		switch sig {
		case syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT:
			logrus.Info("Received shutdown signal, initiating graceful shutdown...")
			cancel()

			ok := make(chan struct{})
			go func() {
				wg.Wait()
				close(ok)
			}()
			select {
			case <-ok:
				logrus.Info("All goroutines have gracefully shut down.")
			case <-time.After(cfg.Server.ShutdownTimeout + time.Second):
				logrus.Warn("Context deadline exceeded, forcing shutdown.")
			}
			return nil

		case syscall.SIGHUP:
			logrus.Info("Received SIGHUP signal, offers reloaded from backend.")
			if err := store.Load(); err != nil {
				logrus.Errorf("reload offers: %v", err)
			}
		}
	}
	return nil
}

// pruneOffers drops expired offers until ctx is done.
func pruneOffers(ctx context.Context, store *offers.Store) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune()
			if err != nil {
				logrus.Errorf("prune offers: %v", err)
				continue
			}
			if n > 0 {
				logrus.Infof("pruned %d expired offers", n)
			}
		}
	}
}

func initConfig(c *cli.Context) error {
	if err := config.InitConfig(c.String("config")); err != nil {
		return err
	}
	if err := initLog(c.String("log"), config.Get().Log); err != nil {
		return err
	}
	debug()
	return nil
}

func initLog(flagLevel string, cfg config.LogS) error {
	level := cfg.Level
	if flagLevel != "" {
		level = flagLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func debug() {
	// Open pprof
	if config.Get().PprofDebug.Enable {
		utils.GoWithRecover(func() {
			addr := strconv.Itoa(int(config.Get().PprofDebug.Port))
			_ = http.ListenAndServe(":"+addr, nil)
		}, nil)
	}
}

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
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/cache"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/config"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/fetcher"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/monitor"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/offers"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
)

// Pinner stores metadata documents on IPFS.
type Pinner interface {
	AddJSON(doc []byte) (cid.Cid, error)
	IsUp() bool
}

// Deps are the collaborators built by the caller. Every field is optional:
// a nil Offers gets an in-memory store, a nil IPFS disables uploads, a nil
// Cache disables response caching and a nil Monitor records nothing.
type Deps struct {
	Offers  *offers.Store
	IPFS    Pinner
	Monitor *monitor.Monitor
	Cache   *cache.Cache
}

type Proxy struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	fetcher  *fetcher.Fetcher
	upstream *http.Client
	limiter  *rate.Limiter

	cache   *cache.Cache
	offers  *offers.Store
	ipfs    Pinner
	monitor *monitor.Monitor
	subID   offers.SubscriptionID

	server *http.Server
}

func New(cfg *config.Config, deps Deps) (*Proxy, error) {
	p := &Proxy{
		cfg:      cfg,
		resolver: resolver.New(cfg.IPFS.Gateway),
		cache:    deps.Cache,
		offers:   deps.Offers,
		ipfs:     deps.IPFS,
		monitor:  deps.Monitor,
	}

	p.upstream = &http.Client{
		Timeout:       cfg.Proxy.UpstreamTimeout,
		CheckRedirect: p.checkRedirect,
	}

	var err error
	p.fetcher, err = fetcher.New(fetcher.Options{
		Endpoint: cfg.FetcherEndpoint(),
		Timeout:  cfg.Fetcher.Timeout,
		Resolver: p.resolver,
		OnFailure: func(k fetcher.Kind) {
			p.monitor.ObserveFetchFailure(k.String())
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Proxy.RateLimit.Enable {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Proxy.RateLimit.RPS), cfg.Proxy.RateLimit.Burst)
	}

	if p.offers == nil {
		p.offers = offers.NewStore(offers.NewMemoryStore(nil), cfg.Offers.Key)
		if err := p.offers.Load(); err != nil {
			return nil, err
		}
	}
	p.monitor.SetOffers(p.offers.Len())
	p.subID = p.offers.Subscribe(func(e offers.Event) {
		p.monitor.SetOffers(len(e.Offers))
		logrus.WithField("offers", len(e.Offers)).Debugf("offers %s", e.Type)
	})

	if err := p.monitor.RegisterCache(p.cache); err != nil {
		return nil, err
	}

	p.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return p, nil
}

// Handler returns the full route table wrapped in the middleware chain.
func (p *Proxy) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/proxy", p.handleProxy)

	mux.HandleFunc("GET /api/metadata", p.handleGetMetadata)
	mux.HandleFunc("POST /api/metadata", p.requireSession(p.handleUploadMetadata))

	mux.HandleFunc("GET /api/offers", p.handleListOffers)
	mux.HandleFunc("GET /api/offers/{id}", p.handleGetOffer)
	mux.HandleFunc("POST /api/offers", p.requireSession(p.handleCreateOffer))
	mux.HandleFunc("DELETE /api/offers/{id}", p.requireSession(p.handleDeleteOffer))
	mux.HandleFunc("DELETE /api/offers", p.requireSession(p.handleClearOffers))

	mux.HandleFunc("GET /healthz", p.handleHealth)
	mux.HandleFunc("GET /readyz", p.handleReady)

	return recoverer(requestID(accessLog(mux)))
}

func (p *Proxy) Resolver() *resolver.Resolver {
	return p.resolver
}

func (p *Proxy) Fetcher() *fetcher.Fetcher {
	return p.fetcher
}

// Run listens on server.addr, reports the listen result on errSignal and
// serves until ctx is done.
func (p *Proxy) Run(ctx context.Context, errSignal chan error) {
	l, err := net.Listen("tcp", p.server.Addr)
	if err != nil {
		errSignal <- err
		return
	}
	errSignal <- nil
	logrus.Infof("gateway listening on %s", l.Addr())

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout())
		defer cancel()
		if err := p.server.Shutdown(sctx); err != nil {
			logrus.Errorf("gateway forced to shutdown: %v", err)
		}
	}()

	if err := p.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Errorf("gateway serve error: %v", err)
	}
}

func (p *Proxy) Close() error {
	p.offers.Unsubscribe(p.subID)
	return nil
}

func (p *Proxy) shutdownTimeout() time.Duration {
	if p.cfg.Server.ShutdownTimeout > 0 {
		return p.cfg.Server.ShutdownTimeout
	}
	return 5 * time.Second
}

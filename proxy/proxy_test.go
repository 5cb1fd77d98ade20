package proxy

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.IPFS.Gateway = "https://gateway.test/ipfs/"
	cfg.Proxy.UpstreamTimeout = 5 * time.Second
	cfg.Fetcher.Timeout = 5 * time.Second
	cfg.Offers.Key = "offers"
	return cfg
}

// newGateway serves a Proxy on a loopback listener whose address is also
// the fetcher endpoint, so /api/metadata goes through /api/proxy.
func newGateway(t *testing.T, cfg *config.Config, deps Deps) (*Proxy, *httptest.Server) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Fetcher.Endpoint = "http://" + l.Addr().String() + "/api/proxy"

	p, err := New(cfg, deps)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(p.Handler())
	_ = srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		_ = p.Close()
	})
	return p, srv
}

func newUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type response struct {
	code   int
	header http.Header
	body   string
}

func do(t *testing.T, method, url, token, body string) response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{code: resp.StatusCode, header: resp.Header, body: string(b)}
}

func get(t *testing.T, url string) response {
	t.Helper()
	return do(t, http.MethodGet, url, "", "")
}

package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	_, gw := newGateway(t, testConfig(), Deps{})

	resp := get(t, gw.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.body)

	resp = get(t, gw.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.JSONEq(t, `{"status":"ok","checks":{"offers":"ok"}}`, resp.body)
}

func TestReadyReportsIPFS(t *testing.T) {
	pinner := newPinner(t)
	_, gw := newGateway(t, testConfig(), Deps{IPFS: pinner})

	resp := get(t, gw.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.code)

	pinner.setDown(true)
	resp = get(t, gw.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.code)
	var body healthResponse
	require.NoError(t, json.Unmarshal([]byte(resp.body), &body))
	assert.Equal(t, "down", body.Status)
	assert.Equal(t, "down", body.Checks["ipfs"])
	assert.Equal(t, "ok", body.Checks["offers"])
}

func TestRequestID(t *testing.T) {
	_, gw := newGateway(t, testConfig(), Deps{})

	resp := get(t, gw.URL+"/healthz")
	assert.NotEmpty(t, resp.header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, "abc-123", r.Header.Get(requestIDHeader))
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	_, gw := newGateway(t, testConfig(), Deps{})
	assert.Equal(t, http.StatusNotFound, get(t, gw.URL+"/nope").code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, http.MethodPut, gw.URL+"/api/proxy", "", "").code)
}

func TestRunAndShutdown(t *testing.T) {
	p, err := New(testConfig(), Deps{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errSignal := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, errSignal)
		close(done)
	}()
	require.NoError(t, <-errSignal)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Addr = "127.0.0.1:-1"
	p, err := New(cfg, Deps{})
	require.NoError(t, err)

	errSignal := make(chan error, 1)
	p.Run(context.Background(), errSignal)
	assert.Error(t, <-errSignal)
}

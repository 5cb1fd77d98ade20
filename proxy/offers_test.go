package proxy

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/philippgille/gokv/encoding"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/monitor"
	"github.com/IceFireDB/IceFireDB-Gateway/pkg/offers"
)

func decodeOffer(t *testing.T, body string) offers.Offer {
	t.Helper()
	var o offers.Offer
	require.NoError(t, json.Unmarshal([]byte(body), &o))
	return o
}

func decodeOffers(t *testing.T, body string) []offers.Offer {
	t.Helper()
	var list []offers.Offer
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	return list
}

func TestOffersCRUD(t *testing.T) {
	m := monitor.New("test")
	_, gw := newGateway(t, testConfig(), Deps{Monitor: m})
	base := gw.URL + "/api/offers"

	resp := get(t, base)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Empty(t, decodeOffers(t, resp.body))

	resp = do(t, http.MethodPost, base, "", `{"token_id":"1","price":1.5,"currency":"eth"}`)
	require.Equal(t, http.StatusCreated, resp.code, resp.body)
	a := decodeOffer(t, resp.body)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "1.5", a.Price)
	assert.Equal(t, "ETH", a.Currency)

	resp = do(t, http.MethodPost, base, "", `{"token_id":"2","price":"20","contract":"0xc0ffee"}`)
	require.Equal(t, http.StatusCreated, resp.code, resp.body)
	b := decodeOffer(t, resp.body)
	assert.Equal(t, offers.DefaultCurrency, b.Currency)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Offers))

	list := decodeOffers(t, get(t, base).body)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	filtered := decodeOffers(t, get(t, base+"?token_id=2").body)
	require.Len(t, filtered, 1)
	assert.Equal(t, b.ID, filtered[0].ID)
	assert.Len(t, decodeOffers(t, get(t, base+"?contract=0xc0ffee").body), 1)

	resp = get(t, base+"/"+a.ID)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, a.ID, decodeOffer(t, resp.body).ID)

	resp = do(t, http.MethodDelete, base+"/"+a.ID, "", "")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Equal(t, http.StatusNotFound, get(t, base+"/"+a.ID).code)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, base+"/"+a.ID, "", "").code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Offers))

	resp = do(t, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, resp.code)
	assert.Empty(t, decodeOffers(t, get(t, base).body))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Offers))
}

func TestOffersCreateErrors(t *testing.T) {
	_, gw := newGateway(t, testConfig(), Deps{})
	base := gw.URL + "/api/offers"

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing token", `{"price":"1"}`, http.StatusBadRequest},
		{"missing price", `{"token_id":"1"}`, http.StatusBadRequest},
		{"negative price", `{"token_id":"1","price":-2}`, http.StatusBadRequest},
		{"expired", `{"token_id":"1","price":"1","expiry":"2001-01-01T00:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, base, "", tt.body)
			assert.Equal(t, tt.code, resp.code, resp.body)
		})
	}

	resp := do(t, http.MethodPost, base, "", `{"id":"fixed","token_id":"1","price":"1"}`)
	require.Equal(t, http.StatusCreated, resp.code)
	resp = do(t, http.MethodPost, base, "", `{"id":"fixed","token_id":"1","price":"1"}`)
	assert.Equal(t, http.StatusConflict, resp.code)
}

func TestOffersSession(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enable = true
	cfg.Auth.JWTSecret = testSecret
	_, gw := newGateway(t, cfg, Deps{})
	base := gw.URL + "/api/offers"

	alice := sessionToken(t, testSecret, "0xa11ce", "")
	bob := sessionToken(t, testSecret, "0xb0b", "")

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, base, "", `{"token_id":"1","price":"1"}`).code)

	resp := do(t, http.MethodPost, base, alice, `{"token_id":"1","price":"1"}`)
	require.Equal(t, http.StatusCreated, resp.code, resp.body)
	o := decodeOffer(t, resp.body)
	assert.Equal(t, "0xa11ce", o.Maker)

	resp = do(t, http.MethodPost, base, alice, `{"token_id":"1","price":"1","maker":"0xb0b"}`)
	assert.Equal(t, http.StatusForbidden, resp.code)

	// reads stay public
	assert.Equal(t, http.StatusOK, get(t, base+"/"+o.ID).code)
	assert.Len(t, decodeOffers(t, get(t, base+"?maker=0xa11ce").body), 1)

	assert.Equal(t, http.StatusForbidden, do(t, http.MethodDelete, base+"/"+o.ID, bob, "").code)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodDelete, base, "", "").code)
	assert.Equal(t, http.StatusOK, do(t, http.MethodDelete, base+"/"+o.ID, alice, "").code)
}

func TestOffersUseInjectedStore(t *testing.T) {
	store := offers.NewStore(offers.NewMemoryStore(encoding.JSON), "")
	require.NoError(t, store.Load())
	_, err := store.Add(offers.Offer{TokenID: "5", Price: "3"})
	require.NoError(t, err)

	m := monitor.New("test")
	_, gw := newGateway(t, testConfig(), Deps{Offers: store, Monitor: m})

	list := decodeOffers(t, get(t, gw.URL+"/api/offers").body)
	require.Len(t, list, 1)
	assert.Equal(t, "5", list[0].TokenID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Offers))

	_, err = store.Add(offers.Offer{TokenID: "6", Price: "3"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Offers))
}

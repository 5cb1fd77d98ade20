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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/offers"
)

// offerRequest accepts the price as a JSON number or a decimal string.
type offerRequest struct {
	ID       string      `json:"id"`
	TokenID  string      `json:"token_id"`
	Contract string      `json:"contract"`
	Maker    string      `json:"maker"`
	Price    json.Number `json:"price"`
	Currency string      `json:"currency"`
	Expiry   time.Time   `json:"expiry"`
}

func (req offerRequest) offer() offers.Offer {
	return offers.Offer{
		ID:       req.ID,
		TokenID:  req.TokenID,
		Contract: req.Contract,
		Maker:    req.Maker,
		Price:    req.Price.String(),
		Currency: req.Currency,
		Expiry:   req.Expiry,
	}
}

// GET /api/offers, optionally filtered by token_id, contract or maker.
func (p *Proxy) handleListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID, contract, maker := q.Get("token_id"), q.Get("contract"), q.Get("maker")

	list := p.offers.List()
	out := make([]offers.Offer, 0, len(list))
	for _, o := range list {
		if tokenID != "" && o.TokenID != tokenID {
			continue
		}
		if contract != "" && o.Contract != contract {
			continue
		}
		if maker != "" && o.Maker != maker {
			continue
		}
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (p *Proxy) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	o, ok := p.offers.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "offer not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (p *Proxy) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	o := req.offer()
	if subject := SubjectFromCtx(r.Context()); subject != "" {
		if o.Maker != "" && o.Maker != subject {
			writeError(w, http.StatusForbidden, "forbidden", "maker does not match session")
			return
		}
		o.Maker = subject
	}

	created, err := p.offers.Add(o)
	if err != nil {
		writeOfferError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (p *Proxy) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, ok := p.offers.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "offer not found")
		return
	}
	if subject := SubjectFromCtx(r.Context()); subject != "" && o.Maker != subject {
		writeError(w, http.StatusForbidden, "forbidden", "offer belongs to another maker")
		return
	}

	removed, err := p.offers.Remove(id)
	if err != nil {
		writeOfferError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (p *Proxy) handleClearOffers(w http.ResponseWriter, r *http.Request) {
	if err := p.offers.Clear(); err != nil {
		writeOfferError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeOfferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, offers.ErrInvalidOffer):
		writeError(w, http.StatusBadRequest, "invalid_offer", err.Error())
	case errors.Is(err, offers.ErrDuplicateOffer):
		writeError(w, http.StatusConflict, "duplicate_offer", err.Error())
	case errors.Is(err, offers.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		logrus.Errorf("offers store: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "offers store unavailable")
	}
}

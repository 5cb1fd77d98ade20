package offers

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const DefaultCurrency = "STRK"

// Plain decimal only: no exponent, fraction or base prefix.
var decimalPrice = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

var (
	ErrInvalidOffer   = errors.New("offers: invalid offer")
	ErrDuplicateOffer = errors.New("offers: duplicate offer id")
	ErrOfferNotFound  = errors.New("offers: offer not found")
)

// Offer is a bid on a licensed IP token. Price is kept as a decimal string
// so token amounts never go through float64.
type Offer struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	Contract  string    `json:"contract,omitempty"`
	Maker     string    `json:"maker,omitempty"`
	Price     string    `json:"price"`
	Currency  string    `json:"currency"`
	Expiry    time.Time `json:"expiry"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the offer had an expiry before now.
func (o Offer) Expired(now time.Time) bool {
	return !o.Expiry.IsZero() && !o.Expiry.After(now)
}

func (o *Offer) validate(now time.Time) error {
	o.TokenID = strings.TrimSpace(o.TokenID)
	o.Price = strings.TrimSpace(o.Price)
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}

	if o.TokenID == "" {
		return fmt.Errorf("%w: token_id is required", ErrInvalidOffer)
	}
	if o.Price == "" {
		return fmt.Errorf("%w: price is required", ErrInvalidOffer)
	}
	if !decimalPrice.MatchString(o.Price) {
		return fmt.Errorf("%w: price %q is not a decimal number", ErrInvalidOffer, o.Price)
	}
	p, ok := new(big.Rat).SetString(o.Price)
	if !ok {
		return fmt.Errorf("%w: price %q is not a decimal number", ErrInvalidOffer, o.Price)
	}
	if p.Sign() < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidOffer)
	}
	if o.Expired(now) {
		return fmt.Errorf("%w: offer already expired", ErrInvalidOffer)
	}
	return nil
}

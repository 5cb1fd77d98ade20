package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies why a metadata fetch produced no value.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindTimeout
	KindNetwork
	KindInvalidResponse
	KindInvalidURI
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network_error"
	case KindInvalidResponse:
		return "invalid_response"
	case KindInvalidURI:
		return "invalid_uri"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They only compare the kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrInvalidURI      = &Error{Kind: KindInvalidURI}
)

var errEmptyURI = errors.New("empty uri")

type Error struct {
	Kind Kind
	// URL is the resolved target, empty when resolution did not happen
	URL string
	// Status is the HTTP status returned by the proxy, 0 when none
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := "fetch metadata: " + e.Kind.String()
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, KindUnknown when err is not a
// fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

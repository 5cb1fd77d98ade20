// Package fetcher loads JSON metadata for content URIs through the gateway
// proxy endpoint.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
)

const DefaultTimeout = 30 * time.Second

type Options struct {
	// Endpoint is the proxy URL, e.g. http://127.0.0.1:3000/api/proxy.
	// When empty the resolved URL is requested directly.
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
	Resolver *resolver.Resolver
	// OnFailure is called once per failed fetch.
	OnFailure func(Kind)
}

type Fetcher struct {
	endpoint  *url.URL
	timeout   time.Duration
	client    *http.Client
	resolver  *resolver.Resolver
	onFailure func(Kind)
}

func New(opts Options) (*Fetcher, error) {
	f := &Fetcher{
		timeout:   opts.Timeout,
		client:    opts.Client,
		resolver:  opts.Resolver,
		onFailure: opts.OnFailure,
	}
	if opts.Endpoint != "" {
		u, err := url.Parse(opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid proxy endpoint %q: scheme must be http or https", opts.Endpoint)
		}
		f.endpoint = u
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.resolver == nil {
		f.resolver = resolver.New(resolver.DefaultGateway)
	}
	return f, nil
}

// Fetch returns the decoded JSON document behind uri. Every failure is an
// *Error, including bodies that are not valid JSON.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (any, error) {
	var v any
	if err := f.FetchInto(ctx, uri, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup is Fetch collapsed to a found flag. The failure kind only shows up
// in the log.
func (f *Fetcher) Lookup(ctx context.Context, uri string) (any, bool) {
	v, err := f.Fetch(ctx, uri)
	if err != nil {
		logrus.WithField("kind", KindOf(err).String()).Debugf("metadata for %q unavailable: %v", uri, err)
		return nil, false
	}
	return v, true
}

// FetchInto decodes the JSON document behind uri into v.
func (f *Fetcher) FetchInto(ctx context.Context, uri string, v any) error {
	if uri == "" {
		return f.fail(&Error{Kind: KindNotFound, Err: errEmptyURI})
	}

	target := f.resolver.Resolve(uri)
	if !strings.HasPrefix(target, "http") {
		logrus.Warnf("invalid metadata url %q resolved from %q", target, uri)
		return f.fail(&Error{Kind: KindInvalidURI, URL: target})
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(target), nil)
	if err != nil {
		return f.fail(&Error{Kind: KindInvalidURI, URL: target, Err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return f.fail(f.transportError(ctx, target, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindNetwork
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			kind = KindNotFound
		}
		logrus.Warnf("metadata fetch for %s returned %s", target, resp.Status)
		return f.fail(&Error{Kind: kind, URL: target, Status: resp.StatusCode})
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctx.Err() != nil {
			return f.fail(f.transportError(ctx, target, err))
		}
		logrus.Warnf("metadata at %s is not valid json: %v", target, err)
		return f.fail(&Error{Kind: KindInvalidResponse, URL: target, Status: resp.StatusCode, Err: err})
	}
	return nil
}

func (f *Fetcher) transportError(ctx context.Context, target string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logrus.Warnf("metadata fetch for %s timed out after %s", target, f.timeout)
		return &Error{Kind: KindTimeout, URL: target, Err: err}
	}
	logrus.Errorf("failed to fetch metadata from %s: %v", target, err)
	return &Error{Kind: KindNetwork, URL: target, Err: err}
}

func (f *Fetcher) requestURL(target string) string {
	if f.endpoint == nil {
		return target
	}
	u := *f.endpoint
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *Fetcher) fail(e *Error) *Error {
	if f.onFailure != nil {
		f.onFailure(e.Kind)
	}
	return e
}

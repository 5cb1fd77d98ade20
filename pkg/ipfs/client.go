package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/sirupsen/logrus"
)

const DefaultEndpoint = "http://localhost:5001"

var (
	ErrInvalidJSON = errors.New("ipfs: document is not valid json")
	ErrNodeDown    = errors.New("ipfs: node api unreachable")
)

// Client pins metadata documents through an IPFS node HTTP API.
type Client struct {
	remoteShell *shell.Shell
}

func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	sh := shell.NewShell(endpoint)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}
	return &Client{remoteShell: sh}
}

// AddJSON adds and pins doc, returning its CID.
func (c *Client) AddJSON(doc []byte) (cid.Cid, error) {
	if !json.Valid(doc) {
		return cid.Undef, ErrInvalidJSON
	}
	hash, err := c.remoteShell.Add(bytes.NewReader(doc), shell.Pin(true))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs add: %w", err)
	}
	return cid.Decode(hash)
}

func (c *Client) IsUp() bool {
	return c.remoteShell.IsUp()
}

// WaitUp polls the node with exponential backoff until it answers or
// maxElapsed passes.
func (c *Client) WaitUp(ctx context.Context, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	return backoff.RetryNotify(func() error {
		if !c.IsUp() {
			return ErrNodeDown
		}
		return nil
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logrus.Warnf("ipfs node not ready, retrying in %s", d)
	})
}

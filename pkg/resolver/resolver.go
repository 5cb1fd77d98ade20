// Package resolver turns content URIs (ipfs:// paths, bare CIDs or plain
// HTTP(S) URLs) into URLs that can be fetched through an IPFS gateway.
package resolver

import (
	"errors"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58/base58"
	"github.com/multiformats/go-multihash"
)

const DefaultGateway = "https://ipfs.io/ipfs/"

const (
	schemePrefix = "ipfs://"
	pathPrefix   = "ipfs/"
)

var ErrNoCID = errors.New("resolver: uri has no cid root")

type URIKind int

const (
	KindEmpty URIKind = iota
	KindHTTP
	KindIPFS
	KindCID
	KindPath
)

func (k URIKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindHTTP:
		return "http"
	case KindIPFS:
		return "ipfs"
	case KindCID:
		return "cid"
	default:
		return "path"
	}
}

// Resolver holds the gateway base URL. It is immutable once built.
type Resolver struct {
	base string
}

func New(gateway string) *Resolver {
	return &Resolver{base: NormalizeGateway(gateway)}
}

// NormalizeGateway trims the base URL and makes sure it ends with "/".
// An empty base selects DefaultGateway.
func NormalizeGateway(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return DefaultGateway
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (r *Resolver) Base() string {
	return r.base
}

// Resolve maps uri to a fetchable URL. Empty input yields "", HTTP(S) URLs
// are returned as is, everything else is appended to the gateway base after
// dropping a leading "ipfs://" and then a leading "ipfs/". Malformed CIDs
// are not detected here.
func (r *Resolver) Resolve(uri string) string {
	if uri == "" {
		return ""
	}
	if isHTTP(uri) {
		return uri
	}
	return r.base + trimIPFS(uri)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func trimIPFS(uri string) string {
	p := strings.TrimPrefix(uri, schemePrefix)
	return strings.TrimPrefix(p, pathPrefix)
}

// LooksLikeCID is the cheap bare-CID heuristic: a "Qm" (CIDv0) or "bafy"
// (CIDv1 dag-pb, base32) prefix and no path separator.
func LooksLikeCID(s string) bool {
	if strings.Contains(s, "/") {
		return false
	}
	return strings.HasPrefix(s, "Qm") || strings.HasPrefix(s, "bafy")
}

func Classify(uri string) URIKind {
	switch {
	case uri == "":
		return KindEmpty
	case isHTTP(uri):
		return KindHTTP
	case strings.HasPrefix(uri, schemePrefix), strings.HasPrefix(uri, pathPrefix):
		return KindIPFS
	case LooksLikeCID(uri):
		return KindCID
	default:
		return KindPath
	}
}

// RootCID parses the CID at the root of uri. For HTTP(S) URLs the segment
// following "/ipfs/" in the path is used, which covers path-style gateways.
func RootCID(uri string) (cid.Cid, error) {
	var root string
	switch Classify(uri) {
	case KindEmpty:
		return cid.Undef, ErrNoCID
	case KindHTTP:
		u, err := url.Parse(uri)
		if err != nil {
			return cid.Undef, err
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(segs)-1; i++ {
			if segs[i] == "ipfs" {
				root = segs[i+1]
				break
			}
		}
		if root == "" {
			return cid.Undef, ErrNoCID
		}
	default:
		root, _, _ = strings.Cut(trimIPFS(uri), "/")
	}
	return cid.Decode(root)
}

// CIDInfo describes a root CID.
type CIDInfo struct {
	CID     string `json:"cid"`
	Version uint64 `json:"version"`
	Codec   uint64 `json:"codec"`
	Hash    string `json:"hash"`
	// Digest is the base58btc multihash, which is also the CIDv0 form.
	Digest string `json:"digest"`
}

func Describe(c cid.Cid) (CIDInfo, error) {
	if !c.Defined() {
		return CIDInfo{}, ErrNoCID
	}
	mh := c.Hash()
	dec, err := multihash.Decode(mh)
	if err != nil {
		return CIDInfo{}, err
	}
	return CIDInfo{
		CID:     c.String(),
		Version: c.Version(),
		Codec:   c.Type(),
		Hash:    dec.Name,
		Digest:  base58.Encode(mh),
	}, nil
}

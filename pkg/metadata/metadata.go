// Package metadata reads the loosely typed NFT / IP metadata documents
// returned by the fetcher.
package metadata

import (
	"github.com/spf13/cast"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/resolver"
)

var (
	nameKeys  = []string{"name", "title"}
	imageKeys = []string{"image", "image_url", "imageUrl"}
)

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Name returns the first non-empty name-like field.
func Name(meta any) string {
	return firstString(cast.ToStringMap(meta), nameKeys)
}

func Description(meta any) string {
	return cast.ToString(cast.ToStringMap(meta)["description"])
}

// Image returns the resolved image URL, looking at the common top-level keys
// and then properties.image.
func Image(meta any, r *resolver.Resolver) string {
	m := cast.ToStringMap(meta)
	img := firstString(m, imageKeys)
	if img == "" {
		img = cast.ToString(cast.ToStringMap(m["properties"])["image"])
	}
	return r.Resolve(img)
}

// Attributes returns the OpenSea-style attribute list. Entries without a
// trait_type are skipped.
func Attributes(meta any) []Attribute {
	raw := cast.ToSlice(cast.ToStringMap(meta)["attributes"])
	attrs := make([]Attribute, 0, len(raw))
	for _, item := range raw {
		m := cast.ToStringMap(item)
		trait := cast.ToString(m["trait_type"])
		if trait == "" {
			continue
		}
		attrs = append(attrs, Attribute{TraitType: trait, Value: m["value"]})
	}
	return attrs
}

func firstString(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := cast.ToString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

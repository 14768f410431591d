// Package posttype models post type URIs of the form <base>/v<version>,
// e.g. "https://driftline.io/types/post/status/v0.1.0". The base identifies
// the kind of post; the version identifies the schema revision. Subscriptions
// and visibility checks match on the base only.
package posttype

import (
	"fmt"
	"strings"
)

// DeletedPost marks tombstone versions left behind by a soft delete.
const DeletedPost = "https://driftline.io/types/post/delete/v0.1.0"

// Type is a parsed post type URI.
type Type struct {
	Base    string
	Version string
}

// Parse splits a type URI into base and version. A URI without a version
// suffix parses to a Type with an empty Version.
func Parse(uri string) Type {
	idx := strings.LastIndex(uri, "/v")
	if idx < 0 {
		return Type{Base: strings.TrimSuffix(uri, "/")}
	}
	return Type{
		Base:    uri[:idx],
		Version: uri[idx+2:],
	}
}

// URI renders the full type URI.
func (t Type) URI() string {
	if t.Version == "" {
		return t.Base
	}
	return fmt.Sprintf("%s/v%s", t.Base, t.Version)
}

// Base returns the base of a type URI without constructing a Type.
func Base(uri string) string {
	return Parse(uri).Base
}

// Bases parses a comma-separated list of type URIs and returns their bases.
// Empty elements are skipped.
func Bases(uris string) []string {
	var bases []string
	for _, uri := range strings.Split(uris, ",") {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}
		bases = append(bases, Base(uri))
	}
	return bases
}

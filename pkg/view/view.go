// Package view produces the client-facing representation of a post. The
// projection itself is scope-agnostic; which optional substructures survive
// serialization is decided one layer up, from the requester's authorized
// scopes, and handed down as an exclude list.
package view

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/driftline/driftline/pkg/models"
)

// Scopes gating optional response substructures.
const (
	ScopeReadPermissions = "read_permissions"
	ScopeReadGroups      = "read_groups"
	ScopeReadSecrets     = "read_secrets"
)

// Options shapes a projection.
type Options struct {
	// Exclude lists top-level fields to drop from the result.
	Exclude []string
}

// ScopeOptions captures which optional substructures the requester may see.
type ScopeOptions struct {
	// App is true when the requester authenticated as an app; only apps see
	// the app attribution on posts they created.
	App bool

	Permissions bool
	Groups      bool
	Mac         bool
}

// OptionsFromScopes derives ScopeOptions from the authorized scopes. isApp is
// true when the requester authenticated as an app.
func OptionsFromScopes(scopes []string, isApp bool) ScopeOptions {
	has := func(want string) bool {
		for _, s := range scopes {
			if s == want {
				return true
			}
		}
		return false
	}

	return ScopeOptions{
		App:         isApp,
		Permissions: has(ScopeReadPermissions),
		Groups:      has(ScopeReadGroups),
		Mac:         has(ScopeReadSecrets),
	}
}

// Excludes returns the top-level fields the requester is not entitled to,
// ready to hand to Project.
func (o ScopeOptions) Excludes() []string {
	var excludes []string
	if !o.App {
		excludes = append(excludes, "app")
	}
	if !o.Permissions {
		excludes = append(excludes, "permissions")
	}
	if !o.Groups {
		excludes = append(excludes, "groups")
	}
	if !o.Mac {
		excludes = append(excludes, "mac")
	}
	return excludes
}

// Project renders the post for clients: the type as a full URI, version set
// to the post's latest version number, app attribution nested under "app"
// only when a name or url is present, and live mentions flattened to
// {entity, post?} pairs.
func Project(db *gorm.DB, post *models.Post, opts Options) (map[string]interface{}, error) {
	version, err := post.LatestVersion(db)
	if err != nil {
		return nil, fmt.Errorf("error projecting post: %w", err)
	}
	mentions, err := post.Mentions(db)
	if err != nil {
		return nil, fmt.Errorf("error projecting post: %w", err)
	}

	out := map[string]interface{}{
		"id":      post.PublicID,
		"entity":  post.Entity,
		"type":    post.TypeURI(),
		"version": version.Version,
	}

	if post.PublishedAt != nil {
		out["published_at"] = post.PublishedAt.Unix()
	}
	if post.ReceivedAt != nil {
		out["received_at"] = post.ReceivedAt.Unix()
	}
	if post.Licenses != nil {
		out["licenses"] = []string(post.Licenses)
	}
	if content, err := post.Content.Map(); err != nil {
		return nil, fmt.Errorf("error projecting content: %w", err)
	} else if content != nil {
		out["content"] = content
	}

	if post.AppName != "" || post.AppURL != "" {
		app := map[string]interface{}{}
		if post.AppName != "" {
			app["name"] = post.AppName
		}
		if post.AppURL != "" {
			app["url"] = post.AppURL
		}
		out["app"] = app
	}

	flattened := make([]map[string]interface{}, 0, len(mentions))
	for _, m := range mentions {
		entry := map[string]interface{}{"entity": m.Entity}
		if m.MentionedPostID != "" {
			entry["post"] = m.MentionedPostID
		}
		flattened = append(flattened, entry)
	}
	out["mentions"] = flattened

	for _, field := range opts.Exclude {
		delete(out, field)
	}

	return out, nil
}

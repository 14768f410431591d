package models

import (
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gorm.io/gorm"

	"github.com/driftline/driftline/pkg/posttype"
)

// Pagination fallbacks for reverse mention lookups, used when the params
// carry no configured sizes.
const (
	DefaultPerPage = 25
	MaxPerPage     = 200
)

// PublicMentionsParams are the query parameters of a reverse mention lookup.
// Cursor values arrive as strings from the request layer and are validated as
// integers before any SQL is built.
type PublicMentionsParams struct {
	// BeforeID and UntilID bound results to ids strictly below the cursor;
	// SinceID to ids strictly above it.
	BeforeID string
	UntilID  string
	SinceID  string

	// PostTypes is a comma-separated list of type URIs; candidates are
	// matched on type base.
	PostTypes string

	// Limit is the requested page size. Empty or non-positive means the
	// default; the effective size is always capped at the maximum.
	Limit string

	// PerPage and MaxPerPage override the package defaults when positive.
	// They come from configuration, not from the request.
	PerPage    int
	MaxPerPage int
}

// Validate checks the cursor and limit parameters.
func (p PublicMentionsParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.BeforeID, is.Int),
		validation.Field(&p.UntilID, is.Int),
		validation.Field(&p.SinceID, is.Int),
		validation.Field(&p.Limit, is.Int),
	)
}

// PostMentionRef is one row of a reverse mention lookup: a public post that
// mentions the queried post.
type PostMentionRef struct {
	// MentionedPostID is the public id of the mentioning post.
	MentionedPostID string `json:"post"`

	// Entity is the mentioning post's author.
	Entity string `json:"entity"`

	TypeBase    string `json:"type_base"`
	TypeVersion string `json:"type_version"`
}

// PublicMentions returns the public, original posts that mention this post's
// public id under this post's entity, restricted to the owning account.
// Results are always in ascending id order: a before cursor flips the
// underlying scan to descending so the bound is applied correctly, and the
// page is reversed before being returned.
func (p *Post) PublicMentions(db *gorm.DB, params PublicMentionsParams) ([]PostMentionRef, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sql, bindings, reversed := p.publicMentionsQuery(params, false)

	var refs []PostMentionRef
	if err := db.Raw(sql, bindings...).Scan(&refs).Error; err != nil {
		return nil, fmt.Errorf("error querying public mentions: %w", err)
	}

	if reversed {
		for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
			refs[i], refs[j] = refs[j], refs[i]
		}
	}
	return refs, nil
}

// PublicMentionsCount returns only the number of matching rows. Ordering and
// limits do not apply.
func (p *Post) PublicMentionsCount(db *gorm.DB, params PublicMentionsParams) (int64, error) {
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sql, bindings, _ := p.publicMentionsQuery(params, true)

	var count int64
	if err := db.Raw(sql, bindings...).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting public mentions: %w", err)
	}
	return count, nil
}

// publicMentionsQuery builds the lookup SQL. Returns the statement, its
// bindings, and whether the page must be reversed to restore ascending order.
func (p *Post) publicMentionsQuery(params PublicMentionsParams, count bool) (string, []interface{}, bool) {
	var (
		sql      []string
		bindings []interface{}
	)

	if count {
		sql = append(sql, "SELECT COUNT(*) FROM mentions")
	} else {
		sql = append(sql, "SELECT posts.public_id AS mentioned_post_id, posts.entity,"+
			" posts.type_base, posts.type_version FROM mentions")
	}
	sql = append(sql, "INNER JOIN posts ON posts.id = mentions.post_id")

	sql = append(sql, "WHERE mentions.mentioned_post_id = ?")
	bindings = append(bindings, p.PublicID)

	sql = append(sql, "AND mentions.entity = ?")
	bindings = append(bindings, p.Entity)

	sql = append(sql, "AND mentions.original_post = ?")
	bindings = append(bindings, true)

	sql = append(sql, "AND posts.account_id = ?")
	bindings = append(bindings, p.AccountID)

	sql = append(sql, "AND posts.public = ?")
	bindings = append(bindings, true)

	if params.BeforeID != "" {
		sql = append(sql, "AND posts.id < ?")
		bindings = append(bindings, mustInt(params.BeforeID))
	}
	if params.UntilID != "" {
		sql = append(sql, "AND posts.id < ?")
		bindings = append(bindings, mustInt(params.UntilID))
	}
	if params.SinceID != "" {
		sql = append(sql, "AND posts.id > ?")
		bindings = append(bindings, mustInt(params.SinceID))
	}

	if params.PostTypes != "" {
		sql = append(sql, "AND posts.type_base IN ?")
		bindings = append(bindings, posttype.Bases(params.PostTypes))
	}

	if count {
		return strings.Join(sql, " "), bindings, false
	}

	reversed := false
	direction := "ASC"
	if params.BeforeID != "" {
		reversed = true
		direction = "DESC"
	}
	sql = append(sql, fmt.Sprintf("ORDER BY posts.id %s", direction))

	perPage := DefaultPerPage
	if params.PerPage > 0 {
		perPage = params.PerPage
	}
	maxPerPage := MaxPerPage
	if params.MaxPerPage > 0 {
		maxPerPage = params.MaxPerPage
	}

	limit := perPage
	if params.Limit != "" {
		limit = mustInt(params.Limit)
	}
	if limit < 1 {
		// SQLite treats a negative LIMIT as "no limit".
		limit = perPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	sql = append(sql, "LIMIT ?")
	bindings = append(bindings, limit)

	return strings.Join(sql, " "), bindings, reversed
}

// mustInt converts a cursor value already validated by Validate.
func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

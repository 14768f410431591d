package models

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driftline/driftline/pkg/posttype"
)

// millisecondEpochThreshold is the cutoff for the published_at heuristic: a
// timestamp more than ~31 years in the future was almost certainly sent as a
// millisecond epoch by a malformed client.
const millisecondEpochThreshold = 1_000_000_000

// Post is a mutable top-level content unit with full version history. Every
// mutation appends an immutable PostVersion; the post row itself always
// reflects the current state. Soft deletes tombstone the row (DeletedAt set,
// content cleared) and append a version carrying the delete-marker type; rows
// are never physically removed and no hidden query filter exists — read paths
// decide explicitly whether tombstones are included.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// AccountID is the serving account that owns this row.
	AccountID uint `gorm:"not null;index:idx_posts_account" json:"accountId"`

	// PublicID is the externally exposed random id. Assigned once at create,
	// immutable afterwards.
	PublicID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_posts_public_id" json:"publicId"`

	// Entity is the public identity of the post's author.
	Entity string `gorm:"type:varchar(500);index:idx_posts_entity" json:"entity"`

	// TypeBase and TypeVersion store the post type URI split into its base
	// and schema version. Subscriptions, visibility checks, and reverse
	// lookups match on the base.
	TypeBase    string `gorm:"type:varchar(500);not null;index:idx_posts_type_base" json:"typeBase"`
	TypeVersion string `gorm:"type:varchar(50)" json:"typeVersion"`

	Licenses StringSlice `gorm:"type:jsonb" json:"licenses,omitempty"`

	// Content and Views are structured but opaque to the core.
	Content JSON `json:"content,omitempty"`
	Views   JSON `json:"views,omitempty"`

	// Original is true when this account authored the post, false when it
	// was mirrored from elsewhere.
	Original bool `json:"original"`
	Public   bool `json:"public"`

	AppName string `gorm:"type:varchar(500)" json:"appName,omitempty"`
	AppURL  string `gorm:"type:varchar(500)" json:"appUrl,omitempty"`

	// FollowingID references the follow relation a mirrored post arrived
	// through, when it arrived through one.
	FollowingID *uint `gorm:"index:idx_posts_following" json:"followingId,omitempty"`

	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`

	// DeletedAt is the tombstone marker. Deliberately a plain timestamp, not
	// gorm.DeletedAt, so no implicit filtering happens.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// TableName specifies the table name.
func (Post) TableName() string {
	return "posts"
}

// TypeURI renders the post's full type URI.
func (p *Post) TypeURI() string {
	return posttype.Type{Base: p.TypeBase, Version: p.TypeVersion}.URI()
}

// SetType splits a type URI into the base and version columns.
func (p *Post) SetType(uri string) {
	t := posttype.Parse(uri)
	p.TypeBase = t.Base
	p.TypeVersion = t.Version
}

// MentionData is one inbound mention entry on a create or update payload.
type MentionData struct {
	// Entity is the remote identity to mention. Entries without an entity
	// are skipped.
	Entity string `mapstructure:"entity" json:"entity"`

	// Post is the public id of the remote post the mention references.
	Post string `mapstructure:"post" json:"post,omitempty"`
}

// PostData carries the writable attributes of a new post.
type PostData struct {
	Entity      string                 `mapstructure:"entity"`
	Type        string                 `mapstructure:"type"`
	Licenses    []string               `mapstructure:"licenses"`
	Content     map[string]interface{} `mapstructure:"content"`
	Views       map[string]interface{} `mapstructure:"views"`
	Original    bool                   `mapstructure:"original"`
	Public      bool                   `mapstructure:"public"`
	AppName     string                 `mapstructure:"app_name"`
	AppURL      string                 `mapstructure:"app_url"`
	FollowingID *uint                  `mapstructure:"following_id"`
	PublishedAt *time.Time             `mapstructure:"-"`
	Mentions    []MentionData          `mapstructure:"mentions"`
}

// PostUpdate carries the column changes for an update. Nil pointers mean the
// column is untouched. Mentions follows the full-replace protocol: the live
// mention set after the update is exactly the entries supplied here, and a
// nil Mentions leaves the post with no live mentions (history is preserved
// either way), so callers must resend the full current mention set on every
// update that should keep mentions.
type PostUpdate struct {
	Entity      *string                 `mapstructure:"entity"`
	Type        *string                 `mapstructure:"type"`
	Licenses    *[]string               `mapstructure:"licenses"`
	Content     *map[string]interface{} `mapstructure:"content"`
	Views       *map[string]interface{} `mapstructure:"views"`
	Original    *bool                   `mapstructure:"original"`
	Public      *bool                   `mapstructure:"public"`
	AppName     *string                 `mapstructure:"app_name"`
	AppURL      *string                 `mapstructure:"app_url"`
	PublishedAt *time.Time              `mapstructure:"-"`
	Mentions    *[]MentionData          `mapstructure:"mentions"`
}

// MentionNotifier fans out mention events for a freshly created post. The
// implementation reports delivery failures itself; they never fail the
// enclosing mutation.
type MentionNotifier interface {
	NotifyMentions(ctx context.Context, db *gorm.DB, post *Post)
}

// CreateOptions controls side effects of CreatePost.
type CreateOptions struct {
	// Notifier receives the mention fan-out after a successful create. Nil
	// disables notification entirely.
	Notifier MentionNotifier

	// DontNotifyMentions suppresses the mention fan-out even when a notifier
	// is configured.
	DontNotifyMentions bool
}

// CreatePost creates a post for accountID, allocates version 1, and links the
// supplied mentions to the post and to version 1. Duplicate mention entries,
// compared by full equality, are ignored. If the post ends up with mentions,
// is original, and notification was not suppressed, the notifier is invoked
// once after the transaction commits.
//
// Version allocation and mention linking happen in a single transaction:
// readers never observe a partial state.
func CreatePost(ctx context.Context, db *gorm.DB, accountID uint, data *PostData, opts CreateOptions) (*Post, error) {
	if err := validation.ValidateStruct(data,
		validation.Field(&data.Type, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now()
	publishedAt := data.PublishedAt
	if publishedAt == nil {
		publishedAt = &now
	} else if publishedAt.Unix()-now.Unix() > millisecondEpochThreshold {
		// Timestamp arrived in milliseconds instead of seconds.
		corrected := time.Unix(publishedAt.Unix()/1000, 0)
		publishedAt = &corrected
	}
	receivedAt := now

	post := &Post{
		AccountID:   accountID,
		PublicID:    uuid.New().String(),
		Entity:      data.Entity,
		Licenses:    data.Licenses,
		Original:    data.Original,
		Public:      data.Public,
		AppName:     data.AppName,
		AppURL:      data.AppURL,
		FollowingID: data.FollowingID,
		PublishedAt: publishedAt,
		ReceivedAt:  &receivedAt,
	}
	post.SetType(data.Type)

	var err error
	if post.Content, err = MapToJSON(data.Content); err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrInvalidInput, err)
	}
	if post.Views, err = MapToJSON(data.Views); err != nil {
		return nil, fmt.Errorf("%w: views: %v", ErrInvalidInput, err)
	}

	var mentionCount int
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return fmt.Errorf("error creating post: %w", err)
		}

		version, err := createPostVersion(tx, post)
		if err != nil {
			return err
		}

		for _, md := range dedupeMentions(data.Mentions) {
			if md.Entity == "" {
				continue
			}
			m := &Mention{
				PostID:          &post.ID,
				Entity:          md.Entity,
				MentionedPostID: md.Post,
				OriginalPost:    post.Original,
			}
			if err := m.create(tx, version.ID); err != nil {
				return err
			}
			mentionCount++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.Notifier != nil && !opts.DontNotifyMentions && post.Original && mentionCount > 0 {
		opts.Notifier.NotifyMentions(ctx, db, post)
	}

	return post, nil
}

// Update applies the column changes, appends a new version, and re-links
// mentions:
//
//  1. every mention currently live-linked to the post is additionally
//     historically linked to the new version,
//  2. those mentions are detached from live status,
//  3. every mention entry supplied in the update is created as a new row,
//     live-linked to the post and historically linked to the new version.
//
// The whole protocol runs in one transaction under a per-post row lock, so
// concurrent updates to the same post serialize and version numbers never
// collide.
func (p *Post) Update(ctx context.Context, db *gorm.DB, data *PostUpdate) error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, p); err != nil {
			return err
		}

		if err := p.applyUpdate(data); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("error updating post: %w", err)
		}

		version, err := createPostVersion(tx, p)
		if err != nil {
			return err
		}

		if err := inheritLiveMentions(tx, p.ID, version.ID); err != nil {
			return err
		}
		if err := detachLiveMentions(tx, p.ID); err != nil {
			return err
		}

		if data.Mentions != nil {
			for _, md := range *data.Mentions {
				if md.Entity == "" {
					continue
				}
				m := &Mention{
					PostID:          &p.ID,
					Entity:          md.Entity,
					MentionedPostID: md.Post,
					OriginalPost:    p.Original,
				}
				if err := m.create(tx, version.ID); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// Delete tombstones the post: the row keeps its ids and type but loses its
// content, and a new version carrying the delete-marker type is appended.
// Live mentions are inherited by the tombstone version and then detached,
// like any other update.
func (p *Post) Delete(ctx context.Context, db *gorm.DB) error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, p); err != nil {
			return err
		}

		now := time.Now()
		p.DeletedAt = &now
		p.Content = nil
		p.Views = nil
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("error tombstoning post: %w", err)
		}

		tombstone := *p
		tombstone.SetType(posttype.DeletedPost)
		version, err := createPostVersion(tx, &tombstone)
		if err != nil {
			return err
		}

		if err := inheritLiveMentions(tx, p.ID, version.ID); err != nil {
			return err
		}
		return detachLiveMentions(tx, p.ID)
	})
}

// Mentions returns the post's live mention set.
func (p *Post) Mentions(db *gorm.DB) ([]Mention, error) {
	return liveMentions(db, p.ID)
}

// LatestVersion returns the post's highest-numbered version.
func (p *Post) LatestVersion(db *gorm.DB) (*PostVersion, error) {
	v, err := latestPostVersion(db, p.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting latest version: %w", err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: post %d has no versions", ErrIntegrityViolation, p.ID)
	}
	return v, nil
}

// GetPostByPublicID retrieves a post by its externally exposed id. Tombstoned
// posts are returned too; callers decide whether to surface them.
func GetPostByPublicID(db *gorm.DB, publicID string) (*Post, error) {
	if err := validation.Validate(publicID, validation.Required); err != nil {
		return nil, fmt.Errorf("%w: public id: %v", ErrInvalidInput, err)
	}

	var post Post
	if err := db.Where("public_id = ?", publicID).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// PropagatePostEntity bulk-rewrites the entity stored on the account's
// original posts, and on mentions whose post belongs to the account and
// currently shows oldEntity, to newEntity. Used when an account's public
// identity changes.
func PropagatePostEntity(db *gorm.DB, accountID uint, newEntity, oldEntity string) error {
	if err := validation.Validate(newEntity, validation.Required); err != nil {
		return fmt.Errorf("%w: entity: %v", ErrInvalidInput, err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&Post{}).
			Where("account_id = ? AND original = ?", accountID, true).
			Update("entity", newEntity).
			Error; err != nil {
			return fmt.Errorf("error propagating entity to posts: %w", err)
		}

		if oldEntity == "" {
			return nil
		}

		if err := tx.Exec(
			"UPDATE mentions SET entity = ? WHERE entity = ? AND id IN ("+
				"SELECT m.id FROM mentions m INNER JOIN posts p ON p.id = m.post_id "+
				"WHERE p.account_id = ?)",
			newEntity, oldEntity, accountID,
		).Error; err != nil {
			return fmt.Errorf("error propagating entity to mentions: %w", err)
		}
		return nil
	})
}

// applyUpdate copies the supplied column changes onto the post.
func (p *Post) applyUpdate(data *PostUpdate) error {
	if data.Entity != nil {
		p.Entity = *data.Entity
	}
	if data.Type != nil {
		if *data.Type == "" {
			return fmt.Errorf("%w: type cannot be cleared", ErrInvalidInput)
		}
		p.SetType(*data.Type)
	}
	if data.Licenses != nil {
		p.Licenses = *data.Licenses
	}
	if data.Content != nil {
		content, err := MapToJSON(*data.Content)
		if err != nil {
			return fmt.Errorf("%w: content: %v", ErrInvalidInput, err)
		}
		p.Content = content
	}
	if data.Views != nil {
		views, err := MapToJSON(*data.Views)
		if err != nil {
			return fmt.Errorf("%w: views: %v", ErrInvalidInput, err)
		}
		p.Views = views
	}
	if data.Original != nil {
		p.Original = *data.Original
	}
	if data.Public != nil {
		p.Public = *data.Public
	}
	if data.AppName != nil {
		p.AppName = *data.AppName
	}
	if data.AppURL != nil {
		p.AppURL = *data.AppURL
	}
	if data.PublishedAt != nil {
		p.PublishedAt = data.PublishedAt
	}
	return nil
}

// createPostVersion snapshots the post into a new version row numbered
// previous max + 1 (1 for a fresh post). A unique index on (post_id, version)
// backs the no-collision invariant; a violation means the transactional
// boundary was missed and surfaces as ErrIntegrityViolation.
func createPostVersion(tx *gorm.DB, post *Post) (*PostVersion, error) {
	latest, err := latestPostVersion(tx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting latest version: %w", err)
	}

	var number uint = 1
	if latest != nil {
		number = latest.Version + 1
	}

	version := &PostVersion{
		PostID:      post.ID,
		Version:     number,
		AccountID:   post.AccountID,
		PublicID:    post.PublicID,
		Entity:      post.Entity,
		TypeBase:    post.TypeBase,
		TypeVersion: post.TypeVersion,
		Licenses:    post.Licenses,
		Content:     post.Content,
		Views:       post.Views,
		Original:    post.Original,
		Public:      post.Public,
		AppName:     post.AppName,
		AppURL:      post.AppURL,
		FollowingID: post.FollowingID,
		PublishedAt: post.PublishedAt,
		ReceivedAt:  post.ReceivedAt,
	}
	if err := tx.Omit(clause.Associations).Create(version).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: version %d already exists for post %d",
				ErrIntegrityViolation, number, post.ID)
		}
		return nil, fmt.Errorf("error creating post version: %w", err)
	}
	return version, nil
}

// lockPost re-reads the post row under an exclusive row lock so at most one
// mutation per post runs at a time. SQLite serializes writers already and
// rejects FOR UPDATE, so the clause is applied on PostgreSQL only.
func lockPost(tx *gorm.DB, p *Post) error {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(p, p.ID).Error; err != nil {
		return fmt.Errorf("error locking post: %w", err)
	}
	return nil
}

// dedupeMentions drops duplicate mention entries, compared by full equality,
// preserving first-seen order.
func dedupeMentions(mentions []MentionData) []MentionData {
	seen := make(map[MentionData]bool, len(mentions))
	var out []MentionData
	for _, m := range mentions {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

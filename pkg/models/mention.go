package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Mention is a directed edge from a post to a remote entity, optionally
// naming the public id of a remote post it references. A mention carries two
// kinds of association:
//
//   - a live link (nullable PostID) meaningful only for the post's current
//     version; it is cleared when a newer version supersedes the mention set,
//   - historical links through the post_versions_mentions join table, one per
//     version the mention was ever attached to. Historical links are never
//     removed.
//
// A mention row is linked to at least one version at all times.
type Mention struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// PostID is the live link. Nil once the mention is superseded.
	PostID *uint `gorm:"index:idx_mentions_post" json:"postId,omitempty"`

	// Entity is the remote identity being mentioned.
	Entity string `gorm:"type:varchar(500);not null;index:idx_mentions_entity" json:"entity"`

	// MentionedPostID is the public id of the remote post referenced by the
	// mention, when it references one.
	MentionedPostID string `gorm:"type:varchar(64);index:idx_mentions_mentioned_post" json:"mentionedPostId,omitempty"`

	// OriginalPost records whether the owning post was original at the time
	// the mention was created. Reverse lookups filter on it.
	OriginalPost bool `json:"originalPost"`
}

// TableName specifies the table name.
func (Mention) TableName() string {
	return "mentions"
}

// create inserts the mention row and links it to the given version. Both the
// live link (PostID, when set) and the historical join row are written, so
// the row satisfies the linked-to-at-least-one-version invariant from birth.
func (m *Mention) create(tx *gorm.DB, versionID uint) error {
	if m.Entity == "" {
		return fmt.Errorf("%w: mention entity is required", ErrInvalidInput)
	}

	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("error creating mention: %w", err)
	}

	if err := tx.Exec(
		"INSERT INTO post_versions_mentions (post_version_id, mention_id) VALUES (?, ?)",
		versionID, m.ID,
	).Error; err != nil {
		return fmt.Errorf("error linking mention to version: %w", err)
	}

	return nil
}

// liveMentions returns the mentions currently live-linked to a post, in
// insertion order.
func liveMentions(db *gorm.DB, postID uint) ([]Mention, error) {
	var mentions []Mention
	err := db.
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&mentions).
		Error
	if err != nil {
		return nil, fmt.Errorf("error getting live mentions: %w", err)
	}
	return mentions, nil
}

// inheritLiveMentions historically links every mention currently live-linked
// to the post to the given version. Used by the update protocol so a new
// version inherits the prior mention set before the live links are cleared.
func inheritLiveMentions(tx *gorm.DB, postID uint, versionID uint) error {
	err := tx.Exec(
		"INSERT INTO post_versions_mentions (post_version_id, mention_id) "+
			"SELECT ?, mentions.id FROM mentions WHERE mentions.post_id = ?",
		versionID, postID,
	).Error
	if err != nil {
		return fmt.Errorf("error inheriting live mentions: %w", err)
	}
	return nil
}

// detachLiveMentions clears the live link of every mention attached to the
// post. Historical links are untouched.
func detachLiveMentions(tx *gorm.DB, postID uint) error {
	err := tx.
		Model(&Mention{}).
		Where("post_id = ?", postID).
		Update("post_id", nil).
		Error
	if err != nil {
		return fmt.Errorf("error detaching live mentions: %w", err)
	}
	return nil
}

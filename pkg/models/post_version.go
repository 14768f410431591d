package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PostVersion is an immutable snapshot of a post at one point in its mutation
// history. Version numbers are scoped per post, start at 1, and increment by
// 1 per mutation; they are never reused or renumbered. Rows are created once
// and never updated or deleted — a soft delete is itself a new version
// carrying the delete-marker type.
type PostVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	PostID  uint `gorm:"not null;index:idx_post_versions_post;uniqueIndex:idx_post_versions_post_version" json:"postId"`
	Version uint `gorm:"not null;uniqueIndex:idx_post_versions_post_version" json:"version"`

	// Snapshot of the post attributes at mutation time.
	AccountID   uint        `gorm:"not null" json:"accountId"`
	PublicID    string      `gorm:"type:varchar(64);not null" json:"publicId"`
	Entity      string      `gorm:"type:varchar(500)" json:"entity"`
	TypeBase    string      `gorm:"type:varchar(500);not null" json:"typeBase"`
	TypeVersion string      `gorm:"type:varchar(50)" json:"typeVersion"`
	Licenses    StringSlice `gorm:"type:jsonb" json:"licenses,omitempty"`
	Content     JSON        `json:"content,omitempty"`
	Views       JSON        `json:"views,omitempty"`
	Original    bool        `json:"original"`
	Public      bool        `json:"public"`
	AppName     string      `gorm:"type:varchar(500)" json:"appName,omitempty"`
	AppURL      string      `gorm:"type:varchar(500)" json:"appUrl,omitempty"`
	FollowingID *uint       `json:"followingId,omitempty"`
	PublishedAt *time.Time  `json:"publishedAt,omitempty"`
	ReceivedAt  *time.Time  `json:"receivedAt,omitempty"`

	// Mentions historically linked to this version through the
	// post_versions_mentions join table.
	Mentions []Mention `gorm:"many2many:post_versions_mentions" json:"-"`
}

// TableName specifies the table name.
func (PostVersion) TableName() string {
	return "post_versions"
}

// latestPostVersion returns the highest-numbered version row for a post, or
// nil when the post has no versions yet.
func latestPostVersion(db *gorm.DB, postID uint) (*PostVersion, error) {
	var v PostVersion
	err := db.
		Where("post_id = ?", postID).
		Order("version DESC").
		First(&v).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// VersionMentions returns the mentions historically linked to a specific
// version of a post.
func VersionMentions(db *gorm.DB, postID uint, version uint) ([]Mention, error) {
	var v PostVersion
	if err := db.
		Where("post_id = ? AND version = ?", postID, version).
		First(&v).
		Error; err != nil {
		return nil, fmt.Errorf("error getting post version: %w", err)
	}

	var mentions []Mention
	if err := db.
		Joins("INNER JOIN post_versions_mentions pvm ON pvm.mention_id = mentions.id").
		Where("pvm.post_version_id = ?", v.ID).
		Order("mentions.id ASC").
		Find(&mentions).
		Error; err != nil {
		return nil, fmt.Errorf("error getting version mentions: %w", err)
	}
	return mentions, nil
}

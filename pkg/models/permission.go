package models

import "time"

// Permission grants a post's original-visibility rights to a specific
// follower or following relation, or to a named group. Permissions are only
// consulted when the post is not globally public.
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	PostID uint `gorm:"not null;index:idx_permissions_post" json:"postId"`

	// Exactly one of the following is expected to be set.
	FollowerAccessID *uint  `gorm:"index:idx_permissions_follower_access" json:"followerAccessId,omitempty"`
	FollowingID      *uint  `gorm:"index:idx_permissions_following" json:"followingId,omitempty"`
	GroupPublicID    string `gorm:"type:varchar(64);index:idx_permissions_group" json:"groupPublicId,omitempty"`
}

// TableName specifies the table name.
func (Permission) TableName() string {
	return "permissions"
}

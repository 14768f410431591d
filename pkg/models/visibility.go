package models

import (
	"fmt"

	"gorm.io/gorm"
)

// ScopeReadPosts is the app authorization scope granting read access to all
// posts.
const ScopeReadPosts = "read_posts"

// Viewer is the context a visibility decision is made for. It is a sealed
// tagged union: AppAuthorization, FollowerViewer, and FollowingViewer are the
// only kinds. A nil Viewer, or any future kind the policy does not know,
// is denied.
type Viewer interface {
	viewerKind() string
}

// AppAuthorization is a viewer authenticated as an authorized app.
type AppAuthorization struct {
	// Scopes are the authorization scopes granted to the app.
	Scopes []string

	// PostTypes are the type bases the app subscribed to, if any.
	PostTypes []string
}

func (AppAuthorization) viewerKind() string { return "app" }

// FollowerViewer is a remote entity following this account.
type FollowerViewer struct {
	// ID is the follower's access id referenced by permission rows.
	ID uint

	// Groups are the public ids of the groups the follower belongs to.
	Groups []string
}

func (FollowerViewer) viewerKind() string { return "follower" }

// FollowingViewer is a remote entity this account follows.
type FollowingViewer struct {
	// ID is the following relation id referenced by permission rows.
	ID uint

	// Groups are the public ids of the groups the relation belongs to.
	Groups []string
}

func (FollowingViewer) viewerKind() string { return "following" }

// CanNotify decides whether the viewer may see, or be notified of, the post.
// The rule, in order:
//
//  1. a public original post is visible to everyone, whatever the viewer,
//  2. an app sees the post iff it holds the read_posts scope or subscribed
//     to the post's type base,
//  3. a follower or following relation sees the post iff the post is
//     original and a permission row matches the relation's id or any of its
//     group memberships,
//  4. anything else is denied.
//
// The function is total and read-only; both notification suppression and
// response shaping reuse it. A false result is a normal negative answer, not
// an error.
func (p *Post) CanNotify(db *gorm.DB, viewer Viewer) (bool, error) {
	if p.Public && p.Original {
		return true, nil
	}

	switch v := viewer.(type) {
	case AppAuthorization:
		for _, scope := range v.Scopes {
			if scope == ScopeReadPosts {
				return true, nil
			}
		}
		for _, subscribed := range v.PostTypes {
			if subscribed == p.TypeBase {
				return true, nil
			}
		}
		return false, nil

	case FollowerViewer:
		if !p.Original {
			return false, nil
		}
		return p.hasPermission(db, "follower_access_id", v.ID, v.Groups)

	case FollowingViewer:
		if !p.Original {
			return false, nil
		}
		return p.hasPermission(db, "following_id", v.ID, v.Groups)

	default:
		return false, nil
	}
}

// hasPermission reports whether a permission row for the post matches the
// relation id in the given column, or any of the group public ids.
func (p *Post) hasPermission(db *gorm.DB, idColumn string, id uint, groups []string) (bool, error) {
	q := db.Model(&Permission{}).Where("post_id = ?", p.ID)
	if len(groups) > 0 {
		q = q.Where(
			fmt.Sprintf("%s = ? OR group_public_id IN ?", idColumn),
			id, groups,
		)
	} else {
		q = q.Where(fmt.Sprintf("%s = ?", idColumn), id)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("error querying permissions: %w", err)
	}
	return count > 0, nil
}

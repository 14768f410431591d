// Package notify fans out mention events to remote entities. Delivery is
// best effort: per-entity failures are logged and never abort the remaining
// entities or the mutation that triggered the fan-out. Retry policy belongs
// to the Notifier implementation.
package notify

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/driftline/driftline/pkg/models"
)

// Notification is one delivery to a remote entity: the mentioned entity and
// the public id of the mentioning post.
type Notification struct {
	Entity string `json:"entity"`
	PostID string `json:"post"`
}

// Notifier delivers a notification to a remote service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Follower is a standing follow relationship from a remote entity.
type Follower struct {
	ID     uint
	Entity string
}

// FollowStore provides read-only access to follow and notification
// subscription state. Lookups must see a transactionally consistent snapshot.
type FollowStore interface {
	// FollowerByEntity returns the follower of accountID with the given
	// entity, or nil when no such follow exists.
	FollowerByEntity(ctx context.Context, accountID uint, entity string) (*Follower, error)

	// HasSubscription reports whether the follower holds a notification
	// subscription for the given type base.
	HasSubscription(ctx context.Context, accountID uint, followerID uint, typeBase string) (bool, error)
}

// Dispatcher fans out mention events, suppressing deliveries that would
// duplicate what an entity already receives through a follow channel.
type Dispatcher struct {
	log      hclog.Logger
	notifier Notifier
	follows  FollowStore
}

// NewDispatcher returns a dispatcher delivering through notifier and reading
// follow state from follows.
func NewDispatcher(log hclog.Logger, notifier Notifier, follows FollowStore) *Dispatcher {
	return &Dispatcher{
		log:      log.Named("notify"),
		notifier: notifier,
		follows:  follows,
	}
}

// NotifyMentions delivers one notification per distinct entity in the post's
// live mention set. Delivery is suppressed for an entity that both follows
// the owning account and subscribed to the post's type base: that entity
// already streams the post through the follow channel, and an explicit
// mention push would duplicate it.
//
// Implements models.MentionNotifier.
func (d *Dispatcher) NotifyMentions(ctx context.Context, db *gorm.DB, post *models.Post) {
	mentions, err := post.Mentions(db)
	if err != nil {
		d.log.Error("error reading live mentions for notification",
			"post_id", post.PublicID,
			"error", err,
		)
		return
	}

	var result *multierror.Error
	seen := make(map[string]bool, len(mentions))
	for _, mention := range mentions {
		if seen[mention.Entity] {
			continue
		}
		seen[mention.Entity] = true

		suppressed, err := d.suppressed(ctx, post, mention.Entity)
		if err != nil {
			// Follow state is unreadable; deliver anyway rather than drop
			// the mention on the floor.
			d.log.Warn("error checking notification suppression",
				"entity", mention.Entity,
				"post_id", post.PublicID,
				"error", err,
			)
		}
		if suppressed {
			d.log.Debug("mention notification suppressed by follow subscription",
				"entity", mention.Entity,
				"post_id", post.PublicID,
			)
			continue
		}

		if err := d.notifier.Notify(ctx, Notification{
			Entity: mention.Entity,
			PostID: post.PublicID,
		}); err != nil {
			d.log.Error("error delivering mention notification",
				"entity", mention.Entity,
				"post_id", post.PublicID,
				"error", err,
			)
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		d.log.Warn("mention fan-out finished with delivery failures",
			"post_id", post.PublicID,
			"failures", result.Len(),
		)
	}
}

// suppressed reports whether the entity already receives this post through a
// standing follow plus a subscription scoped to the post's type base.
func (d *Dispatcher) suppressed(ctx context.Context, post *models.Post, entity string) (bool, error) {
	follower, err := d.follows.FollowerByEntity(ctx, post.AccountID, entity)
	if err != nil {
		return false, err
	}
	if follower == nil {
		return false, nil
	}
	return d.follows.HasSubscription(ctx, post.AccountID, follower.ID, post.TypeBase)
}

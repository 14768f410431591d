package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/driftline/driftline/pkg/models"
)

type fakeNotifier struct {
	delivered []Notification
	failFor   map[string]error
}

func (f *fakeNotifier) Notify(_ context.Context, n Notification) error {
	if err := f.failFor[n.Entity]; err != nil {
		return err
	}
	f.delivered = append(f.delivered, n)
	return nil
}

type fakeFollowStore struct {
	followers     map[string]*Follower
	subscriptions map[uint][]string
	err           error
}

func (f *fakeFollowStore) FollowerByEntity(_ context.Context, _ uint, entity string) (*Follower, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.followers[entity], nil
}

func (f *fakeFollowStore) HasSubscription(_ context.Context, _ uint, followerID uint, typeBase string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, base := range f.subscriptions[followerID] {
		if base == typeBase {
			return true, nil
		}
	}
	return false, nil
}

func setupNotifyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(models.ModelsToAutoMigrate()...)
	require.NoError(t, err)

	return db
}

func createMentioningPost(t *testing.T, db *gorm.DB, mentions []models.MentionData) *models.Post {
	t.Helper()

	post, err := models.CreatePost(context.Background(), db, 1, &models.PostData{
		Type:     "https://driftline.io/types/post/status/v0.1.0",
		Entity:   "https://alice.example",
		Original: true,
		Mentions: mentions,
	}, models.CreateOptions{DontNotifyMentions: true})
	require.NoError(t, err)
	return post
}

func TestDispatcherNotifyMentions(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers once per distinct entity", func(t *testing.T) {
		db := setupNotifyTestDB(t)
		notifier := &fakeNotifier{}
		d := NewDispatcher(hclog.NewNullLogger(), notifier, &fakeFollowStore{})

		post := createMentioningPost(t, db, []models.MentionData{
			{Entity: "https://bob.example"},
			{Entity: "https://bob.example", Post: "some-post"},
			{Entity: "https://carol.example"},
		})

		d.NotifyMentions(ctx, db, post)

		require.Len(t, notifier.delivered, 2)
		assert.Equal(t, "https://bob.example", notifier.delivered[0].Entity)
		assert.Equal(t, post.PublicID, notifier.delivered[0].PostID)
		assert.Equal(t, "https://carol.example", notifier.delivered[1].Entity)
	})

	t.Run("suppresses entities subscribed through a follow", func(t *testing.T) {
		db := setupNotifyTestDB(t)
		notifier := &fakeNotifier{}
		follows := &fakeFollowStore{
			followers: map[string]*Follower{
				"https://bob.example": {ID: 7, Entity: "https://bob.example"},
			},
			subscriptions: map[uint][]string{
				7: {"https://driftline.io/types/post/status"},
			},
		}
		d := NewDispatcher(hclog.NewNullLogger(), notifier, follows)

		post := createMentioningPost(t, db, []models.MentionData{
			{Entity: "https://bob.example"},
			{Entity: "https://carol.example"},
		})

		d.NotifyMentions(ctx, db, post)

		require.Len(t, notifier.delivered, 1)
		assert.Equal(t, "https://carol.example", notifier.delivered[0].Entity)
	})

	t.Run("follower without a matching subscription still gets notified", func(t *testing.T) {
		db := setupNotifyTestDB(t)
		notifier := &fakeNotifier{}
		follows := &fakeFollowStore{
			followers: map[string]*Follower{
				"https://bob.example": {ID: 7, Entity: "https://bob.example"},
			},
			subscriptions: map[uint][]string{
				7: {"https://driftline.io/types/post/essay"},
			},
		}
		d := NewDispatcher(hclog.NewNullLogger(), notifier, follows)

		post := createMentioningPost(t, db, []models.MentionData{
			{Entity: "https://bob.example"},
		})

		d.NotifyMentions(ctx, db, post)

		assert.Len(t, notifier.delivered, 1)
	})

	t.Run("delivers when follow state is unreadable", func(t *testing.T) {
		db := setupNotifyTestDB(t)
		notifier := &fakeNotifier{}
		follows := &fakeFollowStore{err: errors.New("follow store down")}
		d := NewDispatcher(hclog.NewNullLogger(), notifier, follows)

		post := createMentioningPost(t, db, []models.MentionData{
			{Entity: "https://bob.example"},
		})

		d.NotifyMentions(ctx, db, post)

		assert.Len(t, notifier.delivered, 1)
	})

	t.Run("a failed delivery does not abort the rest", func(t *testing.T) {
		db := setupNotifyTestDB(t)
		notifier := &fakeNotifier{
			failFor: map[string]error{
				"https://bob.example": errors.New("connection refused"),
			},
		}
		d := NewDispatcher(hclog.NewNullLogger(), notifier, &fakeFollowStore{})

		post := createMentioningPost(t, db, []models.MentionData{
			{Entity: "https://bob.example"},
			{Entity: "https://carol.example"},
		})

		d.NotifyMentions(ctx, db, post)

		require.Len(t, notifier.delivered, 1)
		assert.Equal(t, "https://carol.example", notifier.delivered[0].Entity)
	})
}

package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/pkg/posttype"
)

func TestCreatePost(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a type", func(t *testing.T) {
		db := setupTestDB(t)

		_, err := CreatePost(ctx, db, 1, &PostData{}, CreateOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("assigns an immutable public id and version 1", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, nil)
		assert.NotEmpty(t, post.PublicID)

		version, err := post.LatestVersion(db)
		require.NoError(t, err)
		assert.Equal(t, uint(1), version.Version)
		assert.Equal(t, post.PublicID, version.PublicID)
	})

	t.Run("defaults published and received timestamps", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, nil)
		require.NotNil(t, post.PublishedAt)
		require.NotNil(t, post.ReceivedAt)
		assert.WithinDuration(t, time.Now(), *post.PublishedAt, 5*time.Second)
	})

	t.Run("corrects millisecond epoch published_at", func(t *testing.T) {
		db := setupTestDB(t)

		// A millisecond epoch misread as seconds lands tens of thousands of
		// years in the future.
		ms := time.Now().UnixMilli()
		post := createTestPost(t, db, &PostData{
			PublishedAt: timePtr(time.Unix(ms, 0)),
		})

		require.NotNil(t, post.PublishedAt)
		assert.WithinDuration(t, time.Now(), *post.PublishedAt, time.Second)
	})

	t.Run("keeps a plausible published_at untouched", func(t *testing.T) {
		db := setupTestDB(t)

		published := time.Now().Add(-time.Hour).Truncate(time.Second)
		post := createTestPost(t, db, &PostData{
			PublishedAt: timePtr(published),
		})

		require.NotNil(t, post.PublishedAt)
		assert.Equal(t, published.Unix(), post.PublishedAt.Unix())
	})

	t.Run("stores and reloads the license list", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Licenses: []string{"http://creativecommons.org/licenses/by/3.0/"},
		})

		var got Post
		require.NoError(t, db.First(&got, post.ID).Error)
		assert.Equal(t,
			StringSlice{"http://creativecommons.org/licenses/by/3.0/"},
			got.Licenses)
	})

	t.Run("splits the type URI", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Type: "https://driftline.io/types/post/essay/v0.2.0",
		})
		assert.Equal(t, "https://driftline.io/types/post/essay", post.TypeBase)
		assert.Equal(t, "0.2.0", post.TypeVersion)
		assert.Equal(t, "https://driftline.io/types/post/essay/v0.2.0", post.TypeURI())
	})

	t.Run("links mentions to the post and to version 1", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Original: true,
			Mentions: []MentionData{
				{Entity: "https://bob.example"},
				{Entity: "https://carol.example", Post: "remote-post-id"},
			},
		})

		live, err := post.Mentions(db)
		require.NoError(t, err)
		require.Len(t, live, 2)
		assert.Equal(t, "https://bob.example", live[0].Entity)
		assert.Equal(t, "remote-post-id", live[1].MentionedPostID)
		assert.True(t, live[0].OriginalPost)

		historical, err := VersionMentions(db, post.ID, 1)
		require.NoError(t, err)
		assert.Len(t, historical, 2)
	})

	t.Run("ignores duplicate mention entries", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Mentions: []MentionData{
				{Entity: "https://bob.example"},
				{Entity: "https://bob.example"},
				{Entity: "https://bob.example", Post: "other"},
			},
		})

		live, err := post.Mentions(db)
		require.NoError(t, err)
		// Entries differing in the referenced post are distinct.
		assert.Len(t, live, 2)
	})

	t.Run("skips mention entries without an entity", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Mentions: []MentionData{
				{Entity: ""},
				{Entity: "https://bob.example"},
			},
		})

		live, err := post.Mentions(db)
		require.NoError(t, err)
		assert.Len(t, live, 1)
	})
}

func TestPostUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("versions are contiguous across updates", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, nil)
		for i := 0; i < 5; i++ {
			require.NoError(t, post.Update(ctx, db, &PostUpdate{
				Public: boolPtr(i%2 == 0),
			}))
		}

		var versions []PostVersion
		require.NoError(t, db.
			Where("post_id = ?", post.ID).
			Order("version ASC").
			Find(&versions).
			Error)
		require.Len(t, versions, 6)
		for i, v := range versions {
			assert.Equal(t, uint(i+1), v.Version)
		}
	})

	t.Run("applies column changes", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, nil)
		require.NoError(t, post.Update(ctx, db, &PostUpdate{
			Public:  boolPtr(true),
			AppName: strPtr("driftline web"),
		}))

		var got Post
		require.NoError(t, db.First(&got, post.ID).Error)
		assert.True(t, got.Public)
		assert.Equal(t, "driftline web", got.AppName)
	})

	t.Run("snapshots the new state into the version", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, nil)
		require.NoError(t, post.Update(ctx, db, &PostUpdate{
			Content: mapPtr(map[string]interface{}{"text": "hello"}),
		}))

		version, err := post.LatestVersion(db)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version.Version)

		content, err := version.Content.Map()
		require.NoError(t, err)
		assert.Equal(t, "hello", content["text"])
	})
}

func TestPostDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("tombstones instead of removing", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Content: map[string]interface{}{"text": "soon gone"},
		})
		require.NoError(t, post.Delete(ctx, db))

		var got Post
		require.NoError(t, db.First(&got, post.ID).Error)
		assert.NotNil(t, got.DeletedAt)
		assert.Equal(t, post.PublicID, got.PublicID)

		content, err := got.Content.Map()
		require.NoError(t, err)
		assert.Nil(t, content)

		version, err := post.LatestVersion(db)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version.Version)
		assert.Equal(t, posttype.DeletedPost,
			posttype.Type{Base: version.TypeBase, Version: version.TypeVersion}.URI())
	})

	t.Run("detaches live mentions", func(t *testing.T) {
		db := setupTestDB(t)

		post := createTestPost(t, db, &PostData{
			Mentions: []MentionData{{Entity: "https://bob.example"}},
		})
		require.NoError(t, post.Delete(ctx, db))

		live, err := post.Mentions(db)
		require.NoError(t, err)
		assert.Empty(t, live)

		historical, err := VersionMentions(db, post.ID, 1)
		require.NoError(t, err)
		assert.Len(t, historical, 1)
	})
}

func TestPropagatePostEntity(t *testing.T) {
	t.Run("rewrites original posts and their mentions", func(t *testing.T) {
		db := setupTestDB(t)

		oldEntity := "https://old.example"
		original := createTestPost(t, db, &PostData{
			Entity:   oldEntity,
			Original: true,
			Mentions: []MentionData{{Entity: oldEntity}},
		})
		mirrored := createTestPost(t, db, &PostData{
			Entity:   "https://remote.example",
			Original: false,
		})

		require.NoError(t, PropagatePostEntity(db, 1, "https://new.example", oldEntity))

		var rewritten Post
		require.NoError(t, db.First(&rewritten, original.ID).Error)
		assert.Equal(t, "https://new.example", rewritten.Entity)

		var untouched Post
		require.NoError(t, db.First(&untouched, mirrored.ID).Error)
		assert.Equal(t, "https://remote.example", untouched.Entity)

		mentions, err := original.Mentions(db)
		require.NoError(t, err)
		require.Len(t, mentions, 1)
		assert.Equal(t, "https://new.example", mentions[0].Entity)
	})

	t.Run("requires a new entity", func(t *testing.T) {
		db := setupTestDB(t)

		err := PropagatePostEntity(db, 1, "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestGetPostByPublicID(t *testing.T) {
	db := setupTestDB(t)

	post := createTestPost(t, db, nil)

	got, err := GetPostByPublicID(db, post.PublicID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	_, err = GetPostByPublicID(db, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func boolPtr(b bool) *bool {
	return &b
}

func mapPtr(m map[string]interface{}) *map[string]interface{} {
	return &m
}

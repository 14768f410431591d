package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(ModelsToAutoMigrate()...)
	require.NoError(t, err)

	return db
}

// createTestPost creates a post with sensible defaults, overridable through
// the data argument.
func createTestPost(t *testing.T, db *gorm.DB, data *PostData) *Post {
	t.Helper()

	if data == nil {
		data = &PostData{}
	}
	if data.Type == "" {
		data.Type = "https://driftline.io/types/post/status/v0.1.0"
	}
	if data.Entity == "" {
		data.Entity = "https://alice.example"
	}

	post, err := CreatePost(context.Background(), db, 1, data, CreateOptions{})
	require.NoError(t, err)
	return post
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}

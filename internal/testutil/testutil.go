// Package testutil holds the database and fixture helpers shared by the package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/pkg/config"
)

// SmallGIF is a valid 2x1 GIF image.
var SmallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x02, 0x00,
	0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x0C,
	0x0A, 0x00, 0x3B,
}

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.OpenSQL(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file::memory:?_foreign_keys=on",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Clock hands out strictly increasing UTC times, one Step apart.
type Clock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

func NewClock() *Clock {
	return &Clock{next: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Step: time.Second}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.Step)
	return now
}

func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Name: username, Email: username + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateGroup(t *testing.T, db *gorm.DB, title, slug string) *models.Group {
	t.Helper()
	group := &models.Group{Title: title, Slug: slug, Description: "about " + title}
	require.NoError(t, db.Create(group).Error)
	return group
}

// CreatePost inserts a post directly; group may be nil.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, group *models.Group, text string, at time.Time) *models.Post {
	t.Helper()
	post := &models.Post{Text: text, AuthorID: author.ID, CreatedAt: at}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, db.Omit("Author", "Group").Create(post).Error)
	return post
}

func CreateComment(t *testing.T, db *gorm.DB, post *models.Post, author *models.User, text string, at time.Time) *models.Comment {
	t.Helper()
	comment := &models.Comment{PostID: post.ID, AuthorID: author.ID, Text: text, CreatedAt: at}
	require.NoError(t, db.Omit("Post", "Author").Create(comment).Error)
	return comment
}

func Follow(t *testing.T, db *gorm.DB, user, author *models.User) {
	t.Helper()
	require.NoError(t, db.Omit("User", "Author").Create(&models.Follow{UserID: user.ID, AuthorID: author.ID}).Error)
}

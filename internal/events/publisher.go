// Package events announces content changes to other services.
package events

import (
	"context"
	"time"
)

// Subjects published on the broker.
const (
	SubjectPostCreated    = "post.created"
	SubjectPostUpdated    = "post.updated"
	SubjectCommentCreated = "comment.created"
	SubjectFollowCreated  = "follow.created"
	SubjectFollowDeleted  = "follow.deleted"
)

type PostEvent struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	GroupID   *uint     `json:"group_id,omitempty"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentEvent struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	AuthorID  uint      `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FollowEvent struct {
	UserID   uint `json:"user_id"`
	AuthorID uint `json:"author_id"`
}

// Publisher delivers events. Callers log failures and carry on: the write
// they describe has already been committed.
type Publisher interface {
	Publish(ctx context.Context, subject string, event interface{}) error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }

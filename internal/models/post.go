package models

import "time"

// Post is a single entry in the blog. CommentCount is filled by the feed
// queries and never written.
type Post struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Text         string    `json:"text" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"index;not null"`
	AuthorID     uint      `json:"author_id" gorm:"index;not null"`
	Author       *User     `json:"author,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	GroupID      *uint     `json:"group_id" gorm:"index"`
	Group        *Group    `json:"group,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	Image        string    `json:"image,omitempty"`
	CommentCount int64     `json:"comment_count" gorm:"->;-:migration"`
}

// PostForm is the multipart body of the new-post and edit-post forms. The
// image travels as a separate file part.
type PostForm struct {
	Text  string `form:"text"`
	Group string `form:"group"`
}

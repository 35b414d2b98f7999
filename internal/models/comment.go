package models

import "time"

// Comment represents a comment on a post
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"index;not null"`
	Post      *Post     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	AuthorID  uint      `json:"author_id" gorm:"index;not null"`
	Author    *User     `json:"author,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Text      string    `json:"text" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index;not null"`
}

// CommentForm is the body of the add-comment form.
type CommentForm struct {
	Text string `form:"text" json:"text" validate:"required"`
}

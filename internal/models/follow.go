package models

import "time"

// Follow is a directed subscription edge: UserID follows AuthorID.
type Follow struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_follow_user_author;not null;check:chk_follow_not_self,user_id <> author_id"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	AuthorID  uint      `json:"author_id" gorm:"index;uniqueIndex:idx_follow_user_author;not null"`
	Author    *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
}

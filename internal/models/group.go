package models

// Group is a community posts can be filed under. Its slug is the public identity.
type Group struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Title       string `json:"title" gorm:"size:200;not null"`
	Slug        string `json:"slug" gorm:"size:200;uniqueIndex;not null"`
	Description string `json:"description"`
}

type CreateGroupRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"required,max=200,slug"`
	Description string `json:"description"`
}

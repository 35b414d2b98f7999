package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"size:150"`
	Email       string    `json:"-" gorm:"size:254;uniqueIndex;not null"`
	Password    string    `json:"-"`                             // Store hashed password, ignore for JSON serialization
	FirebaseUID *string   `json:"-" gorm:"size:128;uniqueIndex"` // Link to Firebase User UID
	CreatedAt   time.Time `json:"created_at"`
}

// UserCompact is the author block embedded in feed items and profile pages.
type UserCompact struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, Name: u.Name}
}

type CreateLocalUserRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=150,username"`
	Name     string `json:"name" form:"name" validate:"omitempty,max=150"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" form:"idToken" validate:"required"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a Launchpad account and its public profile.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password  string `gorm:"not null" json:"-"`
	FullName  string `gorm:"size:100" json:"full_name"`
	Bio       string `gorm:"type:text" json:"bio"`
	AvatarURL string `json:"avatar_url"`
	Website   string `json:"website"`
	IsAdmin   bool   `gorm:"not null;default:false" json:"is_admin"`
	IsBanned  bool   `gorm:"not null;default:false" json:"is_banned"`

	// Computed at query time.
	FollowersCount int64 `gorm:"->;-:migration" json:"followers_count"`
	FollowingCount int64 `gorm:"->;-:migration" json:"following_count"`
	IsFollowing    bool  `gorm:"->;-:migration" json:"is_following"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserSummary is the author/maker shape embedded in other resources.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Summary returns the public summary of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
}

// Public returns a copy of u without private fields.
func (u User) Public() User {
	u.Email = ""
	return u
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxCommentLength bounds comment content.
const MaxCommentLength = 5000

// Comment is a discussion entry on a product. Replies are one level deep.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Replies   []Comment `gorm:"-" json:"replies,omitempty"`

	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	Liked      bool  `gorm:"->;-:migration" json:"liked"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName keeps the table name the client subscribes to.
func (Comment) TableName() string {
	return "product_comments"
}

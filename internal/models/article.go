package models

import (
	"time"

	"gorm.io/gorm"
)

// WordsPerMinute is the reading speed used for read time estimates.
const WordsPerMinute = 200

// Article is a long-form post written from the admin console.
type Article struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Slug            string         `gorm:"uniqueIndex;size:220;not null" json:"slug"`
	Excerpt         string         `gorm:"size:500" json:"excerpt"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	CoverImageURL   string         `json:"cover_image_url"`
	AuthorID        uint           `gorm:"not null;index" json:"author_id"`
	Author          User           `gorm:"foreignKey:AuthorID" json:"author"`
	Published       bool           `gorm:"not null;default:false;index" json:"published"`
	PublishedAt     *time.Time     `json:"published_at"`
	ReadTimeMinutes int            `gorm:"not null;default:1" json:"read_time_minutes"`
	LikesCount      int64          `gorm:"->;-:migration" json:"likes_count"`
	Liked           bool           `gorm:"->;-:migration" json:"liked"`
	Bookmarked      bool           `gorm:"->;-:migration" json:"bookmarked"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// News is a short announcement shown on the home page.
type News struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Summary     string         `gorm:"size:500" json:"summary"`
	Content     string         `gorm:"type:text" json:"content"`
	SourceURL   string         `json:"source_url"`
	ImageURL    string         `json:"image_url"`
	Published   bool           `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName pins the plural table name.
func (News) TableName() string {
	return "news"
}

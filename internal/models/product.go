package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Product statuses.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

// Product limits.
const (
	MaxProductTags   = 10
	MaxProductImages = 8
	MaxTaglineLength = 120
	MaxDescription   = 10000
	MaxTagLength     = 32
)

// Product is a launched product listing.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Slug        string         `gorm:"uniqueIndex;size:120;not null" json:"slug"`
	Tagline     string         `gorm:"size:120;not null" json:"tagline"`
	Description string         `gorm:"type:text" json:"description"`
	WebsiteURL  string         `json:"website_url"`
	LogoURL     string         `json:"logo_url"`
	MakerID     uint           `gorm:"not null;index" json:"maker_id"`
	Maker       User           `gorm:"foreignKey:MakerID" json:"maker"`
	Status      string         `gorm:"size:16;not null;default:published;index" json:"status"`
	IsFeatured  bool           `gorm:"not null;default:false" json:"is_featured"`
	LaunchedAt  *time.Time     `json:"launched_at"`
	Tags        []ProductTag   `gorm:"foreignKey:ProductID" json:"tags"`
	Images      []ProductImage `gorm:"foreignKey:ProductID" json:"images"`

	// Computed at query time.
	LikesCount     int64   `gorm:"->;-:migration" json:"likes_count"`
	CommentsCount  int64   `gorm:"->;-:migration" json:"comments_count"`
	BookmarksCount int64   `gorm:"->;-:migration" json:"bookmarks_count"`
	Liked          bool    `gorm:"->;-:migration" json:"liked"`
	Bookmarked     bool    `gorm:"->;-:migration" json:"bookmarked"`
	TrendingScore  float64 `gorm:"->;-:migration" json:"trending_score,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsPublished reports whether the product is publicly visible.
func (p *Product) IsPublished() bool {
	return p.Status == ProductStatusPublished
}

// TrendingScore ranks products by engagement decayed with age:
// (likes + 2*comments) / (hours since creation + 2)^1.5.
func TrendingScore(likes, comments int64, createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return float64(likes+2*comments) / math.Pow(hours+2, 1.5)
}

// ProductTag is a lowercase label attached to a product.
type ProductTag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_product_tag" json:"product_id"`
	Name      string    `gorm:"size:32;not null;uniqueIndex:idx_product_tag;index" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductImage is one gallery entry of a product.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	URL       string    `gorm:"not null" json:"url"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	ImageHash string    `gorm:"size:128" json:"image_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

// Image processing states.
const (
	ImageStatusQueued     = "queued"
	ImageStatusProcessing = "processing"
	ImageStatusReady      = "ready"
	ImageStatusFailed     = "failed"
)

// Image is a stored upload in the media bucket, keyed by content hash.
type Image struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Hash                string         `gorm:"uniqueIndex;size:128;not null" json:"hash"`
	UserID              uint           `gorm:"not null;index" json:"user_id"`
	OriginalFilename    string         `json:"original_filename"`
	MimeType            string         `gorm:"size:32;not null" json:"mime_type"`
	SizeBytes           int64          `json:"size_bytes"`
	Width               int            `json:"width"`
	Height              int            `json:"height"`
	OriginalPath        string         `json:"-"`
	Status              string         `gorm:"size:16;not null;default:queued;index" json:"status"`
	CropMode            string         `gorm:"size:16" json:"crop_mode"`
	CropX               int            `json:"-"`
	CropY               int            `json:"-"`
	CropW               int            `json:"-"`
	CropH               int            `json:"-"`
	Error               string         `gorm:"type:text" json:"error,omitempty"`
	ProcessingAttempts  int            `gorm:"not null;default:0" json:"-"`
	ProcessingStartedAt *time.Time     `json:"-"`
	UploadedAt          time.Time      `json:"uploaded_at"`
	LastAccessedAt      *time.Time     `json:"-"`
	Variants            []ImageVariant `gorm:"foreignKey:ImageID" json:"variants,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ImageVariant is a resized rendition of an Image.
type ImageVariant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImageID   uint      `gorm:"not null;uniqueIndex:idx_image_variant" json:"image_id"`
	SizeName  string    `gorm:"size:16" json:"size_name"`
	SizePx    int       `gorm:"not null;uniqueIndex:idx_image_variant" json:"size_px"`
	Format    string    `gorm:"size:8;not null;uniqueIndex:idx_image_variant" json:"format"`
	Path      string    `gorm:"not null" json:"-"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

package repository

import (
	"context"
	"errors"
	"time"

	"launchpad/internal/models"
	"launchpad/internal/observability"

	"gorm.io/gorm"
)

// ErrNoQueuedImage is returned by ClaimNextQueued when the queue is empty.
var ErrNoQueuedImage = errors.New("no queued image")

// ImageRepository stores bucket records and their variants.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByHash(ctx context.Context, hash string) (*models.Image, error)
	Touch(ctx context.Context, id uint) error
	SaveVariant(ctx context.Context, v *models.ImageVariant) error
	ClaimNextQueued(ctx context.Context) (*models.Image, error)
	Finish(ctx context.Context, imageID uint, jobErr error) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for image metadata.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create inserts the record. A concurrent upload of the same bytes loses the race
// on the hash index and gets the winner's row back.
func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		if isUniqueConstraintError(err) {
			existing, getErr := r.GetByHash(ctx, image.Hash)
			if getErr != nil {
				return getErr
			}
			*image = *existing
			return nil
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetByHash loads an image with its variants ordered by size then format.
func (r *imageRepository) GetByHash(ctx context.Context, hash string) (*models.Image, error) {
	defer observability.TrackQuery(ctx, "get_by_hash", "images")()
	var image models.Image
	err := r.db.WithContext(ctx).
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("size_px ASC, format ASC") }).
		Where("hash = ?", hash).
		First(&image).Error
	if err != nil {
		return nil, wrapLookup(err, "Image", hash)
	}
	return &image, nil
}

// Touch records a read of the image.
func (r *imageRepository) Touch(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Update("last_accessed_at", time.Now().UTC()).Error
}

// SaveVariant inserts or refreshes one (size, format) rendition.
func (r *imageRepository) SaveVariant(ctx context.Context, v *models.ImageVariant) error {
	if v == nil {
		return errors.New("variant is nil")
	}
	return r.db.WithContext(ctx).Exec(`
INSERT INTO image_variants (image_id, size_name, size_px, format, path, width, height, bytes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (image_id, size_px, format)
DO UPDATE SET
  size_name = EXCLUDED.size_name,
  path = EXCLUDED.path,
  width = EXCLUDED.width,
  height = EXCLUDED.height,
  bytes = EXCLUDED.bytes
`, v.ImageID, v.SizeName, v.SizePx, v.Format, v.Path, v.Width, v.Height, v.Bytes, time.Now().UTC()).Error
}

// ClaimNextQueued moves the oldest queued image to processing and returns it.
// On PostgreSQL concurrent workers skip each other's rows.
func (r *imageRepository) ClaimNextQueued(ctx context.Context) (*models.Image, error) {
	now := time.Now().UTC()
	if r.db.Name() == "postgres" {
		var claimed models.Image
		err := r.db.WithContext(ctx).Raw(`
WITH picked AS (
	SELECT id FROM images
	WHERE status = ?
	ORDER BY id
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
UPDATE images i
SET status = ?,
    processing_started_at = ?,
    processing_attempts = i.processing_attempts + 1,
    error = ''
FROM picked
WHERE i.id = picked.id
RETURNING i.*
`, models.ImageStatusQueued, models.ImageStatusProcessing, now).Scan(&claimed).Error
		if err != nil {
			return nil, err
		}
		if claimed.ID == 0 {
			return nil, ErrNoQueuedImage
		}
		return &claimed, nil
	}

	var claimed models.Image
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", models.ImageStatusQueued).Order("id ASC").First(&claimed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoQueuedImage
			}
			return err
		}
		res := tx.Model(&models.Image{}).
			Where("id = ? AND status = ?", claimed.ID, models.ImageStatusQueued).
			Updates(map[string]any{
				"status":                models.ImageStatusProcessing,
				"processing_started_at": now,
				"processing_attempts":   gorm.Expr("processing_attempts + 1"),
				"error":                 "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoQueuedImage
		}
		return tx.First(&claimed, claimed.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// Finish marks a claimed image ready, or failed with jobErr's message.
func (r *imageRepository) Finish(ctx context.Context, imageID uint, jobErr error) error {
	fields := map[string]any{
		"status":                models.ImageStatusReady,
		"error":                 "",
		"processing_started_at": nil,
	}
	if jobErr != nil {
		msg := jobErr.Error()
		if len(msg) > 4000 {
			msg = msg[:4000]
		}
		fields["status"] = models.ImageStatusFailed
		fields["error"] = msg
	}
	return r.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", imageID).Updates(fields).Error
}

// RequeueStale returns images stuck in processing longer than olderThan to the queue.
func (r *imageRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	res := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?", models.ImageStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":                models.ImageStatusQueued,
			"processing_started_at": nil,
		})
	return res.RowsAffected, res.Error
}

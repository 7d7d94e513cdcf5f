package repository

import (
	"context"

	"launchpad/internal/models"

	"gorm.io/gorm"
)

// NewsRepository defines news persistence.
type NewsRepository interface {
	Create(ctx context.Context, item *models.News) error
	GetByID(ctx context.Context, id uint) (*models.News, error)
	List(ctx context.Context, includeUnpublished bool, limit, offset int) ([]models.News, error)
	Update(ctx context.Context, item *models.News) error
	Delete(ctx context.Context, id uint) error
}

type newsRepository struct {
	db *gorm.DB
}

// NewNewsRepository creates a new NewsRepository.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

func (r *newsRepository) Create(ctx context.Context, item *models.News) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *newsRepository) GetByID(ctx context.Context, id uint) (*models.News, error) {
	var item models.News
	if err := readDB(r.db).WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, wrapLookup(err, "News", id)
	}
	return &item, nil
}

func (r *newsRepository) List(ctx context.Context, includeUnpublished bool, limit, offset int) ([]models.News, error) {
	limit, offset = clampPage(limit, offset)
	db := readDB(r.db).WithContext(ctx)
	if !includeUnpublished {
		db = db.Where("published = ?", true)
	}
	var items []models.News
	if err := db.Order("published_at DESC").Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *newsRepository) Update(ctx context.Context, item *models.News) error {
	err := r.db.WithContext(ctx).Model(item).
		Select("title", "summary", "content", "source_url", "image_url", "published", "published_at", "updated_at").
		Updates(item).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *newsRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.News{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("News", id)
	}
	return nil
}

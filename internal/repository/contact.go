package repository

import (
	"context"

	"launchpad/internal/models"

	"gorm.io/gorm"
)

// ContactRepository stores contact form submissions.
type ContactRepository interface {
	Create(ctx context.Context, msg *models.ContactMessage) error
	UpdateStatus(ctx context.Context, id uint, status, errMsg string) error
	List(ctx context.Context, limit, offset int) ([]models.ContactMessage, error)
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) UpdateStatus(ctx context.Context, id uint, status, errMsg string) error {
	if len(errMsg) > 4000 {
		errMsg = errMsg[:4000]
	}
	err := r.db.WithContext(ctx).Model(&models.ContactMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error": errMsg}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contactRepository) List(ctx context.Context, limit, offset int) ([]models.ContactMessage, error) {
	limit, offset = clampPage(limit, offset)
	var msgs []models.ContactMessage
	if err := readDB(r.db).WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

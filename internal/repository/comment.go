package repository

import (
	"context"

	"launchpad/internal/cache"
	"launchpad/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByProduct(ctx context.Context, productID uint, viewerID uint) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	Delete(ctx context.Context, id uint) ([]uint, error)
	CountAll(ctx context.Context) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	// comments_count is part of the cached product.
	cache.Invalidate(ctx, cache.ProductKey(comment.ProductID))
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, wrapLookup(err, "Comment", id)
	}
	return &comment, nil
}

// ListByProduct returns every live comment of a product, flat and oldest first,
// with like counts and the viewer's like flag.
func (r *commentRepository) ListByProduct(ctx context.Context, productID uint, viewerID uint) ([]*models.Comment, error) {
	selectQuery := "product_comments.*, (SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = product_comments.id) AS likes_count"
	db := readDB(r.db).WithContext(ctx).Model(&models.Comment{})
	if viewerID != 0 {
		db = db.Select(selectQuery+", EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = product_comments.id AND comment_likes.user_id = ?) AS liked", viewerID)
	} else {
		db = db.Select(selectQuery + ", false AS liked")
	}

	var comments []*models.Comment
	err := db.Preload("User").
		Where("product_comments.product_id = ?", productID).
		Order("product_comments.created_at ASC").
		Order("product_comments.id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("content", content).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a comment, its replies and all their likes. It returns the ids of
// the removed comments, the given id first.
func (r *commentRepository) Delete(ctx context.Context, id uint) ([]uint, error) {
	var removed []uint
	var productIDs []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("id = ?", id).Pluck("product_id", &productIDs).Error; err != nil {
			return err
		}
		var replyIDs []uint
		if err := tx.Model(&models.Comment{}).Where("parent_id = ?", id).Pluck("id", &replyIDs).Error; err != nil {
			return err
		}
		removed = append([]uint{id}, replyIDs...)
		if err := tx.Where("comment_id IN ?", removed).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", removed).Delete(&models.Comment{}).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, productID := range productIDs {
		cache.Invalidate(ctx, cache.ProductKey(productID))
	}
	return removed, nil
}

func (r *commentRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.Comment{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"launchpad/internal/cache"
	"launchpad/internal/models"

	"gorm.io/gorm"
)

// AdminRepository holds the cross-table queries of the admin console.
type AdminRepository interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
	DeleteUser(ctx context.Context, userID uint) (*UserDeletion, error)
}

// UserDeletion reports what a user delete removed.
type UserDeletion struct {
	Username   string
	ProductIDs []uint
	// CommentedProductIDs are other products that lost comments.
	CommentedProductIDs []uint
}

type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

// Stats counts live rows per table and loads the five latest signups.
func (r *adminRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := readDB(r.db).WithContext(ctx).Raw(`SELECT
		(SELECT COUNT(*) FROM users WHERE deleted_at IS NULL) AS users,
		(SELECT COUNT(*) FROM products WHERE deleted_at IS NULL) AS products,
		(SELECT COUNT(*) FROM articles WHERE deleted_at IS NULL) AS articles,
		(SELECT COUNT(*) FROM news WHERE deleted_at IS NULL) AS news,
		(SELECT COUNT(*) FROM product_comments WHERE deleted_at IS NULL) AS comments,
		(SELECT COUNT(*) FROM product_likes) + (SELECT COUNT(*) FROM article_likes) + (SELECT COUNT(*) FROM comment_likes) AS likes,
		(SELECT COUNT(*) FROM contact_messages) AS contact_messages`).
		Scan(&stats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := readDB(r.db).WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(5).Find(&stats.LatestUsers).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &stats, nil
}

// DeleteUser removes the user's likes, bookmarks, follows and comments (with the
// likes on those comments), then their products through the product cascade,
// their articles, and finally soft deletes the account. Username and email are
// released so they can be registered again.
func (r *adminRepository) DeleteUser(ctx context.Context, userID uint) (*UserDeletion, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, wrapLookup(err, "User", userID)
	}

	result := &UserDeletion{Username: user.Username}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			sql  string
			args []any
		}{
			{"DELETE FROM product_likes WHERE user_id = ?", []any{userID}},
			{"DELETE FROM comment_likes WHERE user_id = ?", []any{userID}},
			{"DELETE FROM article_likes WHERE user_id = ?", []any{userID}},
			{"DELETE FROM product_bookmarks WHERE user_id = ?", []any{userID}},
			{"DELETE FROM article_bookmarks WHERE user_id = ?", []any{userID}},
			{"DELETE FROM follows WHERE follower_id = ? OR following_id = ?", []any{userID, userID}},
		}
		for _, step := range steps {
			if err := tx.Exec(step.sql, step.args...).Error; err != nil {
				return err
			}
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).
			Where("user_id = ? OR parent_id IN (SELECT id FROM product_comments WHERE user_id = ?)", userID, userID).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Model(&models.Comment{}).Where("id IN ?", commentIDs).
				Distinct().Pluck("product_id", &result.CommentedProductIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Product{}).Where("maker_id = ?", userID).Pluck("id", &result.ProductIDs).Error; err != nil {
			return err
		}
		if err := deleteProductsTx(tx, result.ProductIDs); err != nil {
			return err
		}
		if err := deleteArticlesTx(tx, "author_id = ?", userID); err != nil {
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"username":   fmt.Sprintf("deleted_%d", userID),
			"email":      fmt.Sprintf("deleted+%d@users.invalid", userID),
			"deleted_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, userID, user.Username)
	for _, id := range append(result.ProductIDs, result.CommentedProductIDs...) {
		cache.Invalidate(ctx, cache.ProductKey(id))
	}
	cache.InvalidateProductsList(ctx)
	return result, nil
}

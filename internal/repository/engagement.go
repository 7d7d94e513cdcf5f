package repository

import (
	"context"
	"fmt"
	"time"

	"launchpad/internal/cache"
	"launchpad/internal/models"
	"launchpad/internal/observability"

	"gorm.io/gorm"
)

// EngagementTable names a (user_id, target) join table. The value is also the
// table name realtime subscribers filter on.
type EngagementTable string

// Engagement tables.
const (
	ProductLikes     EngagementTable = "product_likes"
	CommentLikes     EngagementTable = "comment_likes"
	ArticleLikes     EngagementTable = "article_likes"
	ProductBookmarks EngagementTable = "product_bookmarks"
	ArticleBookmarks EngagementTable = "article_bookmarks"
)

// TargetColumn is the foreign key column pointing at the liked or bookmarked row.
func (t EngagementTable) TargetColumn() string {
	switch t {
	case ProductLikes, ProductBookmarks:
		return "product_id"
	case CommentLikes:
		return "comment_id"
	case ArticleLikes, ArticleBookmarks:
		return "article_id"
	}
	return ""
}

func (t EngagementTable) valid() bool {
	return t.TargetColumn() != ""
}

// EngagementRepository stores likes and bookmarks. Rows are unique per (user, target);
// adding is idempotent and removal is a hard delete.
type EngagementRepository interface {
	Add(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error)
	Remove(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error)
	Exists(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error)
	Count(ctx context.Context, table EngagementTable, targetID uint) (int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) Add(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error) {
	if !table.valid() {
		return false, models.NewInternalError(fmt.Errorf("unknown engagement table %q", table))
	}
	defer observability.TrackQuery(ctx, "insert", string(table))()
	// ON CONFLICT DO NOTHING keeps concurrent double-clicks from surfacing a duplicate key error
	res := r.db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %[1]s (user_id, %[2]s, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id, %[2]s) DO NOTHING`, table, table.TargetColumn()),
		userID, targetID, time.Now().UTC(),
	)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	r.invalidate(ctx, table, targetID)
	return res.RowsAffected > 0, nil
}

func (r *engagementRepository) Remove(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error) {
	if !table.valid() {
		return false, models.NewInternalError(fmt.Errorf("unknown engagement table %q", table))
	}
	defer observability.TrackQuery(ctx, "delete", string(table))()
	res := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND %s = ?", table, table.TargetColumn()),
		userID, targetID,
	)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	r.invalidate(ctx, table, targetID)
	return res.RowsAffected > 0, nil
}

func (r *engagementRepository) Exists(ctx context.Context, table EngagementTable, userID, targetID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Table(string(table)).
		Where("user_id = ? AND "+table.TargetColumn()+" = ?", userID, targetID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *engagementRepository) Count(ctx context.Context, table EngagementTable, targetID uint) (int64, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).
		Table(string(table)).
		Where(table.TargetColumn()+" = ?", targetID).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *engagementRepository) invalidate(ctx context.Context, table EngagementTable, targetID uint) {
	if table == ProductLikes || table == ProductBookmarks {
		cache.Invalidate(ctx, cache.ProductKey(targetID))
	}
}

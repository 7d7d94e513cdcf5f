package repository

import (
	"context"

	"launchpad/internal/models"
	"launchpad/internal/observability"

	"gorm.io/gorm"
)

// ArticleFilter selects a page of articles.
type ArticleFilter struct {
	Query              string
	AuthorID           uint
	IncludeUnpublished bool
	ViewerID           uint
	Limit              int
	Offset             int
}

// ArticleRepository defines article persistence.
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)
	ListBookmarked(ctx context.Context, userID uint, limit int) ([]*models.Article, error)
	Update(ctx context.Context, article *models.Article) error
	Delete(ctx context.Context, id uint) error
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository creates a new ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(article).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Article slug already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func applyArticleDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "articles.*, (SELECT COUNT(*) FROM article_likes WHERE article_likes.article_id = articles.id) AS likes_count"
	db = db.Model(&models.Article{}).Preload("Author")
	if viewerID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM article_likes WHERE article_likes.article_id = articles.id AND article_likes.user_id = ?) AS liked"+
			", EXISTS(SELECT 1 FROM article_bookmarks WHERE article_bookmarks.article_id = articles.id AND article_bookmarks.user_id = ?) AS bookmarked",
			viewerID, viewerID)
	}
	return db.Select(selectQuery + ", false AS liked, false AS bookmarked")
}

func (r *articleRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Article, error) {
	var article models.Article
	if err := applyArticleDetails(readDB(r.db).WithContext(ctx), viewerID).First(&article, "articles.id = ?", id).Error; err != nil {
		return nil, wrapLookup(err, "Article", id)
	}
	return &article, nil
}

func (r *articleRepository) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Article, error) {
	var article models.Article
	if err := applyArticleDetails(readDB(r.db).WithContext(ctx), viewerID).Where("articles.slug = ?", slug).First(&article).Error; err != nil {
		return nil, wrapLookup(err, "Article", slug)
	}
	return &article, nil
}

func (r *articleRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.Article{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// List returns published articles newest first; admins may include drafts.
func (r *articleRepository) List(ctx context.Context, f ArticleFilter) ([]*models.Article, error) {
	defer observability.TrackQuery(ctx, "list", "articles")()
	limit, offset := clampPage(f.Limit, f.Offset)
	db := applyArticleDetails(readDB(r.db).WithContext(ctx), f.ViewerID)
	if !f.IncludeUnpublished {
		db = db.Where("articles.published = ?", true)
	}
	if f.AuthorID != 0 {
		db = db.Where("articles.author_id = ?", f.AuthorID)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		db = db.Where(`(LOWER(articles.title) LIKE ? ESCAPE '\' OR LOWER(articles.excerpt) LIKE ? ESCAPE '\')`, p, p)
	}
	var articles []*models.Article
	err := db.Order("articles.published_at DESC").Order("articles.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&articles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

// ListBookmarked returns the user's bookmarked published articles, newest bookmark first.
func (r *articleRepository) ListBookmarked(ctx context.Context, userID uint, limit int) ([]*models.Article, error) {
	limit, _ = clampPage(limit, 0)
	var articles []*models.Article
	err := applyArticleDetails(readDB(r.db).WithContext(ctx), userID).
		Joins("JOIN article_bookmarks ab ON ab.article_id = articles.id AND ab.user_id = ?", userID).
		Where("articles.published = ?", true).
		Order("ab.created_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

func (r *articleRepository) Update(ctx context.Context, article *models.Article) error {
	err := r.db.WithContext(ctx).Model(article).
		Select("title", "slug", "excerpt", "content", "cover_image_url", "published", "published_at", "read_time_minutes", "updated_at").
		Updates(article).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Article slug already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes likes, then bookmarks, then the article.
func (r *articleRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteArticlesTx(tx, "id IN ?", []uint{id})
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func deleteArticlesTx(tx *gorm.DB, where string, args ...any) error {
	var ids []uint
	if err := tx.Model(&models.Article{}).Where(where, args...).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.ArticleLike{}).Error; err != nil {
		return err
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.ArticleBookmark{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Article{}).Error
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
	"launchpad/internal/validation"
)

const (
	maxArticleTitle   = 200
	maxArticleExcerpt = 500
)

// ArticleService publishes long-form articles written by admins.
type ArticleService struct {
	articles  repository.ArticleRepository
	isAdmin   AdminCheck
	publisher ChangePublisher
	now       func() time.Time
}

type ArticleInput struct {
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	Content       string `json:"content"`
	CoverImageURL string `json:"cover_image_url"`
	Published     bool   `json:"published"`
}

type UpdateArticleInput struct {
	Title         *string `json:"title"`
	Excerpt       *string `json:"excerpt"`
	Content       *string `json:"content"`
	CoverImageURL *string `json:"cover_image_url"`
	Published     *bool   `json:"published"`
}

func NewArticleService(articles repository.ArticleRepository, isAdmin AdminCheck, publisher ChangePublisher) *ArticleService {
	return &ArticleService{
		articles:  articles,
		isAdmin:   isAdmin,
		publisher: publisherOrNoop(publisher),
		now:       time.Now,
	}
}

// ReadTimeMinutes estimates reading time at models.WordsPerMinute, never below one minute.
func ReadTimeMinutes(content string) int {
	words := len(strings.Fields(content))
	minutes := (words + models.WordsPerMinute - 1) / models.WordsPerMinute
	return max(minutes, 1)
}

func (s *ArticleService) ListPublished(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Article, error) {
	articles, err := s.articles.List(ctx, repository.ArticleFilter{
		Query:    strings.TrimSpace(query),
		ViewerID: viewerID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	scrubAuthors(articles)
	return articles, nil
}

// ListAll includes unpublished articles for the admin console.
func (s *ArticleService) ListAll(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Article, error) {
	articles, err := s.articles.List(ctx, repository.ArticleFilter{
		Query:              strings.TrimSpace(query),
		IncludeUnpublished: true,
		ViewerID:           viewerID,
		Limit:              limit,
		Offset:             offset,
	})
	if err != nil {
		return nil, err
	}
	scrubAuthors(articles)
	return articles, nil
}

// GetBySlug hides unpublished articles from everyone but the author and admins.
func (s *ArticleService) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Article, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if validation.ValidateSlug(slug) != nil {
		return nil, models.NewNotFoundError("Article", slug)
	}
	article, err := s.articles.GetBySlug(ctx, slug, viewerID)
	if err != nil {
		return nil, err
	}
	if !article.Published && article.AuthorID != viewerID && !viewerIsAdmin(ctx, s.isAdmin, viewerID) {
		return nil, models.NewNotFoundError("Article", slug)
	}
	article.Author = article.Author.Public()
	return article, nil
}

func (s *ArticleService) Get(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	article, err := s.articles.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if !article.Published && article.AuthorID != viewerID && !viewerIsAdmin(ctx, s.isAdmin, viewerID) {
		return nil, models.NewNotFoundError("Article", id)
	}
	article.Author = article.Author.Public()
	return article, nil
}

// Create stores an article authored by the calling admin.
func (s *ArticleService) Create(ctx context.Context, authorID uint, in ArticleInput) (*models.Article, error) {
	if err := s.requireAdmin(ctx, authorID); err != nil {
		return nil, err
	}
	article := &models.Article{
		Title:         strings.TrimSpace(in.Title),
		Excerpt:       strings.TrimSpace(in.Excerpt),
		Content:       in.Content,
		CoverImageURL: strings.TrimSpace(in.CoverImageURL),
		AuthorID:      authorID,
	}
	if err := validateArticle(article); err != nil {
		return nil, err
	}
	s.applyPublished(article, in.Published)
	article.ReadTimeMinutes = ReadTimeMinutes(article.Content)

	var err error
	if article.Slug, err = uniqueSlug(ctx, article.Title, "article", s.articles.SlugExists); err != nil {
		return nil, err
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	created, err := s.articles.GetByID(ctx, article.ID, authorID)
	if err != nil {
		return nil, err
	}
	created.Author = created.Author.Public()
	if created.Published {
		publish(ctx, s.publisher, "articles", notifications.EventInsert, articleRecord(created))
	}
	return created, nil
}

func (s *ArticleService) Update(ctx context.Context, actorID, id uint, in UpdateArticleInput) (*models.Article, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	article, err := s.articles.GetByID(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		article.Title = strings.TrimSpace(*in.Title)
	}
	if in.Excerpt != nil {
		article.Excerpt = strings.TrimSpace(*in.Excerpt)
	}
	if in.Content != nil {
		article.Content = *in.Content
	}
	if in.CoverImageURL != nil {
		article.CoverImageURL = strings.TrimSpace(*in.CoverImageURL)
	}
	if err := validateArticle(article); err != nil {
		return nil, err
	}
	if in.Published != nil {
		s.applyPublished(article, *in.Published)
	}
	article.ReadTimeMinutes = ReadTimeMinutes(article.Content)
	article.UpdatedAt = s.now().UTC()

	if err := s.articles.Update(ctx, article); err != nil {
		return nil, err
	}
	updated, err := s.articles.GetByID(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	updated.Author = updated.Author.Public()
	if updated.Published {
		publish(ctx, s.publisher, "articles", notifications.EventUpdate, articleRecord(updated))
	}
	return updated, nil
}

// Delete removes likes, bookmarks and then the article.
func (s *ArticleService) Delete(ctx context.Context, actorID, id uint) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	article, err := s.articles.GetByID(ctx, id, 0)
	if err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, "articles", notifications.EventDelete, map[string]any{
		"id": article.ID, "slug": article.Slug, "author_id": article.AuthorID,
	})
	return nil
}

// applyPublished stamps published_at the first time an article goes live.
func (s *ArticleService) applyPublished(a *models.Article, published bool) {
	a.Published = published
	if published && a.PublishedAt == nil {
		now := s.now().UTC()
		a.PublishedAt = &now
	}
}

func (s *ArticleService) requireAdmin(ctx context.Context, userID uint) error {
	if !viewerIsAdmin(ctx, s.isAdmin, userID) {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}

func validateArticle(a *models.Article) error {
	if a.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(a.Title) > maxArticleTitle {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxArticleTitle))
	}
	if utf8.RuneCountInString(a.Excerpt) > maxArticleExcerpt {
		return models.NewValidationError(fmt.Sprintf("Excerpt too long (max %d characters)", maxArticleExcerpt))
	}
	if strings.TrimSpace(a.Content) == "" {
		return models.NewValidationError("Content is required")
	}
	if err := validation.ValidateMediaURL(a.CoverImageURL); err != nil {
		return models.NewValidationError("cover_image_url: " + err.Error())
	}
	return nil
}

func articleRecord(a *models.Article) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"slug":         a.Slug,
		"title":        a.Title,
		"author_id":    a.AuthorID,
		"published":    a.Published,
		"published_at": a.PublishedAt,
	}
}

func scrubAuthors(articles []*models.Article) {
	for _, a := range articles {
		a.Author = a.Author.Public()
	}
}

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
	maxNewsTitle   = 200
	maxNewsSummary = 500
)

type NewsService struct {
	news      repository.NewsRepository
	isAdmin   AdminCheck
	publisher ChangePublisher
	now       func() time.Time
}

type NewsInput struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
	ImageURL  string `json:"image_url"`
	Published bool   `json:"published"`
}

type UpdateNewsInput struct {
	Title     *string `json:"title"`
	Summary   *string `json:"summary"`
	Content   *string `json:"content"`
	SourceURL *string `json:"source_url"`
	ImageURL  *string `json:"image_url"`
	Published *bool   `json:"published"`
}

func NewNewsService(news repository.NewsRepository, isAdmin AdminCheck, publisher ChangePublisher) *NewsService {
	return &NewsService{
		news:      news,
		isAdmin:   isAdmin,
		publisher: publisherOrNoop(publisher),
		now:       time.Now,
	}
}

func (s *NewsService) ListPublished(ctx context.Context, limit, offset int) ([]models.News, error) {
	return s.news.List(ctx, false, limit, offset)
}

func (s *NewsService) ListAll(ctx context.Context, limit, offset int) ([]models.News, error) {
	return s.news.List(ctx, true, limit, offset)
}

// Get hides unpublished items from non-admins.
func (s *NewsService) Get(ctx context.Context, id, viewerID uint) (*models.News, error) {
	item, err := s.news.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Published && !viewerIsAdmin(ctx, s.isAdmin, viewerID) {
		return nil, models.NewNotFoundError("News", id)
	}
	return item, nil
}

func (s *NewsService) Create(ctx context.Context, actorID uint, in NewsInput) (*models.News, error) {
	if !viewerIsAdmin(ctx, s.isAdmin, actorID) {
		return nil, models.NewForbiddenError("Admin access required")
	}
	item := &models.News{
		Title:     strings.TrimSpace(in.Title),
		Summary:   strings.TrimSpace(in.Summary),
		Content:   in.Content,
		SourceURL: strings.TrimSpace(in.SourceURL),
		ImageURL:  strings.TrimSpace(in.ImageURL),
	}
	if err := validateNews(item); err != nil {
		return nil, err
	}
	s.applyPublished(item, in.Published)
	if err := s.news.Create(ctx, item); err != nil {
		return nil, err
	}
	if item.Published {
		publish(ctx, s.publisher, "news", notifications.EventInsert, newsRecord(item))
	}
	return item, nil
}

func (s *NewsService) Update(ctx context.Context, actorID, id uint, in UpdateNewsInput) (*models.News, error) {
	if !viewerIsAdmin(ctx, s.isAdmin, actorID) {
		return nil, models.NewForbiddenError("Admin access required")
	}
	item, err := s.news.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		item.Title = strings.TrimSpace(*in.Title)
	}
	if in.Summary != nil {
		item.Summary = strings.TrimSpace(*in.Summary)
	}
	if in.Content != nil {
		item.Content = *in.Content
	}
	if in.SourceURL != nil {
		item.SourceURL = strings.TrimSpace(*in.SourceURL)
	}
	if in.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if err := validateNews(item); err != nil {
		return nil, err
	}
	if in.Published != nil {
		s.applyPublished(item, *in.Published)
	}
	item.UpdatedAt = s.now().UTC()
	if err := s.news.Update(ctx, item); err != nil {
		return nil, err
	}
	if item.Published {
		publish(ctx, s.publisher, "news", notifications.EventUpdate, newsRecord(item))
	}
	return item, nil
}

func (s *NewsService) Delete(ctx context.Context, actorID, id uint) error {
	if !viewerIsAdmin(ctx, s.isAdmin, actorID) {
		return models.NewForbiddenError("Admin access required")
	}
	if err := s.news.Delete(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, "news", notifications.EventDelete, map[string]uint{"id": id})
	return nil
}

func (s *NewsService) applyPublished(n *models.News, published bool) {
	n.Published = published
	if published && n.PublishedAt == nil {
		now := s.now().UTC()
		n.PublishedAt = &now
	}
}

func validateNews(n *models.News) error {
	if n.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(n.Title) > maxNewsTitle {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxNewsTitle))
	}
	if utf8.RuneCountInString(n.Summary) > maxNewsSummary {
		return models.NewValidationError(fmt.Sprintf("Summary too long (max %d characters)", maxNewsSummary))
	}
	if err := validation.ValidateURL(n.SourceURL); err != nil {
		return models.NewValidationError("source_url: " + err.Error())
	}
	if err := validation.ValidateMediaURL(n.ImageURL); err != nil {
		return models.NewValidationError("image_url: " + err.Error())
	}
	return nil
}

func newsRecord(n *models.News) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"title":        n.Title,
		"summary":      n.Summary,
		"published":    n.Published,
		"published_at": n.PublishedAt,
	}
}

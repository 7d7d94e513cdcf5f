package service

import (
	"context"

	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
)

const bookmarksPageSize = 50

// EngagementService toggles likes and bookmarks.
type EngagementService struct {
	engagement repository.EngagementRepository
	products   repository.ProductRepository
	comments   repository.CommentRepository
	articles   repository.ArticleRepository
	publisher  ChangePublisher
}

// Bookmarks is the caller's saved products and articles.
type Bookmarks struct {
	Products []*models.Product `json:"products"`
	Articles []*models.Article `json:"articles"`
}

func NewEngagementService(
	engagement repository.EngagementRepository,
	products repository.ProductRepository,
	comments repository.CommentRepository,
	articles repository.ArticleRepository,
	publisher ChangePublisher,
) *EngagementService {
	return &EngagementService{
		engagement: engagement,
		products:   products,
		comments:   comments,
		articles:   articles,
		publisher:  publisherOrNoop(publisher),
	}
}

func (s *EngagementService) ToggleProductLike(ctx context.Context, userID, productID uint) (*models.LikeState, error) {
	if err := s.requirePublishedProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.toggleLike(ctx, repository.ProductLikes, userID, productID)
}

func (s *EngagementService) ProductLikeStatus(ctx context.Context, userID, productID uint) (*models.LikeState, error) {
	if err := s.requirePublishedProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, repository.ProductLikes, userID, productID)
}

func (s *EngagementService) ToggleCommentLike(ctx context.Context, userID, commentID uint) (*models.LikeState, error) {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	return s.toggleLike(ctx, repository.CommentLikes, userID, commentID)
}

func (s *EngagementService) ToggleArticleLike(ctx context.Context, userID, articleID uint) (*models.LikeState, error) {
	if err := s.requirePublishedArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.toggleLike(ctx, repository.ArticleLikes, userID, articleID)
}

func (s *EngagementService) ArticleLikeStatus(ctx context.Context, userID, articleID uint) (*models.LikeState, error) {
	if err := s.requirePublishedArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, repository.ArticleLikes, userID, articleID)
}

func (s *EngagementService) ToggleProductBookmark(ctx context.Context, userID, productID uint) (*models.BookmarkState, error) {
	if err := s.requirePublishedProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.toggleBookmark(ctx, repository.ProductBookmarks, userID, productID)
}

func (s *EngagementService) ToggleArticleBookmark(ctx context.Context, userID, articleID uint) (*models.BookmarkState, error) {
	if err := s.requirePublishedArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.toggleBookmark(ctx, repository.ArticleBookmarks, userID, articleID)
}

// ListMyBookmarks returns both bookmark lists, newest bookmark first.
func (s *EngagementService) ListMyBookmarks(ctx context.Context, userID uint) (*Bookmarks, error) {
	products, err := s.products.ListBookmarked(ctx, userID, bookmarksPageSize)
	if err != nil {
		return nil, err
	}
	articles, err := s.articles.ListBookmarked(ctx, userID, bookmarksPageSize)
	if err != nil {
		return nil, err
	}
	scrubMakers(products)
	scrubAuthors(articles)
	if products == nil {
		products = []*models.Product{}
	}
	if articles == nil {
		articles = []*models.Article{}
	}
	return &Bookmarks{Products: products, Articles: articles}, nil
}

func (s *EngagementService) toggleLike(ctx context.Context, table repository.EngagementTable, userID, targetID uint) (*models.LikeState, error) {
	if _, err := s.toggle(ctx, table, userID, targetID); err != nil {
		return nil, err
	}
	return s.likeState(ctx, table, userID, targetID)
}

func (s *EngagementService) toggleBookmark(ctx context.Context, table repository.EngagementTable, userID, targetID uint) (*models.BookmarkState, error) {
	on, err := s.toggle(ctx, table, userID, targetID)
	if err != nil {
		return nil, err
	}
	return &models.BookmarkState{Bookmarked: on}, nil
}

// toggle flips the (user, target) row and reports whether it now exists.
func (s *EngagementService) toggle(ctx context.Context, table repository.EngagementTable, userID, targetID uint) (bool, error) {
	exists, err := s.engagement.Exists(ctx, table, userID, targetID)
	if err != nil {
		return false, err
	}
	record := map[string]uint{"user_id": userID, table.TargetColumn(): targetID}
	if exists {
		removed, err := s.engagement.Remove(ctx, table, userID, targetID)
		if err != nil {
			return false, err
		}
		if removed {
			publish(ctx, s.publisher, string(table), notifications.EventDelete, record)
		}
		return false, nil
	}
	added, err := s.engagement.Add(ctx, table, userID, targetID)
	if err != nil {
		return false, err
	}
	if added {
		publish(ctx, s.publisher, string(table), notifications.EventInsert, record)
	}
	return true, nil
}

func (s *EngagementService) likeState(ctx context.Context, table repository.EngagementTable, userID, targetID uint) (*models.LikeState, error) {
	liked, err := s.engagement.Exists(ctx, table, userID, targetID)
	if err != nil {
		return nil, err
	}
	count, err := s.engagement.Count(ctx, table, targetID)
	if err != nil {
		return nil, err
	}
	return &models.LikeState{Liked: liked, LikesCount: count}, nil
}

func (s *EngagementService) requirePublishedProduct(ctx context.Context, productID uint) error {
	product, err := s.products.GetByID(ctx, productID, 0)
	if err != nil {
		return err
	}
	if !product.IsPublished() {
		return models.NewNotFoundError("Product", productID)
	}
	return nil
}

func (s *EngagementService) requirePublishedArticle(ctx context.Context, articleID uint) error {
	article, err := s.articles.GetByID(ctx, articleID, 0)
	if err != nil {
		return err
	}
	if !article.Published {
		return models.NewNotFoundError("Article", articleID)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
)

type CommentService struct {
	comments  repository.CommentRepository
	products  repository.ProductRepository
	isAdmin   AdminCheck
	publisher ChangePublisher
}

type CreateCommentInput struct {
	UserID    uint   `json:"-"`
	ProductID uint   `json:"-"`
	Content   string `json:"content"`
	ParentID  *uint  `json:"parent_id"`
}

type UpdateCommentInput struct {
	UserID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	Content   string `json:"content"`
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	comments repository.CommentRepository,
	products repository.ProductRepository,
	isAdmin AdminCheck,
	publisher ChangePublisher,
) *CommentService {
	return &CommentService{
		comments:  comments,
		products:  products,
		isAdmin:   isAdmin,
		publisher: publisherOrNoop(publisher),
	}
}

// ListComments returns the product's threads: top-level comments newest first,
// each with its replies oldest first.
func (s *CommentService) ListComments(ctx context.Context, productID, viewerID uint) ([]models.Comment, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	flat, err := s.comments.ListByProduct(ctx, productID, viewerID)
	if err != nil {
		return nil, err
	}
	return BuildThreads(flat), nil
}

// BuildThreads nests replies under their parents. Input is oldest first.
// Replies whose parent is missing are dropped.
func BuildThreads(flat []*models.Comment) []models.Comment {
	roots := make([]*models.Comment, 0, len(flat))
	byID := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		c.User = c.User.Public()
		if c.ParentID == nil {
			c.Replies = []models.Comment{}
			roots = append(roots, c)
			byID[c.ID] = c
		}
	}
	for _, c := range flat {
		if c.ParentID == nil {
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, *c)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].ID > roots[j].ID
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	out := make([]models.Comment, 0, len(roots))
	for _, r := range roots {
		out = append(out, *r)
	}
	return out
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.requireProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}

	var parentID *uint
	if in.ParentID != nil && *in.ParentID != 0 {
		parent, err := s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil, models.NewValidationError("Parent comment not found")
			}
			return nil, err
		}
		if parent.ProductID != in.ProductID {
			return nil, models.NewValidationError("Parent comment belongs to another product")
		}
		// Threads are one level deep: a reply to a reply joins the same thread.
		id := parent.ID
		if parent.ParentID != nil {
			id = *parent.ParentID
		}
		parentID = &id
	}

	comment := &models.Comment{
		ProductID: in.ProductID,
		UserID:    in.UserID,
		ParentID:  parentID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	created.User = created.User.Public()
	created.Replies = []models.Comment{}
	publish(ctx, s.publisher, "product_comments", notifications.EventInsert, commentRecord(created))
	return created, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.comments.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}

	updated, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	updated.User = updated.User.Public()
	publish(ctx, s.publisher, "product_comments", notifications.EventUpdate, commentRecord(updated))
	return updated, nil
}

// DeleteComment removes the comment, its replies and their likes.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if err := ensureOwnerOrAdmin(ctx, s.isAdmin, in.UserID, comment.UserID, "You can only delete your own comments"); err != nil {
		return err
	}
	removed, err := s.comments.Delete(ctx, comment.ID)
	if err != nil {
		return err
	}
	for _, id := range removed {
		publish(ctx, s.publisher, "product_comments", notifications.EventDelete, map[string]uint{
			"id": id, "product_id": comment.ProductID,
		})
	}
	return nil
}

func (s *CommentService) requireProduct(ctx context.Context, productID uint) error {
	product, err := s.products.GetByID(ctx, productID, 0)
	if err != nil {
		return err
	}
	if !product.IsPublished() {
		return models.NewNotFoundError("Product", productID)
	}
	return nil
}

func validateCommentContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", models.MaxCommentLength))
	}
	return content, nil
}

func commentRecord(c *models.Comment) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"product_id": c.ProductID,
		"user_id":    c.UserID,
		"parent_id":  c.ParentID,
		"content":    c.Content,
		"created_at": c.CreatedAt,
	}
}

package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"launchpad/internal/models"
	"launchpad/internal/repository"
	"launchpad/internal/validation"
)

const (
	maxBioLength      = 500
	maxFullNameLength = 100
)

// ProfileService serves public profiles and the caller's own settings.
type ProfileService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	products repository.ProductRepository
	articles repository.ArticleRepository
}

// UpdateProfileInput carries a partial update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID    uint    `json:"-"`
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
	Website   *string `json:"website"`
}

func NewProfileService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	products repository.ProductRepository,
	articles repository.ArticleRepository,
) *ProfileService {
	return &ProfileService{users: users, follows: follows, products: products, articles: articles}
}

func (s *ProfileService) GetProfile(ctx context.Context, id, viewerID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, user, viewerID)
}

func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string, viewerID uint) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.decorate(ctx, user, viewerID)
}

// decorate fills follow counts and hides the email from everyone but the owner.
func (s *ProfileService) decorate(ctx context.Context, user *models.User, viewerID uint) (*models.User, error) {
	followers, following, err := s.follows.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.FollowersCount = followers
	user.FollowingCount = following
	if viewerID != 0 && viewerID != user.ID {
		if user.IsFollowing, err = s.follows.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
	}
	if viewerID != user.ID {
		public := user.Public()
		return &public, nil
	}
	return user, nil
}

func (s *ProfileService) UpdateMyProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			existing, err := s.users.GetByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, models.NewConflictError("Username already taken")
			}
		}
		user.Username = username
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if utf8.RuneCountInString(name) > maxFullNameLength {
			return nil, models.NewValidationError("Full name too long (max 100 characters)")
		}
		user.FullName = name
	}
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > maxBioLength {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if err := validation.ValidateMediaURL(avatar); err != nil {
			return nil, models.NewValidationError("avatar_url: " + err.Error())
		}
		user.AvatarURL = avatar
	}
	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if err := validation.ValidateURL(website); err != nil {
			return nil, models.NewValidationError("website: " + err.Error())
		}
		user.Website = website
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.decorate(ctx, user, user.ID)
}

// ListProfileProducts returns a maker's products; drafts only when the maker is looking.
func (s *ProfileService) ListProfileProducts(ctx context.Context, userID, viewerID uint, limit, offset int) ([]*models.Product, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx, repository.ProductFilter{
		MakerID:       userID,
		IncludeDrafts: viewerID == userID,
		ViewerID:      viewerID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, err
	}
	scrubMakers(products)
	return products, nil
}

// ListProfileArticles returns the published articles written by userID.
func (s *ProfileService) ListProfileArticles(ctx context.Context, userID, viewerID uint, limit, offset int) ([]*models.Article, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	articles, err := s.articles.List(ctx, repository.ArticleFilter{
		AuthorID: userID,
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

package repository

import (
	"context"
	"errors"

	"launchpad/internal/cache"
	"launchpad/internal/models"
	"launchpad/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and their profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetFlags(ctx context.Context, id uint, fields map[string]any) error
	List(ctx context.Context, query string, limit, offset int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID loads a user through the 5 minute profile cache.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		defer observability.TrackQuery(ctx, "get_by_id", "users")()
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			return wrapLookup(err, "User", id)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername returns nil, nil when the username is unknown.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	key := cache.UsernameKey(username)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		return readDB(r.db).WithContext(ctx).Where("username = ?", username).First(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username or email already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update saves profile columns. The previous username is evicted as well when it changed.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	var previous models.User
	_ = r.db.WithContext(ctx).Select("id", "username").First(&previous, user.ID).Error

	err := r.db.WithContext(ctx).Model(user).
		Select("username", "full_name", "bio", "avatar_url", "website", "updated_at").
		Updates(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID, user.Username)
	if previous.Username != "" && previous.Username != user.Username {
		cache.Invalidate(ctx, cache.UsernameKey(previous.Username))
	}
	return nil
}

// SetFlags updates administrative columns (is_admin, is_banned).
func (r *userRepository) SetFlags(ctx context.Context, id uint, fields map[string]any) error {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "username").First(&user, id).Error; err != nil {
		return wrapLookup(err, "User", id)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id, user.Username)
	return nil
}

// List returns users newest first, optionally filtered by username, name or email.
func (r *userRepository) List(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset)
	var users []models.User
	db := readDB(r.db).WithContext(ctx)
	if query != "" {
		p := likePattern(query)
		db = db.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(full_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, p, p, p)
	}
	if err := db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

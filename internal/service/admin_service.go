package service

import (
	"context"
	"strings"

	"launchpad/internal/featureflags"
	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
)

// AdminService backs the admin console: dashboard, user management and the
// contact inbox. Product, article and news CRUD reuse their own services with
// an admin actor.
type AdminService struct {
	users     repository.UserRepository
	admin     repository.AdminRepository
	contacts  repository.ContactRepository
	flags     *featureflags.Manager
	publisher ChangePublisher
}

func NewAdminService(
	users repository.UserRepository,
	admin repository.AdminRepository,
	contacts repository.ContactRepository,
	flags *featureflags.Manager,
	publisher ChangePublisher,
) *AdminService {
	return &AdminService{
		users:     users,
		admin:     admin,
		contacts:  contacts,
		flags:     flags,
		publisher: publisherOrNoop(publisher),
	}
}

// IsAdmin is the AdminCheck handed to the other services.
func (s *AdminService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin && !user.IsBanned, nil
}

func (s *AdminService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := s.admin.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.LatestUsers == nil {
		stats.LatestUsers = []models.User{}
	}
	return stats, nil
}

func (s *AdminService) ListUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	users, err := s.users.List(ctx, strings.ToLower(strings.TrimSpace(query)), limit, offset)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SetAdmin promotes or demotes a user. Admins cannot demote themselves.
func (s *AdminService) SetAdmin(ctx context.Context, actorID, userID uint, admin bool) (*models.User, error) {
	if actorID == userID && !admin {
		return nil, models.NewValidationError("You cannot remove your own admin role")
	}
	if err := s.users.SetFlags(ctx, userID, map[string]any{"is_admin": admin}); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// SetBanned bans or unbans a user. Banned users keep their content but cannot sign in.
func (s *AdminService) SetBanned(ctx context.Context, actorID, userID uint, banned bool) (*models.User, error) {
	if actorID == userID && banned {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	if err := s.users.SetFlags(ctx, userID, map[string]any{"is_banned": banned}); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// DeleteUser removes the account and everything it owns.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return models.NewForbiddenError("You cannot delete your own account from the admin console")
	}
	deleted, err := s.admin.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range deleted.ProductIDs {
		publish(ctx, s.publisher, "products", notifications.EventDelete, map[string]uint{"id": id, "maker_id": userID})
	}
	return nil
}

func (s *AdminService) ListContactMessages(ctx context.Context, limit, offset int) ([]models.ContactMessage, error) {
	msgs, err := s.contacts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ContactMessage{}
	}
	return msgs, nil
}

// FeatureFlags reports the configured rules and how they resolve for userID.
func (s *AdminService) FeatureFlags(userID uint) map[string]any {
	return map[string]any{
		"rules":   s.flags.Raw(),
		"enabled": s.flags.Snapshot(userID),
	}
}

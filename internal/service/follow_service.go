package service

import (
	"context"

	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
)

type FollowService struct {
	follows   repository.FollowRepository
	users     repository.UserRepository
	publisher ChangePublisher
}

func NewFollowService(
	follows repository.FollowRepository,
	users repository.UserRepository,
	publisher ChangePublisher,
) *FollowService {
	return &FollowService{follows: follows, users: users, publisher: publisherOrNoop(publisher)}
}

// Follow is idempotent; following yourself is rejected.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (*models.FollowState, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	created, err := s.follows.Follow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if created {
		publish(ctx, s.publisher, "follows", notifications.EventInsert, followRecord(followerID, targetID))
	}
	return s.Status(ctx, followerID, targetID)
}

// Unfollow is idempotent.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (*models.FollowState, error) {
	removed, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if removed {
		publish(ctx, s.publisher, "follows", notifications.EventDelete, followRecord(followerID, targetID))
	}
	return s.Status(ctx, followerID, targetID)
}

// Status reports whether viewerID follows targetID and the target's counts.
func (s *FollowService) Status(ctx context.Context, viewerID, targetID uint) (*models.FollowState, error) {
	following, err := s.follows.IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	followers, followingCount, err := s.follows.Counts(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &models.FollowState{Following: following, FollowersCount: followers, FollowingCount: followingCount}, nil
}

func (s *FollowService) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.follows.ListFollowers(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (s *FollowService) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.follows.ListFollowing(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func followRecord(followerID, followingID uint) map[string]uint {
	return map[string]uint{"follower_id": followerID, "following_id": followingID}
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/observability"
	"launchpad/internal/repository"
	"launchpad/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// WSTicketTTL is how long a realtime ticket may wait before being redeemed.
const WSTicketTTL = 30 * time.Second

// AuthService owns signup, login and session revocation.
type AuthService struct {
	users      repository.UserRepository
	follows    repository.FollowRepository
	rdb        *redis.Client
	secret     string
	bcryptCost int
	now        func() time.Time
}

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	rdb *redis.Client,
	secret string,
) *AuthService {
	return &AuthService{
		users:      users,
		follows:    follows,
		rdb:        rdb,
		secret:     secret,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithBcryptCost lowers the hashing cost, for tests and seeding.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already registered")
	}
	existing, err = s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, _, err := middleware.IssueToken(s.secret, user.ID, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Account is banned")
	}

	token, _, err := middleware.IssueToken(s.secret, user.ID, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the token's jti until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return models.NewUnauthorizedError("Invalid session")
	}
	if s.rdb == nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, middleware.BlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("blacklist").Inc()
		return models.NewInternalError(err)
	}
	return nil
}

// IsRevoked reports whether jti was logged out. Without Redis nothing is revoked.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, middleware.BlacklistKey(jti)).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("blacklist").Inc()
		return false, err
	}
	return n > 0, nil
}

// Me returns the caller's own profile, email included.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.follows.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FollowersCount = followers
	user.FollowingCount = following
	return user, nil
}

// IssueWSTicket stores a single-use realtime ticket for userID.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", models.NewInternalError(errors.New("websocket tickets require redis"))
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, middleware.WSTicketKey(ticket), userID, WSTicketTTL).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("ws_ticket").Inc()
		return "", models.NewInternalError(err)
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket and returns its user.
func (s *AuthService) RedeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.rdb == nil || ticket == "" {
		return 0, models.NewUnauthorizedError("Invalid ticket")
	}
	id, err := s.rdb.GetDel(ctx, middleware.WSTicketKey(ticket)).Uint64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("ws_ticket").Inc()
		}
		return 0, models.NewUnauthorizedError("Invalid or expired ticket")
	}
	return uint(id), nil
}

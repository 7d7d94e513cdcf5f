package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-with-enough-length-for-hmac"

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	setFlagsFn      func(context.Context, uint, map[string]any) error
	listFn          func(context.Context, string, int, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetFlags(ctx context.Context, id uint, fields map[string]any) error {
	return s.setFlagsFn(ctx, id, fields)
}
func (s *userRepoStub) List(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, q, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn:   func(_ context.Context, _ *models.User) error { return nil },
		setFlagsFn: func(_ context.Context, _ uint, _ map[string]any) error { return nil },
		listFn:     func(_ context.Context, _ string, _, _ int) ([]models.User, error) { return nil, nil },
	}
}

func newAuth(users *userRepoStub, rdb *redis.Client) *AuthService {
	return NewAuthService(users, nil, rdb, testSecret).WithBcryptCost(bcrypt.MinCost)
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()
	svc := newAuth(noopUserRepo(), nil)

	cases := []struct {
		name string
		in   SignupInput
	}{
		{"short username", SignupInput{Username: "ab", Email: "a@example.com", Password: testutil.TestPassword}},
		{"bad username chars", SignupInput{Username: "ada lovelace", Email: "a@example.com", Password: testutil.TestPassword}},
		{"bad email", SignupInput{Username: "ada", Email: "not-an-email", Password: testutil.TestPassword}},
		{"weak password", SignupInput{Username: "ada", Email: "a@example.com", Password: "password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tc.in)
			assertValidationError(t, err)
		})
	}
}

func TestSignupConflicts(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) { return &models.User{ID: 9}, nil }
	_, err := newAuth(users, nil).Signup(context.Background(), SignupInput{Username: "ada", Email: "ada@example.com", Password: testutil.TestPassword})
	assertConflictError(t, err)

	users = noopUserRepo()
	users.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) { return &models.User{ID: 9}, nil }
	_, err = newAuth(users, nil).Signup(context.Background(), SignupInput{Username: "ada", Email: "ada@example.com", Password: testutil.TestPassword})
	assertConflictError(t, err)
}

func TestSignupHashesPasswordAndIssuesToken(t *testing.T) {
	t.Parallel()

	var stored *models.User
	users := noopUserRepo()
	users.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 42
		stored = u
		return nil
	}
	res, err := newAuth(users, nil).Signup(context.Background(), SignupInput{
		Username: "ada",
		Email:    "  Ada@Example.com ",
		Password: testutil.TestPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, "ada@example.com", stored.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(testutil.TestPassword)))

	claims, err := middleware.ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte(testutil.TestPassword), bcrypt.MinCost)
	require.NoError(t, err)
	account := &models.User{ID: 7, Email: "ada@example.com", Password: string(hash)}

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email == account.Email {
			u := *account
			return &u, nil
		}
		return nil, nil
	}
	svc := newAuth(users, nil)

	_, err = svc.Login(context.Background(), LoginInput{})
	assertValidationError(t, err)

	_, err = svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: testutil.TestPassword})
	assertUnauthorizedError(t, err)

	_, err = svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "Wrong#Password1"})
	assertUnauthorizedError(t, err)

	res, err := svc.Login(context.Background(), LoginInput{Email: "ADA@example.com", Password: testutil.TestPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	account.IsBanned = true
	_, err = svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: testutil.TestPassword})
	assertForbiddenError(t, err)
}

func TestLoginPropagatesRepositoryErrors(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) { return nil, errors.New("db down") }
	_, err := newAuth(users, nil).Login(context.Background(), LoginInput{Email: "a@example.com", Password: "x"})
	require.EqualError(t, err, "db down")
}

func TestLogoutRevokesUntilExpiry(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := newAuth(noopUserRepo(), rdb)

	token, jti, err := middleware.IssueToken(testSecret, 3, time.Now())
	require.NoError(t, err)
	claims, err := middleware.ParseToken(testSecret, token)
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(context.Background(), jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Logout(context.Background(), claims))
	revoked, err = svc.IsRevoked(context.Background(), jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(middleware.BlacklistKey(jti))
	assert.Greater(t, ttl, 6*24*time.Hour)

	assertUnauthorizedError(t, svc.Logout(context.Background(), nil))
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	t.Parallel()
	svc := newAuth(noopUserRepo(), nil)
	claims := &middleware.SessionClaims{}
	claims.ID = "abc"
	require.NoError(t, svc.Logout(context.Background(), claims))
}

func TestWSTicketIsSingleUse(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := newAuth(noopUserRepo(), rdb)

	ticket, err := svc.IssueWSTicket(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, WSTicketTTL, mr.TTL(middleware.WSTicketKey(ticket)))

	userID, err := svc.RedeemWSTicket(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(11), userID)

	_, err = svc.RedeemWSTicket(context.Background(), ticket)
	assertUnauthorizedError(t, err)

	ticket, err = svc.IssueWSTicket(context.Background(), 12)
	require.NoError(t, err)
	mr.FastForward(WSTicketTTL + time.Second)
	_, err = svc.RedeemWSTicket(context.Background(), ticket)
	assertUnauthorizedError(t, err)
}

func TestWSTicketRequiresRedis(t *testing.T) {
	t.Parallel()
	svc := newAuth(noopUserRepo(), nil)
	_, err := svc.IssueWSTicket(context.Background(), 1)
	require.Error(t, err)
	_, err = svc.RedeemWSTicket(context.Background(), "x")
	assertUnauthorizedError(t, err)
}

func TestMeIncludesFollowCounts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ada := testutil.CreateUser(t, env.db, "ada")
	bob := testutil.CreateUser(t, env.db, "bob")
	_, err := env.follows.Follow(context.Background(), bob.ID, ada.ID)
	require.NoError(t, err)

	svc := NewAuthService(env.users, env.follows, nil, testSecret)
	me, err := svc.Me(context.Background(), ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, int64(1), me.FollowersCount)
	assert.Equal(t, int64(0), me.FollowingCount)
}

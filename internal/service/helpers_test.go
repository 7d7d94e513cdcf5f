package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
	"launchpad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeNotFound)
}

func assertConflictError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeConflict)
}

// recordingPublisher captures published changes.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []notifications.Change
}

func (p *recordingPublisher) PublishChange(_ context.Context, c notifications.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPublisher) events(table string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.changes {
		if c.Table == table {
			out = append(out, c.Event)
		}
	}
	return out
}

// testEnv wires real repositories over a private SQLite database.
type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	follows    repository.FollowRepository
	products   repository.ProductRepository
	comments   repository.CommentRepository
	engagement repository.EngagementRepository
	articles   repository.ArticleRepository
	news       repository.NewsRepository
	contacts   repository.ContactRepository
	admin      repository.AdminRepository
	pub        *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &testEnv{
		db:         db,
		users:      repository.NewUserRepository(db),
		follows:    repository.NewFollowRepository(db),
		products:   repository.NewProductRepository(db),
		comments:   repository.NewCommentRepository(db),
		engagement: repository.NewEngagementRepository(db),
		articles:   repository.NewArticleRepository(db),
		news:       repository.NewNewsRepository(db),
		contacts:   repository.NewContactRepository(db),
		admin:      repository.NewAdminRepository(db),
		pub:        &recordingPublisher{},
	}
}

// isAdmin reads the is_admin column directly.
func (e *testEnv) isAdmin(ctx context.Context, userID uint) (bool, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

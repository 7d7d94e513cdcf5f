package repository

import (
	"context"
	"regexp"
	"testing"

	"launchpad/internal/cache"
	"launchpad/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	comment := &models.Comment{ProductID: 1, UserID: 1, Content: "Test comment"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "product_comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), comment)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListByProduct(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()

	maker := seedUser(t, db, "maker")
	fan := seedUser(t, db, "fan")
	p := seedProduct(t, db, maker.ID, "thing")
	other := seedProduct(t, db, maker.ID, "other")

	root := seedComment(t, db, p.ID, fan.ID, nil, "first")
	reply := seedComment(t, db, p.ID, maker.ID, &root.ID, "thanks")
	seedComment(t, db, other.ID, fan.ID, nil, "elsewhere")

	_, err := engagement.Add(ctx, CommentLikes, maker.ID, root.ID)
	require.NoError(t, err)
	_, err = engagement.Add(ctx, CommentLikes, fan.ID, root.ID)
	require.NoError(t, err)

	comments, err := repo.ListByProduct(ctx, p.ID, maker.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, root.ID, comments[0].ID)
	assert.Equal(t, int64(2), comments[0].LikesCount)
	assert.True(t, comments[0].Liked)
	assert.Equal(t, "fan", comments[0].User.Username)
	assert.Equal(t, reply.ID, comments[1].ID)
	assert.False(t, comments[1].Liked)

	anon, err := repo.ListByProduct(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, anon[0].Liked)
}

func TestCommentRepository_DeleteRemovesReplies(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()

	maker := seedUser(t, db, "maker")
	p := seedProduct(t, db, maker.ID, "thing")
	root := seedComment(t, db, p.ID, maker.ID, nil, "root")
	reply := seedComment(t, db, p.ID, maker.ID, &root.ID, "reply")
	sibling := seedComment(t, db, p.ID, maker.ID, nil, "sibling")
	_, err := engagement.Add(ctx, CommentLikes, maker.ID, reply.ID)
	require.NoError(t, err)

	removed, err := repo.Delete(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.ID, reply.ID}, removed)
	assert.Zero(t, countRows(t, db, "comment_likes", "comment_id = ?", reply.ID))

	left, err := repo.ListByProduct(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, sibling.ID, left[0].ID)

	_, err = repo.GetByID(ctx, root.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	total, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCommentRepository_UpdateContent(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "writer")
	p := seedProduct(t, db, u.ID, "thing")
	c := seedComment(t, db, p.ID, u.ID, nil, "typo")

	require.NoError(t, repo.UpdateContent(ctx, c.ID, "fixed"))
	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
}

func TestCommentRepository_WritesRefreshCachedProductCount(t *testing.T) {
	mr := useMiniredis(t)
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	products := NewProductRepository(db)
	ctx := context.Background()

	maker := seedUser(t, db, "maker")
	p := seedProduct(t, db, maker.ID, "cached")

	before, err := products.GetByID(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Zero(t, before.CommentsCount)
	require.True(t, mr.Exists(cache.ProductKey(p.ID)))

	c := &models.Comment{ProductID: p.ID, UserID: maker.ID, Content: "first!"}
	require.NoError(t, repo.Create(ctx, c))
	assert.False(t, mr.Exists(cache.ProductKey(p.ID)))

	after, err := products.GetByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.CommentsCount)

	_, err = repo.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.ProductKey(p.ID)))

	gone, err := products.GetByID(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, gone.CommentsCount)
}

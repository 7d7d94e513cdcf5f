package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"launchpad/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedArticle(t *testing.T, repo ArticleRepository, authorID uint, slug string, published bool) *models.Article {
	t.Helper()
	a := &models.Article{Title: slug, Slug: slug, Content: "body of " + slug, AuthorID: authorID, Published: published, ReadTimeMinutes: 1}
	if published {
		now := time.Now().UTC()
		a.PublishedAt = &now
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestArticleRepository_ListAndDetails(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewArticleRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()

	admin := seedUser(t, db, "editor")
	reader := seedUser(t, db, "reader")
	live := seedArticle(t, repo, admin.ID, "shipping-faster", true)
	seedArticle(t, repo, admin.ID, "unfinished-thoughts", false)

	_, err := engagement.Add(ctx, ArticleLikes, reader.ID, live.ID)
	require.NoError(t, err)
	_, err = engagement.Add(ctx, ArticleBookmarks, reader.ID, live.ID)
	require.NoError(t, err)

	public, err := repo.List(ctx, ArticleFilter{ViewerID: reader.ID})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, live.ID, public[0].ID)
	assert.Equal(t, int64(1), public[0].LikesCount)
	assert.True(t, public[0].Liked)
	assert.True(t, public[0].Bookmarked)
	assert.Equal(t, "editor", public[0].Author.Username)

	all, err := repo.List(ctx, ArticleFilter{IncludeUnpublished: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := repo.List(ctx, ArticleFilter{Query: "Shipping"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	bySlug, err := repo.GetBySlug(ctx, "shipping-faster", 0)
	require.NoError(t, err)
	assert.False(t, bySlug.Liked)

	saved, err := repo.ListBookmarked(ctx, reader.ID, 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, live.ID, saved[0].ID)

	err = repo.Create(ctx, &models.Article{Title: "dup", Slug: "shipping-faster", Content: "x", AuthorID: admin.ID})
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestArticleRepository_UpdateAndDelete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewArticleRepository(db)
	engagement := NewEngagementRepository(db)
	ctx := context.Background()

	admin := seedUser(t, db, "editor")
	a := seedArticle(t, repo, admin.ID, "draft-post", false)

	now := time.Now().UTC()
	a.Published = true
	a.PublishedAt = &now
	a.ReadTimeMinutes = 4
	require.NoError(t, repo.Update(ctx, a))

	got, err := repo.GetByID(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.True(t, got.Published)
	assert.Equal(t, 4, got.ReadTimeMinutes)

	_, err = engagement.Add(ctx, ArticleLikes, admin.ID, a.ID)
	require.NoError(t, err)
	_, err = engagement.Add(ctx, ArticleBookmarks, admin.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.Zero(t, countRows(t, db, "article_likes", "article_id = ?", a.ID))
	assert.Zero(t, countRows(t, db, "article_bookmarks", "article_id = ?", a.ID))
	_, err = repo.GetByID(ctx, a.ID, 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	exists, err := repo.SlugExists(ctx, "draft-post")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewsRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNewsRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	live := &models.News{Title: "Launch week", Summary: "Five days", Published: true, PublishedAt: &now}
	hidden := &models.News{Title: "Embargoed"}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, hidden))

	public, err := repo.List(ctx, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Launch week", public[0].Title)

	all, err := repo.List(ctx, true, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hidden.Summary = "Now public"
	hidden.Published = true
	hidden.PublishedAt = &now
	require.NoError(t, repo.Update(ctx, hidden))
	got, err := repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, "Now public", got.Summary)

	require.NoError(t, repo.Delete(ctx, live.ID))
	err = repo.Delete(ctx, live.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	_, err = repo.GetByID(ctx, live.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestContactRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewContactRepository(db)
	ctx := context.Background()

	msg := &models.ContactMessage{Name: "Ada", Email: "ada@example.com", Subject: "Hi", Message: "Hello there, team", Status: models.ContactStatusReceived}
	require.NoError(t, repo.Create(ctx, msg))

	longErr := errors.New(strings.Repeat("x", 5000))
	require.NoError(t, repo.UpdateStatus(ctx, msg.ID, models.ContactStatusFailed, longErr.Error()))

	msgs, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.ContactStatusFailed, msgs[0].Status)
	assert.Len(t, msgs[0].Error, 4000)
}

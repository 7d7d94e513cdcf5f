package server

import (
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListArticles handles GET /api/articles
// @Summary List published articles
// @Tags articles
// @Produce json
// @Param q query string false "Search text"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Article
// @Router /articles [get]
func (s *Server) ListArticles(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	articles, err := s.articleService.ListPublished(c.UserContext(), c.Query("q"), s.viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(articles)
}

// GetArticleBySlug handles GET /api/articles/:slug
// @Summary Get an article
// @Tags articles
// @Produce json
// @Param slug path string true "Article slug"
// @Success 200 {object} models.Article
// @Failure 404 {object} models.ErrorResponse
// @Router /articles/{slug} [get]
func (s *Server) GetArticleBySlug(c *fiber.Ctx) error {
	article, err := s.articleService.GetBySlug(c.UserContext(), c.Params("slug"), s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(article)
}

// ToggleArticleLike handles POST /api/articles/:id/like
// @Summary Like or unlike an article
// @Tags likes
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Success 200 {object} models.LikeState
// @Router /articles/{id}/like [post]
func (s *Server) ToggleArticleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleArticleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

// GetArticleLikeStatus handles GET /api/articles/:id/likes
func (s *Server) GetArticleLikeStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ArticleLikeStatus(c.UserContext(), s.viewerID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

// ToggleArticleBookmark handles POST /api/articles/:id/bookmark
// @Summary Bookmark or unbookmark an article
// @Tags bookmarks
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Success 200 {object} models.BookmarkState
// @Router /articles/{id}/bookmark [post]
func (s *Server) ToggleArticleBookmark(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleArticleBookmark(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

// GetMyBookmarks handles GET /api/bookmarks
// @Summary The caller's bookmarked products and articles
// @Tags bookmarks
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.Bookmarks
// @Router /bookmarks [get]
func (s *Server) GetMyBookmarks(c *fiber.Ctx) error {
	bookmarks, err := s.engagementService.ListMyBookmarks(c.UserContext(), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(bookmarks)
}

// AdminListArticles handles GET /api/admin/articles, drafts included.
func (s *Server) AdminListArticles(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	articles, err := s.articleService.ListAll(c.UserContext(), c.Query("q"), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(articles)
}

// AdminGetArticle handles GET /api/admin/articles/:id
func (s *Server) AdminGetArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	article, err := s.articleService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(article)
}

// CreateArticle handles POST /api/admin/articles
// @Summary Write an article
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.ArticleInput true "Article"
// @Success 201 {object} models.Article
// @Router /admin/articles [post]
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	var req service.ArticleInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	article, err := s.articleService.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

// UpdateArticle handles PUT /api/admin/articles/:id
// @Summary Update an article
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Article ID"
// @Param request body service.UpdateArticleInput true "Fields to change"
// @Success 200 {object} models.Article
// @Router /admin/articles/{id} [put]
func (s *Server) UpdateArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateArticleInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	article, err := s.articleService.Update(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(article)
}

// DeleteArticle handles DELETE /api/admin/articles/:id
// @Summary Delete an article with its likes and bookmarks
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Success 200 {object} object{message=string}
// @Router /admin/articles/{id} [delete]
func (s *Server) DeleteArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.articleService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Article deleted"})
}

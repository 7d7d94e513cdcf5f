package server

import (
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListNews handles GET /api/news
// @Summary Published news, newest first
// @Tags news
// @Produce json
// @Success 200 {array} models.News
// @Router /news [get]
func (s *Server) ListNews(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	items, err := s.newsService.ListPublished(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(items)
}

// GetNews handles GET /api/news/:id
// @Summary Get a news item
// @Tags news
// @Produce json
// @Param id path int true "News ID"
// @Success 200 {object} models.News
// @Failure 404 {object} models.ErrorResponse
// @Router /news/{id} [get]
func (s *Server) GetNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	item, err := s.newsService.Get(c.UserContext(), id, s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(item)
}

// AdminListNews handles GET /api/admin/news
func (s *Server) AdminListNews(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	items, err := s.newsService.ListAll(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(items)
}

// CreateNews handles POST /api/admin/news
// @Summary Create a news item
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Param request body service.NewsInput true "News item"
// @Success 201 {object} models.News
// @Router /admin/news [post]
func (s *Server) CreateNews(c *fiber.Ctx) error {
	var req service.NewsInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.newsService.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// UpdateNews handles PUT /api/admin/news/:id
func (s *Server) UpdateNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateNewsInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	item, err := s.newsService.Update(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(item)
}

// DeleteNews handles DELETE /api/admin/news/:id
func (s *Server) DeleteNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.newsService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "News deleted"})
}

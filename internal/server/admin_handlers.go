package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetAdminStats handles GET /api/admin/stats
// @Summary Dashboard counts and latest signups
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Router /admin/stats [get]
func (s *Server) GetAdminStats(c *fiber.Ctx) error {
	stats, err := s.adminService.Stats(c.UserContext())
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(stats)
}

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flag rules and their state for the caller
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{rules=map[string]string,enabled=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.adminService.FeatureFlags(currentUserID(c)))
}

// GetContactMessages handles GET /api/admin/contact-messages
// @Summary Contact form submissions, newest first
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.ContactMessage
// @Router /admin/contact-messages [get]
func (s *Server) GetContactMessages(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	msgs, err := s.adminService.ListContactMessages(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(msgs)
}

// AdminListUsers handles GET /api/admin/users?q=
// @Summary Search users
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param q query string false "Matches username, full name or email"
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	users, err := s.adminService.ListUsers(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(users)
}

// PromoteUser handles POST /api/admin/users/:id/promote
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteUser handles POST /api/admin/users/:id/demote
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

// BanUser handles POST /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.setBanned(c, true)
}

// UnbanUser handles POST /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.setBanned(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, admin bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.adminService.SetAdmin(c.UserContext(), currentUserID(c), id, admin)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

func (s *Server) setBanned(c *fiber.Ctx, banned bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.adminService.SetBanned(c.UserContext(), currentUserID(c), id, banned)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// AdminDeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete a user and everything they created
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.adminService.DeleteUser(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

package server

import (
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitContact handles POST /api/contact
// @Summary Send a message to the team
// @Description The message is stored even when email delivery fails or is disabled.
// @Tags contact
// @Accept json
// @Produce json
// @Param request body service.ContactInput true "Message"
// @Success 201 {object} object{id=int,status=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /contact [post]
func (s *Server) SubmitContact(c *fiber.Ctx) error {
	var req service.ContactInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.RemoteIP = c.IP()

	msg, err := s.contactService.Submit(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     msg.ID,
		"status": msg.Status,
	})
}

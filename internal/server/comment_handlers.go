package server

import (
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/products/:id/comments
// @Summary Threaded comments for a product
// @Description Top-level comments newest first, replies oldest first.
// @Tags comments
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {array} models.Comment
// @Router /products/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	productID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	threads, err := s.commentService.ListComments(c.UserContext(), productID, s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(threads)
}

// CreateComment handles POST /api/products/:id/comments
// @Summary Comment on a product
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Router /products/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	productID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.CreateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)
	req.ProductID = productID

	comment, err := s.commentService.CreateComment(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit your comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Param id path int true "Comment ID"
// @Param request body service.UpdateCommentInput true "New content"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUserID(c)
	req.CommentID = id

	comment, err := s.commentService.UpdateComment(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment with its replies and likes
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} object{message=string}
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		CommentID: id,
	}); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted"})
}

// ToggleCommentLike handles POST /api/comments/:id/like
// @Summary Like or unlike a comment
// @Tags likes
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} models.LikeState
// @Router /comments/{id}/like [post]
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleCommentLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

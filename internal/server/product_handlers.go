package server

import (
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

func listProductsInput(c *fiber.Ctx) service.ListProductsInput {
	page := parsePagination(c, 20)
	return service.ListProductsInput{
		Sort:   c.Query("sort"),
		Tag:    c.Query("tag"),
		Query:  c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}

// ListProducts handles GET /api/products
// @Summary List published products
// @Tags products
// @Produce json
// @Param sort query string false "new, top, trending or featured"
// @Param tag query string false "Tag filter"
// @Param q query string false "Search text"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Product
// @Failure 400 {object} models.ErrorResponse
// @Router /products [get]
func (s *Server) ListProducts(c *fiber.Ctx) error {
	products, err := s.productService.List(c.UserContext(), listProductsInput(c), s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(products)
}

// AdminListProducts handles GET /api/admin/products, drafts included.
func (s *Server) AdminListProducts(c *fiber.Ctx) error {
	products, err := s.productService.ListAll(c.UserContext(), listProductsInput(c), currentUserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(products)
}

// GetProduct handles GET /api/products/:id
// @Summary Get a product
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (s *Server) GetProduct(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	product, err := s.productService.Get(c.UserContext(), id, s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(product)
}

// GetProductBySlug handles GET /api/products/slug/:slug
// @Summary Get a product by slug
// @Tags products
// @Produce json
// @Param slug path string true "Product slug"
// @Success 200 {object} models.Product
// @Router /products/slug/{slug} [get]
func (s *Server) GetProductBySlug(c *fiber.Ctx) error {
	product, err := s.productService.GetBySlug(c.UserContext(), c.Params("slug"), s.viewerID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(product)
}

// CreateProduct handles POST /api/products and POST /api/admin/products
// @Summary Launch a product
// @Tags products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CreateProductInput true "Product"
// @Success 201 {object} models.Product
// @Failure 400 {object} models.ErrorResponse
// @Router /products [post]
func (s *Server) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	product, err := s.productService.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// UpdateProduct handles PUT /api/products/:id
// @Summary Update a product
// @Description Partial update. Tags and images are replaced when present.
// @Tags products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param request body service.UpdateProductInput true "Fields to change"
// @Success 200 {object} models.Product
// @Failure 403 {object} models.ErrorResponse
// @Router /products/{id} [put]
func (s *Server) UpdateProduct(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateProductInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	product, err := s.productService.Update(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(product)
}

// DeleteProduct handles DELETE /api/products/:id
// @Summary Delete a product with its comments, likes, bookmarks, tags and images
// @Tags products
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} object{message=string}
// @Router /products/{id} [delete]
func (s *Server) DeleteProduct(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.productService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

// ToggleProductLike handles POST /api/products/:id/like
// @Summary Like or unlike a product
// @Tags likes
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} models.LikeState
// @Router /products/{id}/like [post]
func (s *Server) ToggleProductLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleProductLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

// GetProductLikeStatus handles GET /api/products/:id/likes
// @Summary Like count and whether the caller liked the product
// @Tags likes
// @Param id path int true "Product ID"
// @Success 200 {object} models.LikeState
// @Router /products/{id}/likes [get]
func (s *Server) GetProductLikeStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ProductLikeStatus(c.UserContext(), s.viewerID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

// ToggleProductBookmark handles POST /api/products/:id/bookmark
// @Summary Bookmark or unbookmark a product
// @Tags bookmarks
// @Security BearerAuth
// @Param id path int true "Product ID"
// @Success 200 {object} models.BookmarkState
// @Router /products/{id}/bookmark [post]
func (s *Server) ToggleProductBookmark(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.engagementService.ToggleProductBookmark(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(state)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"launchpad/internal/featureflags"
	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
	"launchpad/internal/validation"
)

const maxProductNameLength = 100

// ProductService enforces listing rules on top of the product repository.
type ProductService struct {
	products  repository.ProductRepository
	flags     *featureflags.Manager
	isAdmin   AdminCheck
	publisher ChangePublisher
	now       func() time.Time
}

type ProductImageInput struct {
	URL       string `json:"url"`
	ImageHash string `json:"image_hash"`
}

type CreateProductInput struct {
	// MakerID defaults to the caller; only admins may create for someone else.
	MakerID     uint                `json:"maker_id"`
	Name        string              `json:"name"`
	Tagline     string              `json:"tagline"`
	Description string              `json:"description"`
	WebsiteURL  string              `json:"website_url"`
	LogoURL     string              `json:"logo_url"`
	Status      string              `json:"status"`
	IsFeatured  bool                `json:"is_featured"`
	Tags        []string            `json:"tags"`
	Images      []ProductImageInput `json:"images"`
}

// UpdateProductInput is a partial update; nil fields are left unchanged.
type UpdateProductInput struct {
	Name        *string              `json:"name"`
	Tagline     *string              `json:"tagline"`
	Description *string              `json:"description"`
	WebsiteURL  *string              `json:"website_url"`
	LogoURL     *string              `json:"logo_url"`
	Status      *string              `json:"status"`
	IsFeatured  *bool                `json:"is_featured"`
	Tags        *[]string            `json:"tags"`
	Images      *[]ProductImageInput `json:"images"`
}

type ListProductsInput struct {
	Sort   string
	Tag    string
	Query  string
	Limit  int
	Offset int
}

func NewProductService(
	products repository.ProductRepository,
	flags *featureflags.Manager,
	isAdmin AdminCheck,
	publisher ChangePublisher,
) *ProductService {
	if flags == nil {
		flags = featureflags.NewManager("")
	}
	return &ProductService{
		products:  products,
		flags:     flags,
		isAdmin:   isAdmin,
		publisher: publisherOrNoop(publisher),
		now:       time.Now,
	}
}

func (s *ProductService) List(ctx context.Context, in ListProductsInput, viewerID uint) ([]*models.Product, error) {
	return s.list(ctx, in, viewerID, false)
}

// ListAll includes drafts; it backs the admin console.
func (s *ProductService) ListAll(ctx context.Context, in ListProductsInput, viewerID uint) ([]*models.Product, error) {
	return s.list(ctx, in, viewerID, true)
}

func (s *ProductService) list(ctx context.Context, in ListProductsInput, viewerID uint, drafts bool) ([]*models.Product, error) {
	sort := strings.ToLower(strings.TrimSpace(in.Sort))
	switch sort {
	case "":
		sort = repository.SortNew
	case repository.SortNew, repository.SortTop, repository.SortTrending, repository.SortFeatured:
	default:
		return nil, models.NewValidationError("sort must be one of new, top, trending, featured")
	}
	products, err := s.products.List(ctx, repository.ProductFilter{
		Sort:          sort,
		Tag:           strings.ToLower(strings.TrimSpace(in.Tag)),
		Query:         strings.TrimSpace(in.Query),
		IncludeDrafts: drafts,
		ViewerID:      viewerID,
		Limit:         in.Limit,
		Offset:        in.Offset,
	})
	if err != nil {
		return nil, err
	}
	scrubMakers(products)
	return products, nil
}

// Get hides drafts from everyone but the maker and admins.
func (s *ProductService) Get(ctx context.Context, id, viewerID uint) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, product, viewerID, id)
}

// GetBySlug answers malformed and reserved slugs with not found without a query.
func (s *ProductService) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Product, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if validation.ValidateSlug(slug) != nil {
		return nil, models.NewNotFoundError("Product", slug)
	}
	product, err := s.products.GetBySlug(ctx, slug, viewerID)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, product, viewerID, slug)
}

func (s *ProductService) visible(ctx context.Context, p *models.Product, viewerID uint, ref any) (*models.Product, error) {
	if !p.IsPublished() && p.MakerID != viewerID && !viewerIsAdmin(ctx, s.isAdmin, viewerID) {
		return nil, models.NewNotFoundError("Product", ref)
	}
	p.Maker = p.Maker.Public()
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, actorID uint, in CreateProductInput) (*models.Product, error) {
	makerID := in.MakerID
	if makerID == 0 {
		makerID = actorID
	}
	admin := viewerIsAdmin(ctx, s.isAdmin, actorID)
	if makerID != actorID && !admin {
		return nil, models.NewForbiddenError("Only admins can create products for other makers")
	}
	if in.IsFeatured && !admin {
		return nil, models.NewForbiddenError("Only admins can feature products")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Tagline:     strings.TrimSpace(in.Tagline),
		Description: in.Description,
		WebsiteURL:  strings.TrimSpace(in.WebsiteURL),
		LogoURL:     strings.TrimSpace(in.LogoURL),
		MakerID:     makerID,
		IsFeatured:  in.IsFeatured,
	}
	if err := validateProductFields(product); err != nil {
		return nil, err
	}
	status, err := s.resolveStatus(in.Status, makerID, admin)
	if err != nil {
		return nil, err
	}
	product.Status = status
	if status == models.ProductStatusPublished {
		now := s.now().UTC()
		product.LaunchedAt = &now
	}

	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	for _, t := range tags {
		product.Tags = append(product.Tags, models.ProductTag{Name: t})
	}
	images, err := buildProductImages(in.Images)
	if err != nil {
		return nil, err
	}
	product.Images = images

	product.Slug, err = uniqueSlug(ctx, product.Name, "product", s.products.SlugExists)
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	created, err := s.products.GetByID(ctx, product.ID, actorID)
	if err != nil {
		return nil, err
	}
	created.Maker = created.Maker.Public()
	if created.IsPublished() {
		publish(ctx, s.publisher, "products", notifications.EventInsert, productRecord(created))
	}
	return created, nil
}

// Update applies a partial update by the maker or an admin. Tags and images are
// replaced wholesale when present. The slug is kept so existing links survive renames.
func (s *ProductService) Update(ctx context.Context, actorID, productID uint, in UpdateProductInput) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, productID, actorID)
	if err != nil {
		return nil, err
	}
	if err := ensureOwnerOrAdmin(ctx, s.isAdmin, actorID, product.MakerID, "You can only edit your own products"); err != nil {
		return nil, err
	}
	admin := viewerIsAdmin(ctx, s.isAdmin, actorID)

	if in.Name != nil {
		product.Name = strings.TrimSpace(*in.Name)
	}
	if in.Tagline != nil {
		product.Tagline = strings.TrimSpace(*in.Tagline)
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.WebsiteURL != nil {
		product.WebsiteURL = strings.TrimSpace(*in.WebsiteURL)
	}
	if in.LogoURL != nil {
		product.LogoURL = strings.TrimSpace(*in.LogoURL)
	}
	if err := validateProductFields(product); err != nil {
		return nil, err
	}
	if in.IsFeatured != nil && *in.IsFeatured != product.IsFeatured {
		if !admin {
			return nil, models.NewForbiddenError("Only admins can feature products")
		}
		product.IsFeatured = *in.IsFeatured
	}
	if in.Status != nil {
		status, err := s.resolveStatus(*in.Status, product.MakerID, admin)
		if err != nil {
			return nil, err
		}
		product.Status = status
	}
	if product.IsPublished() && product.LaunchedAt == nil {
		now := s.now().UTC()
		product.LaunchedAt = &now
	}

	var assoc repository.ProductAssociations
	if in.Tags != nil {
		tags, err := validation.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		assoc.Tags = &tags
	}
	if in.Images != nil {
		images, err := buildProductImages(*in.Images)
		if err != nil {
			return nil, err
		}
		assoc.Images = &images
	}

	product.UpdatedAt = s.now().UTC()
	if err := s.products.Update(ctx, product, assoc); err != nil {
		return nil, err
	}

	updated, err := s.products.GetByID(ctx, productID, actorID)
	if err != nil {
		return nil, err
	}
	updated.Maker = updated.Maker.Public()
	if updated.IsPublished() {
		publish(ctx, s.publisher, "products", notifications.EventUpdate, productRecord(updated))
	}
	return updated, nil
}

// Delete removes the product with its comments, likes, bookmarks, tags and images.
func (s *ProductService) Delete(ctx context.Context, actorID, productID uint) error {
	product, err := s.products.GetByID(ctx, productID, 0)
	if err != nil {
		return err
	}
	if err := ensureOwnerOrAdmin(ctx, s.isAdmin, actorID, product.MakerID, "You can only delete your own products"); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	publish(ctx, s.publisher, "products", notifications.EventDelete, map[string]any{
		"id": product.ID, "maker_id": product.MakerID, "slug": product.Slug,
	})
	return nil
}

func (s *ProductService) resolveStatus(raw string, makerID uint, admin bool) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", models.ProductStatusPublished:
		return models.ProductStatusPublished, nil
	case models.ProductStatusDraft:
		if !admin && !s.flags.Enabled(featureflags.ProductDrafts, makerID) {
			return "", models.NewForbiddenError("Drafts are not enabled for this account")
		}
		return models.ProductStatusDraft, nil
	default:
		return "", models.NewValidationError("status must be draft or published")
	}
}

func validateProductFields(p *models.Product) error {
	if p.Name == "" {
		return models.NewValidationError("Name is required")
	}
	if utf8.RuneCountInString(p.Name) > maxProductNameLength {
		return models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", maxProductNameLength))
	}
	if p.Tagline == "" {
		return models.NewValidationError("Tagline is required")
	}
	if utf8.RuneCountInString(p.Tagline) > models.MaxTaglineLength {
		return models.NewValidationError(fmt.Sprintf("Tagline too long (max %d characters)", models.MaxTaglineLength))
	}
	if utf8.RuneCountInString(p.Description) > models.MaxDescription {
		return models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", models.MaxDescription))
	}
	if err := validation.ValidateURL(p.WebsiteURL); err != nil {
		return models.NewValidationError("website_url: " + err.Error())
	}
	if err := validation.ValidateMediaURL(p.LogoURL); err != nil {
		return models.NewValidationError("logo_url: " + err.Error())
	}
	return nil
}

func buildProductImages(in []ProductImageInput) ([]models.ProductImage, error) {
	if len(in) > models.MaxProductImages {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d images are allowed", models.MaxProductImages))
	}
	out := make([]models.ProductImage, 0, len(in))
	for i, img := range in {
		url := strings.TrimSpace(img.URL)
		if url == "" {
			return nil, models.NewValidationError("Image url is required")
		}
		if err := validation.ValidateMediaURL(url); err != nil {
			return nil, models.NewValidationError("images: " + err.Error())
		}
		out = append(out, models.ProductImage{URL: url, ImageHash: img.ImageHash, Position: i})
	}
	return out, nil
}

// uniqueSlug derives a slug from name and appends -2, -3, ... until it is free.
func uniqueSlug(ctx context.Context, name, fallback string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := validation.Slugify(name)
	if base == "" {
		base = fallback
	}
	for n := 1; n <= 100; n++ {
		candidate := base
		if n > 1 {
			suffix := fmt.Sprintf("-%d", n)
			if len(base)+len(suffix) > validation.MaxSlugLength {
				candidate = strings.TrimRight(base[:validation.MaxSlugLength-len(suffix)], "-") + suffix
			} else {
				candidate = base + suffix
			}
		}
		if validation.IsReservedSlug(candidate) {
			continue
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", models.NewConflictError("Could not allocate a unique slug")
}

func productRecord(p *models.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"slug":        p.Slug,
		"name":        p.Name,
		"maker_id":    p.MakerID,
		"status":      p.Status,
		"is_featured": p.IsFeatured,
	}
}

func scrubMakers(products []*models.Product) {
	for _, p := range products {
		p.Maker = p.Maker.Public()
	}
}

package repository

import (
	"context"
	"sort"
	"time"

	"launchpad/internal/cache"
	"launchpad/internal/models"
	"launchpad/internal/observability"

	"gorm.io/gorm"
)

// Product list sort orders.
const (
	SortNew      = "new"
	SortTop      = "top"
	SortTrending = "trending"
	SortFeatured = "featured"
)

// ProductFilter selects a page of products.
type ProductFilter struct {
	Sort          string
	Tag           string
	Query         string
	MakerID       uint
	IncludeDrafts bool
	ViewerID      uint
	Limit         int
	Offset        int
}

// ProductRepository defines product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter ProductFilter) ([]*models.Product, error)
	ListBookmarked(ctx context.Context, userID uint, limit int) ([]*models.Product, error)
	Update(ctx context.Context, product *models.Product, assoc ProductAssociations) error
	Delete(ctx context.Context, id uint) error
}

// ProductAssociations carries replacement tags and images for Update. A nil
// field leaves that association as it is.
type ProductAssociations struct {
	Tags   *[]string
	Images *[]models.ProductImage
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	defer observability.TrackQuery(ctx, "create", "products")()
	if err := r.db.WithContext(ctx).Omit("Maker").Create(product).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Product slug already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateProductsList(ctx)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Product, error) {
	var product models.Product
	load := func() error {
		return r.withAssociations(applyProductDetails(readDB(r.db).WithContext(ctx), viewerID)).
			First(&product, "products.id = ?", id).Error
	}

	var err error
	if viewerID == 0 {
		err = cache.Aside(ctx, cache.ProductKey(id), &product, cache.ProductTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, wrapLookup(err, "Product", id)
	}
	return &product, nil
}

func (r *productRepository) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Product, error) {
	var product models.Product
	err := r.withAssociations(applyProductDetails(readDB(r.db).WithContext(ctx), viewerID)).
		Where("products.slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, wrapLookup(err, "Product", slug)
	}
	return &product, nil
}

// SlugExists includes soft-deleted rows because the unique index does.
func (r *productRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// List returns one page of products. The anonymous first page of the default
// "new" listing is served from the list cache.
func (r *productRepository) List(ctx context.Context, f ProductFilter) ([]*models.Product, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	if f.Sort == "" {
		f.Sort = SortNew
	}

	var products []*models.Product
	query := func() error {
		defer observability.TrackQuery(ctx, "list", "products")()
		return r.listQuery(ctx, f).Find(&products).Error
	}

	var err error
	if f.cacheable() {
		err = cache.Aside(ctx, cache.ProductsListKey(ctx), &products, cache.ListTTL, query)
	} else {
		err = query()
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if f.Sort == SortTrending && r.db.Name() != "postgres" {
		now := time.Now()
		for _, p := range products {
			p.TrendingScore = models.TrendingScore(p.LikesCount, p.CommentsCount, p.CreatedAt, now)
		}
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].TrendingScore > products[j].TrendingScore
		})
	}
	return products, nil
}

func (f ProductFilter) cacheable() bool {
	return f.Sort == SortNew && f.Tag == "" && f.Query == "" && f.MakerID == 0 &&
		!f.IncludeDrafts && f.ViewerID == 0 && f.Offset == 0 && f.Limit == DefaultLimit
}

func (r *productRepository) listQuery(ctx context.Context, f ProductFilter) *gorm.DB {
	var extra []string
	if f.Sort == SortTrending && r.db.Name() == "postgres" {
		extra = append(extra, trendingScoreColumn)
	}
	db := applyProductDetails(readDB(r.db).WithContext(ctx), f.ViewerID, extra...)
	if !f.IncludeDrafts {
		db = db.Where("products.status = ?", models.ProductStatusPublished)
	}
	if f.MakerID != 0 {
		db = db.Where("products.maker_id = ?", f.MakerID)
	}
	if f.Tag != "" {
		db = db.Where("products.id IN (SELECT product_id FROM product_tags WHERE name = ?)", f.Tag)
	}
	if f.Query != "" {
		p := likePattern(f.Query)
		db = db.Where(`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.tagline) LIKE ? ESCAPE '\')`, p, p)
	}
	return r.withAssociations(r.applySort(db, f.Sort)).Limit(f.Limit).Offset(f.Offset)
}

// applySort appends the ORDER BY clause for the requested sort.
// PostgreSQL only accepts output aliases bare in ORDER BY, so the trending score
// is selected as its own column (see listQuery) rather than computed here.
func (r *productRepository) applySort(db *gorm.DB, order string) *gorm.DB {
	switch order {
	case SortTop:
		return db.Order("likes_count DESC").Order("products.created_at DESC")
	case SortTrending:
		if r.db.Name() == "postgres" {
			return db.Order("trending_score DESC").Order("products.created_at DESC")
		}
		return db.Order("likes_count DESC").Order("comments_count DESC").Order("products.created_at DESC")
	case SortFeatured:
		return db.Where("products.is_featured = ?", true).Order("products.created_at DESC")
	default:
		return db.Order("products.created_at DESC").Order("products.id DESC")
	}
}

const (
	productLikesCountExpr     = "(SELECT COUNT(*) FROM product_likes WHERE product_likes.product_id = products.id)"
	productCommentsCountExpr  = "(SELECT COUNT(*) FROM product_comments WHERE product_comments.product_id = products.id AND product_comments.deleted_at IS NULL)"
	productBookmarksCountExpr = "(SELECT COUNT(*) FROM product_bookmarks WHERE product_bookmarks.product_id = products.id)"

	trendingScoreColumn = "(" + productLikesCountExpr + " + 2 * " + productCommentsCountExpr + ")::float8 / " +
		"POWER(EXTRACT(EPOCH FROM (NOW() - products.created_at)) / 3600.0 + 2, 1.5) AS trending_score"
)

// applyProductDetails adds subqueries to fetch counts and viewer flags in a single query.
func applyProductDetails(db *gorm.DB, viewerID uint, extraColumns ...string) *gorm.DB {
	selectQuery := "products.*, " +
		productLikesCountExpr + " AS likes_count, " +
		productCommentsCountExpr + " AS comments_count, " +
		productBookmarksCountExpr + " AS bookmarks_count"
	for _, col := range extraColumns {
		selectQuery += ", " + col
	}

	db = db.Model(&models.Product{})
	if viewerID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM product_likes WHERE product_likes.product_id = products.id AND product_likes.user_id = ?) AS liked"+
			", EXISTS(SELECT 1 FROM product_bookmarks WHERE product_bookmarks.product_id = products.id AND product_bookmarks.user_id = ?) AS bookmarked",
			viewerID, viewerID)
	}
	return db.Select(selectQuery + ", false AS liked, false AS bookmarked")
}

func (r *productRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Maker").
		Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") }).
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") })
}

// ListBookmarked returns the user's bookmarked products, newest bookmark first.
func (r *productRepository) ListBookmarked(ctx context.Context, userID uint, limit int) ([]*models.Product, error) {
	limit, _ = clampPage(limit, 0)
	var products []*models.Product
	err := r.withAssociations(applyProductDetails(readDB(r.db).WithContext(ctx), userID)).
		Joins("JOIN product_bookmarks pb ON pb.product_id = products.id AND pb.user_id = ?", userID).
		Order("pb.created_at DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return products, nil
}

// Update writes the editable product columns and replaces the associations
// set in assoc, all in one transaction.
func (r *productRepository) Update(ctx context.Context, product *models.Product, assoc ProductAssociations) error {
	defer observability.TrackQuery(ctx, "update", "products")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(product).
			Select("name", "slug", "tagline", "description", "website_url", "logo_url", "status", "is_featured", "launched_at", "updated_at").
			Updates(product).Error
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Product slug already taken")
		}
		if err != nil {
			return err
		}
		if assoc.Tags != nil {
			if err := replaceTagsTx(tx, product.ID, *assoc.Tags); err != nil {
				return err
			}
		}
		if assoc.Images != nil {
			if err := replaceImagesTx(tx, product.ID, *assoc.Images); err != nil {
				return err
			}
		}
		return nil
	})
	if models.IsCode(err, models.CodeConflict) {
		return err
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateProduct(ctx, product.ID)
	return nil
}

func replaceTagsTx(tx *gorm.DB, productID uint, tags []string) error {
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductTag{}).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.ProductTag, 0, len(tags))
	for _, name := range tags {
		rows = append(rows, models.ProductTag{ProductID: productID, Name: name})
	}
	return tx.Create(&rows).Error
}

func replaceImagesTx(tx *gorm.DB, productID uint, images []models.ProductImage) error {
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	rows := make([]models.ProductImage, len(images))
	for i, img := range images {
		rows[i] = models.ProductImage{ProductID: productID, URL: img.URL, ImageHash: img.ImageHash, Position: i}
	}
	return tx.Create(&rows).Error
}

// Delete removes a product and everything hanging off it in one transaction.
func (r *productRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteProductsTx(tx, []uint{id})
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateProduct(ctx, id)
	return nil
}

// deleteProductsTx runs the product cascade: comment likes, comments, product likes,
// bookmarks, tags, images and finally the product rows.
func deleteProductsTx(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	steps := []struct {
		sql  string
		args []any
	}{
		{"DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM product_comments WHERE product_id IN ?)", []any{ids}},
		{"DELETE FROM product_comments WHERE product_id IN ?", []any{ids}},
		{"DELETE FROM product_likes WHERE product_id IN ?", []any{ids}},
		{"DELETE FROM product_bookmarks WHERE product_id IN ?", []any{ids}},
		{"DELETE FROM product_tags WHERE product_id IN ?", []any{ids}},
		{"DELETE FROM product_images WHERE product_id IN ?", []any{ids}},
	}
	for _, step := range steps {
		if err := tx.Exec(step.sql, step.args...).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Product{}).Error
}

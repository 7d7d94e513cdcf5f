package database

import "launchpad/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Product{},
		&models.ProductTag{},
		&models.ProductImage{},
		&models.ProductLike{},
		&models.Comment{},
		&models.CommentLike{},
		&models.ProductBookmark{},
		&models.Article{},
		&models.ArticleLike{},
		&models.ArticleBookmark{},
		&models.Follow{},
		&models.News{},
		&models.ContactMessage{},
		&models.Image{},
		&models.ImageVariant{},
	}
}

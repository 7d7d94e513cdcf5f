package models

import "time"

// ProductLike records a user liking a product.
type ProductLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_product_like_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_product_like_user_product;index" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentLike records a user liking a comment.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like_user_comment" json:"user_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_like_user_comment;index" json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ArticleLike records a user liking an article.
type ArticleLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_article_like_user_article" json:"user_id"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_article_like_user_article;index" json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductBookmark saves a product to a user's bookmarks.
type ProductBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_product_bookmark_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_product_bookmark_user_product;index" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ArticleBookmark saves an article to a user's bookmarks.
type ArticleBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_article_bookmark_user_article" json:"user_id"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_article_bookmark_user_article;index" json:"article_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow is a directed edge in the follow graph.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikeState is returned by like toggles and status reads.
type LikeState struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// FollowState is returned by follow mutations and status reads.
type FollowState struct {
	Following      bool  `json:"following"`
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

// BookmarkState is returned by bookmark toggles.
type BookmarkState struct {
	Bookmarked bool `json:"bookmarked"`
}

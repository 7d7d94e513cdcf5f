package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"launchpad/internal/database"
	"launchpad/internal/middleware"
	"launchpad/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Defaults used when an Options field is left zero.
const (
	DefaultUsers     = 25
	DefaultProducts  = 60
	DefaultArticles  = 8
	DefaultNews      = 12
	DefaultSeed      = 42
	DefaultMaxDays   = 90
	DefaultBatchSize = 100

	// DefaultPassword is shared by every seeded account.
	DefaultPassword = "Launchpad#2026"
)

// Options controls how much data a Seeder produces.
type Options struct {
	Users     int
	Products  int
	Articles  int
	News      int
	Seed      int64
	MaxDays   int
	BatchSize int
	Password  string

	// SkipBcrypt hashes with the minimum cost; tests use it.
	SkipBcrypt bool
	// DryRun builds everything and assigns synthetic IDs without writing.
	DryRun bool
	// Now anchors generated timestamps. Zero means time.Now.
	Now time.Time
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = DefaultUsers
	}
	if o.Products < 0 {
		o.Products = 0
	} else if o.Products == 0 {
		o.Products = DefaultProducts
	}
	if o.Articles <= 0 {
		o.Articles = DefaultArticles
	}
	if o.News <= 0 {
		o.News = DefaultNews
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.MaxDays <= 0 {
		o.MaxDays = DefaultMaxDays
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Summary counts what a run created.
type Summary struct {
	Users        int
	Products     int
	Tags         int
	Images       int
	Comments     int
	CommentLikes int
	Likes        int
	Bookmarks    int
	Follows      int
	Articles     int
	ArticleLikes int
	News         int
}

// Seeder writes a coherent demo dataset: the first user is an admin who
// authors the articles, everyone else makes products and engages with them.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	nextID  uint
}

// NewSeeder prepares a Seeder. The password is hashed once for all users.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	opts = opts.withDefaults()
	cost := bcrypt.DefaultCost
	if opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(opts.Seed, string(hash), opts.MaxDays, opts.Now),
		nextID:  1,
	}, nil
}

// Run generates and persists the dataset in a single transaction.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.DryRun {
		return s.generate(nil)
	}
	if s.db == nil {
		return nil, errors.New("seeder requires a database unless DryRun is set")
	}
	var summary *Summary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = s.generate(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", summary.Users),
		slog.Int("products", summary.Products),
		slog.Int("comments", summary.Comments),
		slog.Int("likes", summary.Likes),
		slog.Int("follows", summary.Follows),
		slog.Int("articles", summary.Articles),
		slog.Int("news", summary.News),
	)
	return summary, nil
}

func (s *Seeder) generate(tx *gorm.DB) (*Summary, error) {
	f := s.factory
	sum := &Summary{}

	users := make([]models.User, s.opts.Users)
	for i := range users {
		users[i] = f.User(i + 1)
	}
	users[0].IsAdmin = true
	if err := insertAll(s, tx, users, func(u *models.User) *uint { return &u.ID }); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	sum.Users = len(users)

	follows := make([]models.Follow, 0)
	for i := range users {
		for _, j := range f.pick(len(users), f.intn(6), i) {
			follows = append(follows, models.Follow{FollowerID: users[i].ID, FollowingID: users[j].ID, CreatedAt: f.backdate()})
		}
	}
	if err := insertAll(s, tx, follows, func(r *models.Follow) *uint { return &r.ID }); err != nil {
		return nil, fmt.Errorf("seed follows: %w", err)
	}
	sum.Follows = len(follows)

	products := make([]models.Product, s.opts.Products)
	for i := range products {
		products[i] = f.Product(users[f.intn(len(users))].ID, i+1)
		sum.Tags += len(products[i].Tags)
		sum.Images += len(products[i].Images)
	}
	if err := insertAll(s, tx, products, func(p *models.Product) *uint { return &p.ID }, "Maker"); err != nil {
		return nil, fmt.Errorf("seed products: %w", err)
	}
	sum.Products = len(products)

	var likes []models.ProductLike
	var bookmarks []models.ProductBookmark
	var roots []models.Comment
	for _, p := range products {
		for _, j := range f.pick(len(users), f.intn(len(users)/2+1), -1) {
			likes = append(likes, models.ProductLike{UserID: users[j].ID, ProductID: p.ID, CreatedAt: f.backdate()})
		}
		for _, j := range f.pick(len(users), f.intn(4), -1) {
			bookmarks = append(bookmarks, models.ProductBookmark{UserID: users[j].ID, ProductID: p.ID, CreatedAt: f.backdate()})
		}
		for k := f.intn(4); k > 0; k-- {
			roots = append(roots, f.Comment(p.ID, users[f.intn(len(users))].ID, nil))
		}
	}
	if err := insertAll(s, tx, likes, func(r *models.ProductLike) *uint { return &r.ID }); err != nil {
		return nil, fmt.Errorf("seed likes: %w", err)
	}
	if err := insertAll(s, tx, bookmarks, func(r *models.ProductBookmark) *uint { return &r.ID }); err != nil {
		return nil, fmt.Errorf("seed bookmarks: %w", err)
	}
	if err := insertAll(s, tx, roots, func(c *models.Comment) *uint { return &c.ID }, "User"); err != nil {
		return nil, fmt.Errorf("seed comments: %w", err)
	}
	sum.Likes, sum.Bookmarks = len(likes), len(bookmarks)

	// Replies hang off roots only; threads are one level deep.
	var replies []models.Comment
	for i := range roots {
		for k := f.intn(3); k > 0; k-- {
			parent := roots[i].ID
			replies = append(replies, f.Comment(roots[i].ProductID, users[f.intn(len(users))].ID, &parent))
		}
	}
	if err := insertAll(s, tx, replies, func(c *models.Comment) *uint { return &c.ID }, "User"); err != nil {
		return nil, fmt.Errorf("seed replies: %w", err)
	}
	sum.Comments = len(roots) + len(replies)

	var commentLikes []models.CommentLike
	for _, c := range append(roots, replies...) {
		for _, j := range f.pick(len(users), f.intn(3), -1) {
			commentLikes = append(commentLikes, models.CommentLike{UserID: users[j].ID, CommentID: c.ID, CreatedAt: f.backdate()})
		}
	}
	if err := insertAll(s, tx, commentLikes, func(r *models.CommentLike) *uint { return &r.ID }); err != nil {
		return nil, fmt.Errorf("seed comment likes: %w", err)
	}
	sum.CommentLikes = len(commentLikes)

	articles := make([]models.Article, s.opts.Articles)
	for i := range articles {
		articles[i] = f.Article(users[0].ID, i+1)
	}
	if err := insertAll(s, tx, articles, func(a *models.Article) *uint { return &a.ID }, "Author"); err != nil {
		return nil, fmt.Errorf("seed articles: %w", err)
	}
	sum.Articles = len(articles)

	var articleLikes []models.ArticleLike
	for _, a := range articles {
		for _, j := range f.pick(len(users), f.intn(len(users)/3+1), -1) {
			articleLikes = append(articleLikes, models.ArticleLike{UserID: users[j].ID, ArticleID: a.ID, CreatedAt: f.backdate()})
		}
	}
	if err := insertAll(s, tx, articleLikes, func(r *models.ArticleLike) *uint { return &r.ID }); err != nil {
		return nil, fmt.Errorf("seed article likes: %w", err)
	}
	sum.ArticleLikes = len(articleLikes)

	news := make([]models.News, s.opts.News)
	for i := range news {
		news[i] = f.News(i + 1)
	}
	if err := insertAll(s, tx, news, func(n *models.News) *uint { return &n.ID }); err != nil {
		return nil, fmt.Errorf("seed news: %w", err)
	}
	sum.News = len(news)

	return sum, nil
}

// insertAll writes rows in batches, or hands out synthetic IDs in dry runs.
func insertAll[T any](s *Seeder, tx *gorm.DB, rows []T, id func(*T) *uint, omit ...string) error {
	if len(rows) == 0 {
		return nil
	}
	if tx == nil {
		for i := range rows {
			*id(&rows[i]) = s.nextID
			s.nextID++
		}
		return nil
	}
	q := tx
	if len(omit) > 0 {
		q = q.Omit(omit...)
	}
	return q.CreateInBatches(rows, s.opts.BatchSize).Error
}

// ClearData removes every row from the application tables.
func ClearData(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	registered := database.PersistentModels()

	if db.Dialector.Name() == "postgres" {
		tables := make([]string, 0, len(registered))
		for _, m := range registered {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(m); err != nil {
				return fmt.Errorf("resolve table for %T: %w", m, err)
			}
			tables = append(tables, stmt.Schema.Table)
		}
		sql := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
		return db.Exec(sql).Error
	}

	// Children first.
	for i := len(registered) - 1; i >= 0; i-- {
		err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(registered[i]).Error
		if err != nil {
			return fmt.Errorf("clear %T: %w", registered[i], err)
		}
	}
	return nil
}

// WelcomeNewsTitle identifies the built-in announcement.
const WelcomeNewsTitle = "Welcome to Launchpad"

// BuiltIns creates the permanent content every install carries. It is idempotent.
func BuiltIns(ctx context.Context, db *gorm.DB) error {
	now := time.Now()
	welcome := models.News{
		Title:       WelcomeNewsTitle,
		Summary:     "Discover new products, follow makers and share what you are building.",
		Content:     "Launchpad is where makers launch. Post your product, collect feedback and follow the builders you admire.",
		Published:   true,
		PublishedAt: &now,
	}
	err := db.WithContext(ctx).
		Where(models.News{Title: WelcomeNewsTitle}).
		FirstOrCreate(&welcome).Error
	if err != nil {
		return fmt.Errorf("seed welcome news: %w", err)
	}
	return nil
}

// Package seed populates a database with demo data for development and tests.
// Output is deterministic for a given seed, apart from timestamps which are
// relative to the factory's clock.
package seed

import (
	"fmt"
	"strings"
	"time"

	"launchpad/internal/models"
	"launchpad/internal/service"
	"launchpad/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// tagCatalog is the pool product tags are drawn from.
var tagCatalog = []string{
	"productivity", "developer-tools", "design", "ai", "marketing",
	"fintech", "health", "education", "remote-work", "open-source",
	"saas", "mobile", "analytics", "no-code", "security",
}

// Factory builds unsaved domain entities. It never touches the database.
type Factory struct {
	faker        *gofakeit.Faker
	now          time.Time
	maxDays      int
	passwordHash string
}

// NewFactory returns a Factory whose content is fully determined by seed.
func NewFactory(seed int64, passwordHash string, maxDays int, now time.Time) *Factory {
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	return &Factory{
		faker:        gofakeit.New(seed),
		now:          now,
		maxDays:      maxDays,
		passwordHash: passwordHash,
	}
}

// intn returns a value in [0, n).
func (f *Factory) intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// pick returns up to k distinct indexes from [0, n), skipping exclude.
func (f *Factory) pick(n, k int, exclude int) []int {
	pool := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != exclude {
			pool = append(pool, i)
		}
	}
	f.faker.ShuffleInts(pool)
	if k > len(pool) {
		k = len(pool)
	}
	return pool[:k]
}

// backdate spreads timestamps over the last maxDays.
func (f *Factory) backdate() time.Time {
	minutes := f.intn(f.maxDays * 24 * 60)
	return f.now.Add(-time.Duration(minutes) * time.Minute)
}

// User builds the n-th user. Usernames and emails carry n so they stay unique.
func (f *Factory) User(n int) models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	suffix := fmt.Sprintf("_%d", n)
	base := usernameSafe(strings.ToLower(first + "_" + last))
	if limit := 30 - len(suffix); len(base) > limit {
		base = base[:limit]
	}
	if base == "" {
		base = "maker"
	}
	username := base + suffix
	created := f.backdate()

	return models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  f.passwordHash,
		FullName:  first + " " + last,
		Bio:       f.faker.HipsterSentence(10),
		AvatarURL: fmt.Sprintf("https://picsum.photos/seed/%s/256/256", username),
		Website:   "https://" + f.faker.DomainName(),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Product builds the n-th product with tags and gallery images.
func (f *Factory) Product(makerID uint, n int) models.Product {
	name := f.faker.AppName()
	slug := validation.Slugify(name)
	if slug == "" {
		slug = "product"
	}
	launched := f.backdate()

	tagline := f.faker.HackerPhrase()
	if len(tagline) > models.MaxTaglineLength {
		tagline = strings.TrimSpace(tagline[:models.MaxTaglineLength])
	}

	raw := make([]string, 0, 3)
	for _, i := range f.pick(len(tagCatalog), 1+f.intn(3), -1) {
		raw = append(raw, tagCatalog[i])
	}
	names, _ := validation.NormalizeTags(raw)
	tags := make([]models.ProductTag, 0, len(names))
	for _, tag := range names {
		tags = append(tags, models.ProductTag{Name: tag, CreatedAt: launched})
	}

	gallery := 1 + f.intn(3)
	images := make([]models.ProductImage, 0, gallery)
	for pos := 0; pos < gallery; pos++ {
		images = append(images, models.ProductImage{
			URL:       fmt.Sprintf("https://picsum.photos/seed/%s-%d/1200/800", slug, pos),
			Position:  pos,
			CreatedAt: launched,
		})
	}

	return models.Product{
		Name:        name,
		Slug:        fmt.Sprintf("%s-%d", slug, n),
		Tagline:     tagline,
		Description: f.faker.Paragraph(2, 4, 12, "\n\n"),
		WebsiteURL:  "https://" + f.faker.DomainName(),
		LogoURL:     fmt.Sprintf("https://picsum.photos/seed/%s-logo/240/240", slug),
		MakerID:     makerID,
		Status:      models.ProductStatusPublished,
		IsFeatured:  f.intn(8) == 0,
		LaunchedAt:  &launched,
		Tags:        tags,
		Images:      images,
		CreatedAt:   launched,
		UpdatedAt:   launched,
	}
}

// Comment builds a comment; parentID nil makes it a thread root.
func (f *Factory) Comment(productID, userID uint, parentID *uint) models.Comment {
	created := f.backdate()
	return models.Comment{
		ProductID: productID,
		UserID:    userID,
		ParentID:  parentID,
		Content:   f.faker.Sentence(6 + f.intn(14)),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Article builds the n-th published article.
func (f *Factory) Article(authorID uint, n int) models.Article {
	title := strings.TrimSuffix(f.faker.Sentence(6), ".")
	content := f.faker.Paragraph(5, 5, 14, "\n\n")
	published := f.backdate()
	return models.Article{
		Title:           title,
		Slug:            fmt.Sprintf("%s-%d", validation.Slugify(title), n),
		Excerpt:         f.faker.Sentence(18),
		Content:         content,
		CoverImageURL:   fmt.Sprintf("https://picsum.photos/seed/article-%d/1600/900", n),
		AuthorID:        authorID,
		Published:       true,
		PublishedAt:     &published,
		ReadTimeMinutes: service.ReadTimeMinutes(content),
		CreatedAt:       published,
		UpdatedAt:       published,
	}
}

// News builds the n-th published news item.
func (f *Factory) News(n int) models.News {
	published := f.backdate()
	return models.News{
		Title:       fmt.Sprintf("%s launches %s", f.faker.Company(), f.faker.BuzzWord()),
		Summary:     f.faker.Sentence(20),
		Content:     f.faker.Paragraph(2, 3, 12, "\n\n"),
		SourceURL:   f.faker.URL(),
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/news-%d/1200/630", n),
		Published:   true,
		PublishedAt: &published,
		CreatedAt:   published,
		UpdatedAt:   published,
	}
}

func usernameSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

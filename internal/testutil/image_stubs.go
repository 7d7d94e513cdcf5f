// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"launchpad/internal/models"
	"launchpad/internal/repository"
)

// ImageRepoStub is an in-memory repository.ImageRepository for tests.
type ImageRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.Image
	nextID uint
}

// NewImageRepoStub creates an in-memory image repository stub for tests.
func NewImageRepoStub() *ImageRepoStub {
	return &ImageRepoStub{items: make(map[string]*models.Image), nextID: 1}
}

var _ repository.ImageRepository = (*ImageRepoStub)(nil)

// Create stores image metadata in memory.
func (s *ImageRepoStub) Create(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[img.Hash]; ok {
		*img = *existing
		return nil
	}
	img.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	img.CreatedAt = now
	img.UpdatedAt = now
	stored := *img
	s.items[img.Hash] = &stored
	return nil
}

// GetByHash returns a copy of the stored image.
func (s *ImageRepoStub) GetByHash(_ context.Context, hash string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[hash]
	if !ok {
		return nil, models.NewNotFoundError("Image", hash)
	}
	out := *item
	out.Variants = append([]models.ImageVariant(nil), item.Variants...)
	return &out, nil
}

// Touch sets LastAccessedAt.
func (s *ImageRepoStub) Touch(_ context.Context, imageID uint) error {
	return s.update(imageID, func(item *models.Image) {
		now := time.Now().UTC()
		item.LastAccessedAt = &now
	})
}

// SaveVariant replaces or appends the (size, format) variant.
func (s *ImageRepoStub) SaveVariant(_ context.Context, v *models.ImageVariant) error {
	return s.update(v.ImageID, func(item *models.Image) {
		for i := range item.Variants {
			if item.Variants[i].SizePx == v.SizePx && item.Variants[i].Format == v.Format {
				item.Variants[i] = *v
				return
			}
		}
		item.Variants = append(item.Variants, *v)
	})
}

// ClaimNextQueued marks and returns the queued image with the lowest id.
func (s *ImageRepoStub) ClaimNextQueued(_ context.Context) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *models.Image
	for _, item := range s.items {
		if item.Status == models.ImageStatusQueued && (next == nil || item.ID < next.ID) {
			next = item
		}
	}
	if next == nil {
		return nil, repository.ErrNoQueuedImage
	}
	next.Status = models.ImageStatusProcessing
	next.ProcessingAttempts++
	out := *next
	return &out, nil
}

// Finish marks an image ready or failed.
func (s *ImageRepoStub) Finish(_ context.Context, imageID uint, jobErr error) error {
	return s.update(imageID, func(item *models.Image) {
		item.Status = models.ImageStatusReady
		item.Error = ""
		if jobErr != nil {
			item.Status = models.ImageStatusFailed
			item.Error = jobErr.Error()
		}
	})
}

// RequeueStale is a no-op for the in-memory stub.
func (s *ImageRepoStub) RequeueStale(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (s *ImageRepoStub) update(imageID uint, fn func(*models.Image)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == imageID {
			fn(item)
			return nil
		}
	}
	return models.NewNotFoundError("Image", imageID)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: uint8(x % 256), G: 90, B: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

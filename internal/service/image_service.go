package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"launchpad/internal/config"
	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/observability"
	"launchpad/internal/repository"
	"launchpad/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultImageUploadDir       = "/tmp/launchpad/media"
	DefaultImageMaxUploadSizeMB = 10

	imagePollInterval = 2 * time.Second
	imageStaleAfter   = 15 * time.Minute
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService owns the media bucket: uploads are normalized into a master
// immediately and a background worker renders the size variants.
type ImageService struct {
	repo               repository.ImageRepository
	bucket             *storage.Bucket
	maxUploadSizeBytes int64
	workerOnce         sync.Once
}

func NewImageService(repo repository.ImageRepository, cfg *config.Config) *ImageService {
	uploadDir := DefaultImageUploadDir
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil {
		if cfg.ImageUploadDir != "" {
			uploadDir = cfg.ImageUploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}
	return &ImageService{
		repo:               repo,
		bucket:             storage.NewBucket(uploadDir),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Bucket exposes the underlying storage for serving files.
func (s *ImageService) Bucket() *storage.Bucket {
	return s.bucket
}

// Upload validates and stores the master renditions and queues variant generation.
// Uploading the same bytes twice returns the existing record.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*models.Image, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	master, err := storage.PrepareMaster(in.Content, in.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			return nil, models.NewValidationError("Invalid image type")
		case errors.Is(err, storage.ErrDecode):
			return nil, models.NewValidationError("Invalid image file")
		case errors.Is(err, storage.ErrTypeMismatch):
			return nil, models.NewValidationError("Image content type mismatch")
		default:
			return nil, models.NewInternalError(err)
		}
	}

	hash := storage.ContentHash(in.UserID, master.JPEG)
	existing, err := s.repo.GetByHash(ctx, hash)
	if err == nil {
		return existing, nil
	}
	if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}

	jpgRel, err := s.bucket.Write(hash, "master.jpg", master.JPEG)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if _, err := s.bucket.Write(hash, "master.webp", master.WebP); err != nil {
		_ = s.bucket.RemoveAll(hash)
		return nil, models.NewInternalError(err)
	}

	record := &models.Image{
		Hash:             hash,
		UserID:           in.UserID,
		OriginalFilename: in.Filename,
		MimeType:         "image/jpeg",
		SizeBytes:        int64(len(master.JPEG)),
		Width:            master.Width,
		Height:           master.Height,
		OriginalPath:     jpgRel,
		Status:           models.ImageStatusQueued,
		CropMode:         master.Crop.Mode,
		CropX:            master.Crop.X,
		CropY:            master.Crop.Y,
		CropW:            master.Crop.W,
		CropH:            master.Crop.H,
		UploadedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		_ = s.bucket.RemoveAll(hash)
		return nil, err
	}
	return record, nil
}

// Get returns the image with its variants.
func (s *ImageService) Get(ctx context.Context, hash string) (*models.Image, error) {
	if !storage.IsValidHash(hash) {
		return nil, models.NewValidationError("Invalid image hash")
	}
	return s.repo.GetByHash(ctx, hash)
}

// ResolveForServing maps hash/file to a path on disk. Missing variants fall
// back to the master of the same format so links work before the worker runs.
func (s *ImageService) ResolveForServing(ctx context.Context, hash, file string) (*models.Image, string, error) {
	if !storage.IsValidHash(hash) || !storage.IsValidFileName(file) {
		return nil, "", models.NewValidationError("Invalid media path")
	}
	img, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	name := file
	if !s.bucket.Exists(hash, name) {
		name = "master.jpg"
		if strings.HasSuffix(file, ".webp") {
			name = "master.webp"
		}
	}
	full, err := s.bucket.Path(hash, name)
	if err != nil {
		return nil, "", models.NewValidationError("Invalid media path")
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return nil, "", models.NewNotFoundError("Image", hash)
		}
		return nil, "", models.NewInternalError(err)
	}
	return img, full, nil
}

// Touch records a read; failures are only logged.
func (s *ImageService) Touch(ctx context.Context, imageID uint) {
	if imageID == 0 {
		return
	}
	if err := s.repo.Touch(ctx, imageID); err != nil {
		observability.LogAsyncOperationError(ctx, middleware.Logger, "image_touch", err, slog.Uint64("image_id", uint64(imageID)))
	}
}

func (s *ImageService) BuildMasterURL(hash string) string {
	return fmt.Sprintf("/media/i/%s/master.jpg", hash)
}

func (s *ImageService) BuildVariantURL(hash string, size int, format string) string {
	return fmt.Sprintf("/media/i/%s/%d.%s", hash, size, format)
}

// BuildVariantsMap keys each variant URL by "<size>_<format>".
func (s *ImageService) BuildVariantsMap(hash string, variants []models.ImageVariant) map[string]string {
	m := make(map[string]string, len(variants))
	for _, v := range variants {
		m[fmt.Sprintf("%d_%s", v.SizePx, v.Format)] = s.BuildVariantURL(hash, v.SizePx, v.Format)
	}
	return m
}

// StartBackgroundWorker launches the variant worker once per service.
func (s *ImageService) StartBackgroundWorker(ctx context.Context) {
	s.workerOnce.Do(func() {
		go s.workerLoop(ctx)
	})
}

func (s *ImageService) workerLoop(ctx context.Context) {
	s.requeueStale(ctx)
	lastRequeue := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}
		if time.Since(lastRequeue) >= time.Minute {
			s.requeueStale(ctx)
			lastRequeue = time.Now()
		}

		processed, err := s.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			observability.LogAsyncOperationError(ctx, middleware.Logger, "image_worker", err)
		}
		if processed {
			continue
		}
		if !sleepContext(ctx, imagePollInterval) {
			return
		}
	}
}

func (s *ImageService) requeueStale(ctx context.Context) {
	n, err := s.repo.RequeueStale(ctx, imageStaleAfter)
	if err != nil {
		observability.LogAsyncOperationError(ctx, middleware.Logger, "image_requeue", err)
		return
	}
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "Requeued stale image jobs", slog.Int64("count", n))
	}
}

// ProcessNext claims one queued image and renders its variants. It reports
// whether an image was claimed.
func (s *ImageService) ProcessNext(ctx context.Context) (bool, error) {
	img, err := s.repo.ClaimNextQueued(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoQueuedImage) {
			return false, nil
		}
		return false, err
	}
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "ImageService", "ProcessNext")
	defer span.End()

	jobErr := s.renderVariants(ctx, img)
	result := "ready"
	if jobErr != nil {
		result = "failed"
	}
	observability.ImageJobsTotal.WithLabelValues(result).Inc()
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("image.hash", img.Hash),
		attribute.String("image.result", result),
	)
	observability.RecordErrorInContext(ctx, jobErr)
	if err := s.repo.Finish(ctx, img.ID, jobErr); err != nil {
		return true, fmt.Errorf("finish image %d: %w", img.ID, err)
	}
	return true, nil
}

func (s *ImageService) renderVariants(ctx context.Context, img *models.Image) error {
	masterPath, err := s.bucket.Path(img.Hash, "master.jpg")
	if err != nil {
		return err
	}
	// #nosec G304: masterPath is built from a validated hash
	masterJPEG, err := os.ReadFile(masterPath)
	if err != nil {
		return err
	}
	renditions, err := storage.Renditions(masterJPEG)
	if err != nil {
		return err
	}

	for _, r := range renditions {
		for _, enc := range []struct {
			format string
			data   []byte
		}{{"webp", r.WebP}, {"jpg", r.JPEG}} {
			rel, err := s.bucket.Write(img.Hash, fmt.Sprintf("%d.%s", r.SizePx, enc.format), enc.data)
			if err != nil {
				return err
			}
			if err := s.repo.SaveVariant(ctx, &models.ImageVariant{
				ImageID:  img.ID,
				SizeName: storage.SizeName(r.SizePx),
				SizePx:   r.SizePx,
				Format:   enc.format,
				Path:     rel,
				Width:    r.Width,
				Height:   r.Height,
				Bytes:    int64(len(enc.data)),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

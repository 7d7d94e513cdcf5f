package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"launchpad/internal/config"
	"launchpad/internal/models"
	"launchpad/internal/observability"
	"launchpad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newImageService(t *testing.T) (*ImageService, *testutil.ImageRepoStub, string) {
	t.Helper()
	dir := t.TempDir()
	repo := testutil.NewImageRepoStub()
	return NewImageService(repo, &config.Config{ImageUploadDir: dir, ImageMaxUploadSizeMB: 1}), repo, dir
}

func TestImageUploadValidation(t *testing.T) {
	t.Parallel()
	svc, _, _ := newImageService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadImageInput{Content: testutil.TinyPNG(t, 10, 10)})
	assertUnauthorizedError(t, err)
	_, err = svc.Upload(ctx, UploadImageInput{UserID: 1})
	assertValidationError(t, err)
	_, err = svc.Upload(ctx, UploadImageInput{UserID: 1, Content: make([]byte, 2*1024*1024)})
	assertValidationError(t, err)
	_, err = svc.Upload(ctx, UploadImageInput{UserID: 1, Content: []byte("plain text, not an image")})
	assertValidationError(t, err)
	_, err = svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 10, 10), ContentType: "image/gif"})
	assertValidationError(t, err)
}

func TestImageUploadWritesMasterAndDedupes(t *testing.T) {
	t.Parallel()
	svc, _, dir := newImageService(t)
	ctx := context.Background()
	png := testutil.TinyPNG(t, 400, 400)

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 5, Filename: "logo.png", ContentType: "image/png", Content: png})
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusQueued, img.Status)
	assert.Equal(t, "square", img.CropMode)
	assert.Equal(t, 400, img.Width)
	assert.FileExists(t, filepath.Join(dir, img.Hash, "master.jpg"))
	assert.FileExists(t, filepath.Join(dir, img.Hash, "master.webp"))

	again, err := svc.Upload(ctx, UploadImageInput{UserID: 5, ContentType: "image/png", Content: png})
	require.NoError(t, err)
	assert.Equal(t, img.ID, again.ID)

	other, err := svc.Upload(ctx, UploadImageInput{UserID: 6, ContentType: "image/png", Content: png})
	require.NoError(t, err)
	assert.NotEqual(t, img.Hash, other.Hash, "hash is scoped to the uploader")
}

func TestImageProcessNextRendersVariants(t *testing.T) {
	t.Parallel()
	svc, repo, dir := newImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 700, 700)})
	require.NoError(t, err)

	processed, err := svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed, "queue is empty")

	stored, err := repo.GetByHash(ctx, img.Hash)
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusReady, stored.Status)
	// 256 and 640 fit inside a 700px master, 1080 does not.
	assert.Len(t, stored.Variants, 4)
	assert.FileExists(t, filepath.Join(dir, img.Hash, "256.webp"))
	assert.FileExists(t, filepath.Join(dir, img.Hash, "640.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, img.Hash, "1080.jpg"))

	urls := svc.BuildVariantsMap(img.Hash, stored.Variants)
	assert.Equal(t, "/media/i/"+img.Hash+"/256.webp", urls["256_webp"])
}

func TestImageProcessNextMarksFailures(t *testing.T) {
	t.Parallel()
	svc, repo, dir := newImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, img.Hash, "master.jpg")))

	processed, err := svc.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := repo.GetByHash(ctx, img.Hash)
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestResolveForServing(t *testing.T) {
	t.Parallel()
	svc, _, dir := newImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)

	_, _, err = svc.ResolveForServing(ctx, "../etc", "master.jpg")
	assertValidationError(t, err)
	_, _, err = svc.ResolveForServing(ctx, img.Hash, "passwd")
	assertValidationError(t, err)
	_, _, err = svc.ResolveForServing(ctx, "abcdef", "master.jpg")
	assertNotFoundError(t, err)

	_, path, err := svc.ResolveForServing(ctx, img.Hash, "master.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, img.Hash, "master.jpg"), path)

	// Variants that are not rendered yet fall back to the master.
	_, path, err = svc.ResolveForServing(ctx, img.Hash, "640.webp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, img.Hash, "master.webp"), path)
}

func TestImageWorkerStopsOnCancel(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newImageService(t)
	ctx, cancel := context.WithCancel(context.Background())

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)

	svc.StartBackgroundWorker(ctx)
	svc.StartBackgroundWorker(ctx)

	assert.Eventually(t, func() bool {
		stored, err := repo.GetByHash(context.Background(), img.Hash)
		return err == nil && stored.Status == models.ImageStatusReady
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
}

func TestImageProcessNextIsTracedPerClaimedJob(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("image-worker-test")
	t.Cleanup(func() { observability.Tracer = prev })

	svc, _, dir := newImageService(t)
	ctx := context.Background()

	processed, err := svc.ProcessNext(ctx)
	require.NoError(t, err)
	require.False(t, processed)
	assert.Empty(t, rec.Ended(), "idle polls are not traced")

	img, err := svc.Upload(ctx, UploadImageInput{UserID: 1, Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, img.Hash, "master.jpg")))
	processed, err = svc.ProcessNext(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	var job sdktrace.ReadOnlySpan
	for _, span := range rec.Ended() {
		if span.Name() == "ImageService.ProcessNext" {
			job = span
		}
	}
	require.NotNil(t, job)
	assert.Contains(t, job.Attributes(), attribute.String("image.hash", img.Hash))
	assert.Contains(t, job.Attributes(), attribute.String("image.result", "failed"))
	assert.Equal(t, codes.Error, job.Status().Code)
}

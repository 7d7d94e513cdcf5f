package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"launchpad/internal/config"
	"launchpad/internal/service"
	"launchpad/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

func multipartImage(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, writeErr := part.Write(content); writeErr != nil {
		t.Fatalf("write image bytes: %v", writeErr)
	}
	if closeErr := writer.Close(); closeErr != nil {
		t.Fatalf("close writer: %v", closeErr)
	}
	return &body, writer.FormDataContentType()
}

func TestUploadAndServeImage(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 10}
	repo := testutil.NewImageRepoStub()
	s := &Server{config: cfg, imageService: service.NewImageService(repo, cfg)}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Post("/api/images/upload", s.UploadImage)
	app.Get("/api/images/:hash/status", s.GetImageStatus)
	app.Get("/media/i/:hash/:file", s.ServeMedia)

	body, contentType := multipartImage(t, "image", "img.png", testutil.TinyPNG(t, 40, 40))
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, reqErr := app.Test(req)
	if reqErr != nil {
		t.Fatalf("upload request failed: %v", reqErr)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var uploaded ImageUploadResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&uploaded); decodeErr != nil {
		t.Fatalf("decode upload response: %v", decodeErr)
	}
	if uploaded.Hash == "" || uploaded.URL == "" {
		t.Fatalf("unexpected upload response: %+v", uploaded)
	}
	if !strings.HasPrefix(uploaded.URL, "/media/i/") {
		t.Fatalf("expected relative image URL, got %q", uploaded.URL)
	}

	statusResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/images/"+uploaded.Hash+"/status", nil))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer func() { _ = statusResp.Body.Close() }()
	var status ImageStatusResponse
	if decodeErr := json.NewDecoder(statusResp.Body).Decode(&status); decodeErr != nil {
		t.Fatalf("decode status response: %v", decodeErr)
	}
	if status.Status != uploaded.Status || status.URL != uploaded.URL {
		t.Fatalf("status does not match upload: %+v vs %+v", status, uploaded)
	}

	serveResp, err := app.Test(httptest.NewRequest(http.MethodGet, uploaded.URL, nil))
	if err != nil {
		t.Fatalf("serve request failed: %v", err)
	}
	defer func() { _ = serveResp.Body.Close() }()
	if serveResp.StatusCode != http.StatusOK {
		t.Fatalf("expected serve 200, got %d", serveResp.StatusCode)
	}
	if cc := serveResp.Header.Get(fiber.HeaderCacheControl); !strings.Contains(cc, "immutable") {
		t.Fatalf("expected immutable cache control, got %q", cc)
	}

	// A variant that has not been rendered yet falls back to the master.
	variantResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/media/i/"+uploaded.Hash+"/256.webp", nil))
	if err != nil {
		t.Fatalf("variant request failed: %v", err)
	}
	defer func() { _ = variantResp.Body.Close() }()
	if variantResp.StatusCode != http.StatusOK {
		t.Fatalf("expected variant fallback 200, got %d", variantResp.StatusCode)
	}
}

func TestUploadImageMissingFile(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 10}
	repo := testutil.NewImageRepoStub()
	s := &Server{config: cfg, imageService: service.NewImageService(repo, cfg)}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Post("/api/images/upload", s.UploadImage)

	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadImage_RoutesThroughAuthAndBucket(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db, "alice")

	body, contentType := multipartImage(t, "image", "logo.png", testutil.TinyPNG(t, 64, 48))
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", resp.StatusCode)
	}

	body, contentType = multipartImage(t, "image", "logo.png", testutil.TinyPNG(t, 64, 48))
	req = httptest.NewRequest(http.MethodPost, "/api/images/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, alice.ID))
	resp, err = ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var uploaded ImageUploadResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&uploaded); decodeErr != nil {
		t.Fatalf("decode upload response: %v", decodeErr)
	}

	// Media is public: no token needed to read it back.
	mediaResp, _ := ts.do(t, http.MethodGet, uploaded.URL, "", nil)
	if mediaResp.StatusCode != http.StatusOK {
		t.Fatalf("expected media 200, got %d", mediaResp.StatusCode)
	}

	badResp, _ := ts.do(t, http.MethodGet, "/media/i/not-a-hash/master.jpg", "", nil)
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed hash, got %d", badResp.StatusCode)
	}
}

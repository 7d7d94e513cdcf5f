package server

import (
	"io"
	"strings"

	"launchpad/internal/models"
	"launchpad/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ImageUploadResponse is the API response after uploading an image.
type ImageUploadResponse struct {
	ID        uint              `json:"id"`
	Hash      string            `json:"hash"`
	Status    string            `json:"status"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	CropMode  string            `json:"crop_mode"`
	SizeBytes int64             `json:"size_bytes"`
	MimeType  string            `json:"mime_type"`
	URL       string            `json:"url"`
	Variants  map[string]string `json:"variants"`
}

// ImageStatusResponse is the API response for image status/polling.
type ImageStatusResponse struct {
	Status   string            `json:"status"`
	CropMode string            `json:"crop_mode"`
	URL      string            `json:"url"`
	Variants map[string]string `json:"variants"`
	Error    string            `json:"error,omitempty"`
}

// UploadImage handles POST /api/images/upload
// @Summary Upload an image to the media bucket
// @Description Accepts jpeg, png, gif or webp in the "image" form field. Variants are rendered in the background.
// @Tags images
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param image formData file true "Image file"
// @Success 200 {object} ImageUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /images/upload [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      currentUserID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respond(c, err)
	}

	return c.JSON(toImageUploadResponse(s.imageService, uploaded))
}

// GetImageStatus handles GET /api/images/:hash/status
// @Summary Poll variant rendering
// @Tags images
// @Security BearerAuth
// @Produce json
// @Param hash path string true "Image hash"
// @Success 200 {object} ImageStatusResponse
// @Router /images/{hash}/status [get]
func (s *Server) GetImageStatus(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	img, err := s.imageService.Get(c.UserContext(), hash)
	if err != nil {
		return respond(c, err)
	}

	return c.JSON(ImageStatusResponse{
		Status:   img.Status,
		CropMode: img.CropMode,
		URL:      s.imageService.BuildMasterURL(img.Hash),
		Variants: s.imageService.BuildVariantsMap(img.Hash, img.Variants),
		Error:    img.Error,
	})
}

// ServeMedia handles GET /media/i/:hash/:file
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	img, path, err := s.imageService.ResolveForServing(c.UserContext(), c.Params("hash"), c.Params("file"))
	if err != nil {
		return respond(c, err)
	}
	s.imageService.Touch(c.UserContext(), img.ID)

	// Files are content addressed, so a URL never changes meaning.
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(path)
}

func toImageUploadResponse(imageSvc *service.ImageService, image *models.Image) ImageUploadResponse {
	return ImageUploadResponse{
		ID:        image.ID,
		Hash:      image.Hash,
		Status:    image.Status,
		Width:     image.Width,
		Height:    image.Height,
		CropMode:  image.CropMode,
		SizeBytes: image.SizeBytes,
		MimeType:  image.MimeType,
		URL:       imageSvc.BuildMasterURL(image.Hash),
		Variants:  imageSvc.BuildVariantsMap(image.Hash, image.Variants),
	}
}

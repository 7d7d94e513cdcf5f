package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"
	"mime"
	"net/http"
	"strings"

	// Register GIF and PNG decoders
	_ "image/gif"
	_ "image/png"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Encoding parameters.
const (
	MasterMaxSize = 2048
	JPEGQuality   = 82
	WebPQuality   = 70
)

// VariantSizes is the ladder of square bounding boxes rendered by the worker.
var VariantSizes = []int{256, 640, 1080}

// Upload rejections.
var (
	ErrUnsupportedType = errors.New("invalid image type")
	ErrDecode          = errors.New("invalid image file")
	ErrTypeMismatch    = errors.New("image content type mismatch")
)

var allowedRatios = []struct {
	name  string
	ratio float64
}{
	{name: "landscape", ratio: 1.91},
	{name: "square", ratio: 1.0},
	{name: "portrait", ratio: 0.8},
}

// Crop is the region of the source kept for the master.
type Crop struct {
	Mode string
	X, Y int
	W, H int
}

// Master is the normalized upload: cropped, bounded and encoded twice.
type Master struct {
	JPEG     []byte
	WebP     []byte
	Width    int
	Height   int
	Crop     Crop
	MimeType string
}

// PrepareMaster sniffs, decodes, crops and encodes an upload.
// contentType is the client supplied type; when it names an image it must agree
// with the sniffed one.
func PrepareMaster(content []byte, contentType string) (*Master, error) {
	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, ErrUnsupportedType
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, ErrDecode
	}
	sourceType := decodedFormatToMime(format)
	if sourceType == "" {
		return nil, ErrUnsupportedType
	}
	if provided := normalizeContentType(contentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceType) {
		return nil, ErrTypeMismatch
	}

	b := decoded.Bounds()
	crop := SelectCrop(b.Dx(), b.Dy())
	master := resizeToFit(cropToRect(decoded, b.Min.X+crop.X, b.Min.Y+crop.Y, crop.W, crop.H), MasterMaxSize, MasterMaxSize)

	jpg, err := EncodeJPEG(master)
	if err != nil {
		return nil, fmt.Errorf("encode master jpeg: %w", err)
	}
	wp, err := EncodeWebP(master)
	if err != nil {
		return nil, fmt.Errorf("encode master webp: %w", err)
	}
	mb := master.Bounds()
	return &Master{JPEG: jpg, WebP: wp, Width: mb.Dx(), Height: mb.Dy(), Crop: crop, MimeType: sourceType}, nil
}

// Rendition is one encoded variant.
type Rendition struct {
	SizePx int
	Width  int
	Height int
	JPEG   []byte
	WebP   []byte
}

// Renditions decodes a master JPEG and renders every ladder size the master is large enough for.
func Renditions(masterJPEG []byte) ([]Rendition, error) {
	master, _, err := image.Decode(bytes.NewReader(masterJPEG))
	if err != nil {
		return nil, fmt.Errorf("decode master: %w", err)
	}
	b := master.Bounds()

	var out []Rendition
	for _, size := range VariantSizes {
		if b.Dx() < size && b.Dy() < size {
			continue
		}
		resized := resizeToFit(master, size, size)
		jpg, err := EncodeJPEG(resized)
		if err != nil {
			return nil, err
		}
		wp, err := EncodeWebP(resized)
		if err != nil {
			return nil, err
		}
		rb := resized.Bounds()
		out = append(out, Rendition{SizePx: size, Width: rb.Dx(), Height: rb.Dy(), JPEG: jpg, WebP: wp})
	}
	return out, nil
}

// SizeName labels a ladder size.
func SizeName(size int) string {
	switch size {
	case 256:
		return "thumb"
	case 640:
		return "sm"
	case 1080:
		return "md"
	default:
		return "custom"
	}
}

// ContentHash addresses an upload by uploader and master bytes.
func ContentHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// SelectCrop picks the allowed aspect ratio nearest to w:h and centers a crop of it.
func SelectCrop(w, h int) Crop {
	if w <= 0 || h <= 0 {
		return Crop{Mode: "free", W: w, H: h}
	}
	ratio := float64(w) / float64(h)
	best := allowedRatios[1]
	bestDist := absFloat(ratio - best.ratio)
	for _, r := range allowedRatios {
		if d := absFloat(ratio - r.ratio); d < bestDist {
			bestDist = d
			best = r
		}
	}

	c := Crop{Mode: best.name}
	if ratio > best.ratio {
		c.H = h
		c.W = int(math.Round(float64(h) * best.ratio))
		c.X = (w - c.W) / 2
	} else {
		c.W = w
		c.H = int(math.Round(float64(w) / best.ratio))
		c.Y = (h - c.H) / 2
	}
	if c.W < 1 {
		c.W = 1
	}
	if c.H < 1 {
		c.H = 1
	}
	return c
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// EncodeJPEG encodes img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeWebP encodes img at WebPQuality.
func EncodeWebP(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(WebPQuality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

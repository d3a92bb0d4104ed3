package helpers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	// Decoders for the upload formats we accept
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog/log"
)

const (
	// Maximum image dimensions before upload to the inference provider
	MaxImageWidth  = 1920
	MaxImageHeight = 1080

	// JPEG quality settings
	UploadQuality = 85
	FrameQuality  = 70
)

// OptimizeOptions controls how an image is prepared for inference
type OptimizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultOptimizeOptions matches the provider's recommended upload size
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{
		MaxWidth:  MaxImageWidth,
		MaxHeight: MaxImageHeight,
		Quality:   UploadQuality,
	}
}

// OptimizedImage is an image ready for upload
type OptimizedImage struct {
	JPEG   []byte
	Width  int
	Height int
}

// Base64 returns the JPEG encoded as standard base64
func (o *OptimizedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(o.JPEG)
}

// StripDataURL removes a "data:image/...;base64," prefix if present
func StripDataURL(s string) string {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+1:]
	}
	return strings.TrimSpace(s)
}

// DecodeBase64Image decodes a base64 (or data URL) string into raw image bytes
func DecodeBase64Image(s string) ([]byte, error) {
	s = StripDataURL(s)
	if s == "" {
		return nil, fmt.Errorf("empty image data")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some browsers send unpadded base64
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	return data, nil
}

// DecodeImage decodes encoded image bytes of any registered format
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// NormalizeRGB returns an opaque RGBA copy of img. Transparent pixels are
// composited onto a white background.
func NormalizeRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

// FitWithin downscales img so it fits inside maxWidth x maxHeight, keeping the
// aspect ratio. Images already inside the bounds are returned unchanged.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth && bounds.Dy() <= maxHeight {
		return img
	}
	return resize.Thumbnail(uint(maxWidth), uint(maxHeight), img, resize.Lanczos3)
}

// EncodeJPEG encodes img as JPEG at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64JPEG encodes img as base64 JPEG
func EncodeBase64JPEG(img image.Image, quality int) (string, error) {
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// OptimizeImage normalizes colour, downscales and re-encodes an image
func OptimizeImage(img image.Image, opts OptimizeOptions) (*OptimizedImage, error) {
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		opts.MaxWidth, opts.MaxHeight = MaxImageWidth, MaxImageHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = UploadQuality
	}

	originalBounds := img.Bounds()
	fitted := FitWithin(NormalizeRGB(img), opts.MaxWidth, opts.MaxHeight)

	data, err := EncodeJPEG(fitted, opts.Quality)
	if err != nil {
		return nil, err
	}

	bounds := fitted.Bounds()
	if bounds.Dx() != originalBounds.Dx() {
		log.Debug().
			Int("original_width", originalBounds.Dx()).
			Int("original_height", originalBounds.Dy()).
			Int("width", bounds.Dx()).
			Int("height", bounds.Dy()).
			Int("size_bytes", len(data)).
			Msg("Image downscaled for upload")
	}

	return &OptimizedImage{JPEG: data, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// OptimizeEncoded decodes raw image bytes and optimizes them for upload
func OptimizeEncoded(data []byte, opts OptimizeOptions) (*OptimizedImage, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return OptimizeImage(img, opts)
}

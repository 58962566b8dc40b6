package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"

	"plant-diagnosis-pipeline/models"
)

const (
	// DefaultMaxDimension keeps payloads inside every provider's accepted
	// size envelope.
	DefaultMaxDimension = 1024

	jpegQuality = 85
)

// Preprocessor normalizes raw image bytes into the provider-agnostic
// payload every adapter accepts: JPEG, max dimension bounded, EXIF
// orientation applied. Pure transform, safe for concurrent use.
type Preprocessor struct {
	maxDimension int
}

func New(maxDimension int) *Preprocessor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Preprocessor{maxDimension: maxDimension}
}

// Process decodes, orients, bounds and re-encodes raw.
// Re-processing an already-normalized image returns byte-identical output:
// a JPEG within bounds with default orientation passes through unchanged.
func (p *Preprocessor) Process(raw []byte) (*models.NormalizedImage, error) {
	if len(raw) == 0 {
		return nil, &models.InvalidImageError{Reason: "empty input"}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &models.InvalidImageError{Reason: "undecodable input: " + err.Error()}
	}

	orientation := imageOrientation(raw)
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Fast path: already canonical.
	if format == "jpeg" && orientation == 1 && width <= p.maxDimension && height <= p.maxDimension {
		return normalized(raw, width, height), nil
	}

	if orientation != 1 {
		img = correctOrientation(img, orientation)
		bounds = img.Bounds()
		width = bounds.Dx()
		height = bounds.Dy()
	}

	if width > p.maxDimension || height > p.maxDimension {
		scale := float64(p.maxDimension) / float64(width)
		if s := float64(p.maxDimension) / float64(height); s < scale {
			scale = s
		}
		newWidth := int(float64(width) * scale)
		newHeight := int(float64(height) * scale)
		scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = scaled
		width = newWidth
		height = newHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &models.InvalidImageError{Reason: "re-encode failed: " + err.Error()}
	}

	out := buf.Bytes()
	log.Infof("Image normalized: %d bytes -> %d bytes (%dx%d, format: %s, orientation: %d)",
		len(raw), len(out), width, height, format, orientation)

	return normalized(out, width, height), nil
}

// ProcessAll normalizes a batch, failing on the first bad image so a
// request with any undecodable input is rejected whole.
func (p *Preprocessor) ProcessAll(raws [][]byte) ([]models.NormalizedImage, error) {
	if len(raws) == 0 {
		return nil, &models.InvalidImageError{Reason: "no images provided"}
	}
	images := make([]models.NormalizedImage, 0, len(raws))
	for _, raw := range raws {
		img, err := p.Process(raw)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, nil
}

func normalized(data []byte, width, height int) *models.NormalizedImage {
	return &models.NormalizedImage{
		Bytes:  data,
		Base64: base64.StdEncoding.EncodeToString(data),
		Width:  width,
		Height: height,
		Format: "jpeg",
		Size:   len(data),
	}
}

// imageOrientation extracts the EXIF orientation, defaulting to 1 when
// there is no EXIF block or the tag is missing.
func imageOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	orientation, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	val, err := orientation.Int(0)
	if err != nil {
		return 1
	}
	return val
}

// correctOrientation redraws the image upright for EXIF orientations 2-8.
func correctOrientation(img image.Image, orientation int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch orientation {
	case 2: // Flip horizontal
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(width-1-x, y, img.At(x, y))
			}
		}
		return out
	case 3: // Rotate 180
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(width-1-x, height-1-y, img.At(x, y))
			}
		}
		return out
	case 4: // Flip vertical
		out := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(x, height-1-y, img.At(x, y))
			}
		}
		return out
	case 5: // Transpose
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(y, x, img.At(x, y))
			}
		}
		return out
	case 6: // Rotate 90 clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(height-1-y, x, img.At(x, y))
			}
		}
		return out
	case 7: // Transverse
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(height-1-y, width-1-x, img.At(x, y))
			}
		}
		return out
	case 8: // Rotate 90 counter-clockwise
		out := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Set(y, width-1-x, img.At(x, y))
			}
		}
		return out
	default:
		return img
	}
}

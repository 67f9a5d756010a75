// Package imageproc validates uploaded pictures and produces avatar thumbnails.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // регистрирует декодер gif
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

var ErrNotImage = errors.New("file is not a supported image")

type Size struct {
	Width  int
	Height int
}

var (
	SizeAvatar  = Size{Width: 256, Height: 256}
	SizePicture = Size{Width: 1200, Height: 1200}
)

type Processor struct {
	quality int // JPEG quality (1-100)
}

func NewProcessor(quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Processor{quality: quality}
}

// Detect decodes only the header and returns the format: jpeg, png or gif.
func Detect(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	switch format {
	case "jpeg", "png", "gif":
		return format, nil
	}
	return "", ErrNotImage
}

// ContentType maps a format from Detect to its MIME type.
func ContentType(format string) string {
	return "image/" + format
}

// Fit уменьшает картинку до size с сохранением пропорций; меньшие картинки не растягиваются.
// Результат кодируется в исходный формат, gif перекодируется в png.
func (p *Processor) Fit(data []byte, size Size) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrNotImage
	}

	b := img.Bounds()
	if b.Dx() <= size.Width && b.Dy() <= size.Height && format != "gif" {
		return data, format, nil
	}
	resized := p.resize(img, size.Width, size.Height)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		format = "png"
		if err := png.Encode(&buf, resized); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
	}
	return buf.Bytes(), format, nil
}

func (p *Processor) resize(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth && height <= maxHeight {
		maxWidth, maxHeight = width, height
	}

	ratio := float64(width) / float64(height)
	newWidth, newHeight := maxWidth, maxHeight
	if float64(maxWidth)/float64(maxHeight) > ratio {
		newWidth = int(float64(maxHeight) * ratio)
	} else {
		newHeight = int(float64(maxWidth) / ratio)
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// Extension returns the file extension for a format from Fit or Detect.
func Extension(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}

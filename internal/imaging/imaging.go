// Package imaging normalises uploaded offering photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height for stored images.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MaxUploadSize is the largest upload accepted before decoding.
const MaxUploadSize = 8 << 20

// OutputMIME is the type of every processed image.
const OutputMIME = "image/jpeg"

// ErrUnsupported is returned for data that is not a JPEG, PNG or WebP image.
var ErrUnsupported = errors.New("unsupported image format")

// ErrTooLarge is returned for uploads over MaxUploadSize.
var ErrTooLarge = errors.New("image too large")

// decoders maps sniffed MIME types to decoders. Formats are picked by
// content, never by the client's Content-Type header.
var decoders = map[string]func([]byte) (image.Image, error){
	"image/jpeg": func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) },
	"image/png":  func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) },
	"image/webp": func(b []byte) (image.Image, error) { return webp.Decode(bytes.NewReader(b)) },
}

// Process validates image data by sniffing its bytes, downscales it if it is
// larger than MaxDimension and re-encodes it as JPEG.
func Process(data []byte) ([]byte, error) {
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("%w: %s (JPEG, PNG or WebP accepted)", ErrUnsupported, detected)
	}

	img, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrUnsupported, err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes img so neither side exceeds maxDim, preserving the aspect
// ratio. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

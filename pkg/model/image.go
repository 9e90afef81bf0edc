package model

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultImageMIMEType is used when the payload type cannot be detected.
const DefaultImageMIMEType = "image/jpeg"

// Image is a raw uploaded picture. No size or format validation is done
// locally; the inference service rejects what it cannot read.
type Image struct {
	MIMEType string
	Data     []byte
}

// NewImage wraps raw bytes, detecting the MIME type from the content.
func NewImage(data []byte) Image {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = DefaultImageMIMEType
	}
	return Image{MIMEType: mimeType, Data: data}
}

// LoadImage reads an image file from disk.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, goerr.Wrap(err, "failed to read image file", goerr.V("path", path))
	}
	if len(data) == 0 {
		return Image{}, goerr.Wrap(ErrInvalidImage, "image file is empty", goerr.V("path", path))
	}
	return NewImage(data), nil
}

// IsZero reports whether the image carries no payload.
func (x Image) IsZero() bool {
	return len(x.Data) == 0
}

// DataURL encodes the image as a data URL, the string form stored in
// history rows.
func (x Image) DataURL() string {
	mimeType := x.MIMEType
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(x.Data)
}

// ParseDataURL decodes a base64 data URL produced by DataURL.
func ParseDataURL(s string) (Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, goerr.Wrap(ErrInvalidImage, "not a data URL")
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, goerr.Wrap(ErrInvalidImage, "data URL has no payload")
	}

	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return Image{}, goerr.Wrap(ErrInvalidImage, "data URL is not base64 encoded", goerr.V("header", header))
	}
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, goerr.Wrap(ErrInvalidImage, "failed to decode data URL", goerr.V("error", err.Error()))
	}

	return Image{MIMEType: mimeType, Data: data}, nil
}

// Package media converts between data URLs and raw bytes and stores uploaded
// images in an object bucket.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrInvalidDataURL = errors.New("Invalid Data URL format.")
	ErrNoMIMEType     = errors.New("Could not determine MIME type from Data URL.")
	ErrNotAnImage     = errors.New("el archivo no es una imagen")
)

// IsInvalidImage reports whether err came from decoding the client's payload
// rather than from the object store.
func IsInvalidImage(err error) bool {
	return errors.Is(err, ErrInvalidDataURL) || errors.Is(err, ErrNoMIMEType) || errors.Is(err, ErrNotAnImage)
}

// DataURL is a decoded data: URL.
type DataURL struct {
	MIMEType string
	Base64   string
	Data     []byte
}

// ParseDataURL splits "data:<mime>;base64,<payload>" into its parts.
func ParseDataURL(s string) (DataURL, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return DataURL{}, ErrInvalidDataURL
	}
	header := strings.SplitN(parts[0], ";", 2)[0]
	var mime string
	if i := strings.Index(header, ":"); i >= 0 {
		mime = strings.TrimSpace(header[i+1:])
	}
	if mime == "" {
		return DataURL{}, ErrNoMIMEType
	}
	payload := strings.TrimSpace(parts[1])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURL{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return DataURL{MIMEType: mime, Base64: payload, Data: data}, nil
}

// ToDataURL encodes data as a base64 data URL.
func ToDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Sniff detects the content type of data from its leading bytes.
func Sniff(data []byte) (mime string, ext string) {
	m := mimetype.Detect(data)
	return m.String(), m.Extension()
}

// DecodeImage parses a data URL and verifies the payload is really an image.
// The returned MIME type is the sniffed one, not the declared one.
func DecodeImage(s string) (DataURL, string, error) {
	d, err := ParseDataURL(s)
	if err != nil {
		return DataURL{}, "", err
	}
	mime, ext := Sniff(d.Data)
	if !strings.HasPrefix(mime, "image/") {
		return DataURL{}, "", fmt.Errorf("%w: %s", ErrNotAnImage, mime)
	}
	d.MIMEType = mime
	return d, ext, nil
}

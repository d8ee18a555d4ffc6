// Package qrcode renders payment URLs as scannable PNG images.
package qrcode

import (
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent     = errors.New("qr content cannot be empty")
	ErrFailedToGenerate = errors.New("failed to generate qr code")
)

// defaultSize is used when no size is specified.
const defaultSize = 256

// Generate renders the content as a PNG of size x size pixels with
// medium error correction.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}

	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}

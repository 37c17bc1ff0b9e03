//go:build linux && cgo

package utils

import (
	"bytes"
	"image"

	"github.com/jdeng/goheif"
)

// decodeHEIC handles photos uploaded straight from iPhones.
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	MenuImageMaxSide   = 1600
	MenuImageThumbSide = 400
	menuImageQuality   = 85
	menuThumbQuality   = 80
)

var allowedMenuImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/heic": true,
	"image/heif": true,
}

var ErrUnsupportedImage = errors.New("unsupported image type")

// MenuImage holds the encoded variants stored for a menu item.
type MenuImage struct {
	Full   []byte
	Thumb  []byte
	Width  int
	Height int
	Format string
}

func ValidateImageContentType(contentType string) bool {
	ct := strings.TrimSpace(strings.ToLower(contentType))
	if ct == "" {
		return false
	}
	return allowedMenuImageTypes[ct]
}

func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if isHeifFamily(data) {
		return "image/heic"
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	return http.DetectContentType(sample)
}

// ProcessMenuImage decodes an upload once and produces a JPEG that fits inside
// MenuImageMaxSide plus a square thumbnail. EXIF orientation is applied first.
func ProcessMenuImage(data []byte) (MenuImage, error) {
	if !ValidateImageContentType(DetectContentType(data)) {
		return MenuImage{}, ErrUnsupportedImage
	}
	img, format, err := decodeAndAutoRotate(data)
	if err != nil {
		return MenuImage{}, err
	}

	b := img.Bounds()
	out := MenuImage{Width: b.Dx(), Height: b.Dy(), Format: format}

	full := imaging.Fit(img, MenuImageMaxSide, MenuImageMaxSide, imaging.Lanczos)
	if out.Full, err = encodeJPEG(full, menuImageQuality); err != nil {
		return MenuImage{}, err
	}
	thumb := imaging.Fill(img, MenuImageThumbSide, MenuImageThumbSide, imaging.Center, imaging.Lanczos)
	if out.Thumb, err = encodeJPEG(thumb, menuThumbQuality); err != nil {
		return MenuImage{}, err
	}
	return out, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isHeifFamily(data []byte) bool {
	// ISO BMFF: [size:4][ftyp:4][brand:4]
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1", "heif":
		return true
	default:
		return false
	}
}

func decodeAndAutoRotate(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if isHeifFamily(data) {
			if heicImg, heicErr := decodeHEIC(data); heicErr == nil {
				return heicImg, "heic", nil
			}
		}
		return nil, "", err
	}

	if !strings.EqualFold(format, "jpeg") {
		return img, format, nil
	}
	ex, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return img, format, nil
	}
	tag, err := ex.Get(exif.Orientation)
	if err != nil {
		return img, format, nil
	}
	orient, err := tag.Int(0)
	if err != nil {
		return img, format, nil
	}
	return applyOrientation(img, orient), format, nil
}

func applyOrientation(img image.Image, orient int) image.Image {
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

package ocr

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/docparse/internal/common"
)

// CheckImage decodes the image header so broken files fail before tesseract runs.
func CheckImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: image not found: %s", common.ErrInvalidInput, path)
		}
		return fmt.Errorf("%w: open %s: %v", common.ErrUnreadableImage, path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrUnreadableImage, path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s: empty %s image", common.ErrUnreadableImage, path, format)
	}
	return nil
}

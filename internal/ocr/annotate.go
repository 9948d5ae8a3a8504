package ocr

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/docparse/internal/common"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}

const boxStroke = 2

// Annotate writes a PNG copy of src with each word box outlined.
func Annotate(src, dst string, boxes []Box) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", common.ErrInvalidInput, src, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrUnreadableImage, src, err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Copy(canvas, bounds.Min, img, bounds, draw.Src, nil)
	for _, b := range boxes {
		outline(canvas, image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H).Add(bounds.Min).Intersect(bounds))
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return common.WrapError(err, "create annotation dir")
	}
	out, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*.png")
	if err != nil {
		return common.WrapError(err, "create annotated image")
	}
	if err := png.Encode(out, canvas); err != nil {
		out.Close()
		os.Remove(out.Name())
		return common.WrapError(err, "encode annotated image")
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return common.WrapError(err, "close annotated image")
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		os.Remove(out.Name())
		return common.WrapError(err, "rename annotated image")
	}
	return nil
}

func outline(dst *image.RGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	fill := image.NewUniform(boxColor)
	s := boxStroke
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, min(r.Min.Y+s, r.Max.Y)),
		image.Rect(r.Min.X, max(r.Max.Y-s, r.Min.Y), r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, min(r.Min.X+s, r.Max.X), r.Max.Y),
		image.Rect(max(r.Max.X-s, r.Min.X), r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, fill, image.Point{}, draw.Src)
	}
}

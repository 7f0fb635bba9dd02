package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var supported = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Decode sniffs and decodes data, then normalizes it with Normalize.
// Images whose header declares more than maxPixels pixels are rejected
// before any pixel data is decoded. A maxPixels of zero or less disables
// the check.
func Decode(data []byte, maxDimension int, maxPixels int64) (*image.RGBA, error) {
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), supported...) {
		return nil, &Error{Kind: KindDecodeFailed, Err: fmt.Errorf("unsupported content type %s", mtype.String())}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: KindDecodeFailed, Err: err}
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, &Error{
			Kind: KindTooLarge,
			Err:  fmt.Errorf("image is %dx%d pixels, limit is %d", cfg.Width, cfg.Height, maxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: KindDecodeFailed, Err: err}
	}

	return Normalize(img, maxDimension), nil
}

// Normalize returns an opaque RGBA copy of img whose longer side is at most
// maxDimension. The alpha channel is dropped and the stored color of each
// pixel kept, so fully transparent pixels keep their RGB. A maxDimension of
// zero or less disables resizing.
func Normalize(img image.Image, maxDimension int) *image.RGBA {
	src := img.Bounds()
	opaque := dropAlpha(img)

	w, h := FitWithin(src.Dx(), src.Dy(), maxDimension)
	if w == src.Dx() && h == src.Dy() {
		return opaque
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), opaque, opaque.Bounds(), draw.Src, nil)
	return dst
}

func dropAlpha(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				copy(dst.Pix[di:di+3], src.Pix[si:si+3])
				dst.Pix[di+3] = 0xff
				si += 4
				di += 4
			}
		}
		return dst
	case interface{ Opaque() bool }:
		if src.Opaque() {
			draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
			return dst
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 0xff
			dst.SetRGBA(x, y, color.RGBA(c))
		}
	}
	return dst
}

// FitWithin scales w by h down so that the longer side equals maxDimension,
// keeping the aspect ratio. Sizes already within bounds are returned as is.
func FitWithin(w, h, maxDimension int) (int, int) {
	longest := max(w, h)
	if maxDimension <= 0 || longest <= maxDimension {
		return w, h
	}

	scale := float64(maxDimension) / float64(longest)
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	return nw, nh
}

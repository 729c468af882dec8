package classify

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CenterCrop scales the shorter side of img to size and crops the center to
// a size x size square. This is the deterministic fit applied to every
// request under ScaleCenterCrop.
func CenterCrop(img image.Image, size int) image.Image {
	if size <= 0 {
		return img
	}

	bounds := img.Bounds()
	var scaled image.Image
	if bounds.Dx() < bounds.Dy() {
		scaled = resize.Resize(uint(size), 0, img, resize.Lanczos3)
	} else {
		scaled = resize.Resize(0, uint(size), img, resize.Lanczos3)
	}

	sb := scaled.Bounds()
	x0 := sb.Min.X + (sb.Dx()-size)/2
	y0 := sb.Min.Y + (sb.Dy()-size)/2
	crop := image.Rect(x0, y0, x0+size, y0+size)

	if si, ok := scaled.(subImager); ok {
		return si.SubImage(crop)
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), scaled, crop.Min, draw.Src)
	return out
}

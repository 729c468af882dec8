package classify

import "image"

// Normalize returns img redrawn upright according to its EXIF orientation.
// OrientationUp and out-of-range values return img unchanged.
func Normalize(img image.Image, o Orientation) image.Image {
	if o <= OrientationUp || o > OrientationRotate270 {
		return img
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var out *image.RGBA
	switch o {
	case OrientationTranspose, OrientationRotate90, OrientationTransverse, OrientationRotate270:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	default:
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch o {
			case OrientationFlipHorizontal:
				out.Set(w-1-x, y, c)
			case OrientationRotate180:
				out.Set(w-1-x, h-1-y, c)
			case OrientationFlipVertical:
				out.Set(x, h-1-y, c)
			case OrientationTranspose:
				out.Set(y, x, c)
			case OrientationRotate90:
				out.Set(h-1-y, x, c)
			case OrientationTransverse:
				out.Set(h-1-y, w-1-x, c)
			case OrientationRotate270:
				out.Set(y, w-1-x, c)
			}
		}
	}
	return out
}

package classify

// ClassificationResult is one ranked prediction for an image. Values are
// created by the completion path and never mutated afterwards.
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Observation is one (label, confidence) output slot reported by an engine
// for a single image, in the engine's own ranking order.
type Observation struct {
	Label      string
	Confidence float32
}

// Orientation carries the EXIF orientation tag of an input image. It is read
// from image metadata by the caller, never computed here.
type Orientation int

const (
	OrientationUp             Orientation = 1
	OrientationFlipHorizontal Orientation = 2
	OrientationRotate180      Orientation = 3
	OrientationFlipVertical   Orientation = 4
	OrientationTranspose      Orientation = 5
	OrientationRotate90       Orientation = 6
	OrientationTransverse     Orientation = 7
	OrientationRotate270      Orientation = 8
)

// Valid reports whether o is one of the eight EXIF orientation values.
func (o Orientation) Valid() bool {
	return o >= OrientationUp && o <= OrientationRotate270
}

// ScalePolicy selects how an engine fits the image to the model's input
// dimensions. It is the only per-request knob.
type ScalePolicy string

// ScaleCenterCrop scales the shorter side to the target and crops the center.
const ScaleCenterCrop ScalePolicy = "center-crop"

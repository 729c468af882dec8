package onnx

import (
	"image"
	"sort"

	"github.com/example/image-classify/internal/classify"
)

// planarRGB converts img to normalized [0,1] float32 values in CHW layout,
// the input format the bundled models expect.
func planarRGB(img image.Image) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*width + x
			data[idx] = float32(r) / 65535.0
			data[plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}
	return data
}

// rank pairs class scores with their labels, ordered by descending score.
// Scores past the class list are ignored.
func rank(scores []float32, classes []string) []classify.Observation {
	n := len(scores)
	if len(classes) < n {
		n = len(classes)
	}

	observations := make([]classify.Observation, 0, n)
	for i := 0; i < n; i++ {
		observations = append(observations, classify.Observation{
			Label:      classes[i],
			Confidence: scores[i],
		})
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Confidence > observations[j].Confidence
	})
	return observations
}

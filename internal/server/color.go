package server

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// goldenRatioConjugate spaces successive hues as a low-discrepancy sequence.
var goldenRatioConjugate = (math.Sqrt(5) - 1) / 2

const (
	colorSaturation = 0.5
	colorLightness  = 0.7
)

// Hue returns the hue in degrees [0, 360) for the index-th joiner.
func Hue(index int) float64 {
	_, frac := math.Modf(float64(index) * goldenRatioConjugate)
	return 360 * frac
}

// ColorFor returns the #RRGGBB color for the index-th joiner.
func ColorFor(index int) string {
	c := colorful.Hsl(Hue(index), colorSaturation, colorLightness)
	return strings.ToUpper(c.Clamped().Hex())
}

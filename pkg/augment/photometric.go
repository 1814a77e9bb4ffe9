/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package augment

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Bounds of the random factors of the photometric transformations.
const (
	// ShadowMinRatio and ShadowMaxRatio bound the factor applied to the lightness of the shadowed side.
	ShadowMinRatio = 0.5
	ShadowMaxRatio = 1.0

	// BrightnessRange is the total range of the brightness factor, centered on 1.
	BrightnessRange = 0.4
)

// Line splits an image in two sides. It goes from (X1, Y1) to (X2, Y2).
type Line struct {
	X1, Y1, X2, Y2 float64
}

// Below returns whether the pixel (x, y) is on the negative side of the line, using the sign of the cross product
// (x-X1)*(Y2-Y1) - (X2-X1)*(y-Y1). Points on the line are not below it.
func (l Line) Below(x, y int) bool {
	xm, ym := float64(x), float64(y)
	return (xm-l.X1)*(l.Y2-l.Y1)-(l.X2-l.X1)*(ym-l.Y1) < 0
}

// RandomShadow darkens one side of a random line crossing the image from top to bottom.
//
// The line goes from (x1, 0) to (x2, height), with x1 and x2 drawn uniformly in [0, width). The side to darken is
// drawn at random, and its HLS lightness is multiplied by a ratio drawn uniformly from [ShadowMinRatio, ShadowMaxRatio).
func RandomShadow(rng *rand.Rand, img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	width, height := float64(bounds.Dx()), float64(bounds.Dy())
	line := Line{
		X1: width * rng.Float64(), Y1: 0,
		X2: width * rng.Float64(), Y2: height,
	}
	darkenBelow := rng.Intn(2) == 1
	ratio := ShadowMinRatio + (ShadowMaxRatio-ShadowMinRatio)*rng.Float64()
	return Shadow(img, line, darkenBelow, ratio)
}

// Shadow multiplies the HLS lightness of the pixels on one side of line by ratio.
// If darkenBelow is true, the pixels for which line.Below is true are darkened, otherwise the others are.
func Shadow(img *image.NRGBA, line Line, darkenBelow bool, ratio float64) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		off := out.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < bounds.Dx(); x, off = x+1, off+4 {
			if line.Below(x, y) != darkenBelow {
				continue
			}
			h, s, l := pixelColor(out.Pix[off:]).Hsl()
			setPixelColor(out.Pix[off:], colorful.Hsl(h, s, clamp01(l*ratio)))
		}
	}
	return out
}

// RandomBrightness multiplies the HSV value of every pixel by 1+BrightnessRange*(U-0.5), with U ~ Uniform[0, 1).
// Values are saturated to the valid range.
func RandomBrightness(rng *rand.Rand, img *image.NRGBA) *image.NRGBA {
	ratio := 1.0 + BrightnessRange*(rng.Float64()-0.5)
	return Brightness(img, ratio)
}

// Brightness multiplies the HSV value of every pixel by ratio.
func Brightness(img *image.NRGBA, ratio float64) *image.NRGBA {
	out := imaging.Clone(img)
	for off := 0; off+3 < len(out.Pix); off += 4 {
		h, s, v := pixelColor(out.Pix[off:]).Hsv()
		setPixelColor(out.Pix[off:], colorful.Hsv(h, s, clamp01(v*ratio)))
	}
	return out
}

func pixelColor(pix []uint8) colorful.Color {
	return colorful.Color{
		R: float64(pix[0]) / 255.0,
		G: float64(pix[1]) / 255.0,
		B: float64(pix[2]) / 255.0,
	}
}

func setPixelColor(pix []uint8, c colorful.Color) {
	pix[0], pix[1], pix[2] = c.Clamped().RGB255()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

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
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/gomlx/steering/pkg/imageops"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Camera identifies one of the three mounted cameras.
type Camera int

const (
	Left Camera = iota
	Right
	Center
)

func (c Camera) String() string {
	switch c {
	case Left:
		return "Left"
	case Right:
		return "Right"
	case Center:
		return "Center"
	}
	return fmt.Sprintf("Camera(%d)", int(c))
}

// AngleCorrection returns the value added to the steering angle when using this camera.
func (c Camera) AngleCorrection() float64 {
	switch c {
	case Left:
		return CameraAngleCorrection
	case Right:
		return -CameraAngleCorrection
	}
	return 0
}

// ChooseCamera draws one of the cameras uniformly.
func ChooseCamera(rng *rand.Rand) Camera {
	return Camera(rng.Intn(3))
}

// ChooseImage loads the frame of a uniformly chosen camera and returns it with the corrected angle:
// angle+CameraAngleCorrection for the left camera, angle-CameraAngleCorrection for the right one and
// angle for the center one.
//
// Off-center cameras simulate the car drifting to the side of the lane, and the correction teaches
// the model to steer back.
func ChooseImage(rng *rand.Rand, loader imageops.Loader, dir, center, left, right string, angle float64) (
	*image.NRGBA, float64, error) {
	camera := ChooseCamera(rng)
	var file string
	switch camera {
	case Left:
		file = left
	case Right:
		file = right
	default:
		file = center
	}
	img, err := loader.Load(dir, file)
	if err != nil {
		return nil, 0, err
	}
	return img, angle + camera.AngleCorrection(), nil
}

// RandomFlip mirrors the image horizontally and negates the angle with probability FlipProbability.
// Otherwise, it returns the image and angle unchanged.
func RandomFlip(rng *rand.Rand, img *image.NRGBA, angle float64) (*image.NRGBA, float64) {
	if rng.Float64() < FlipProbability {
		return imaging.FlipH(img), -angle
	}
	return img, angle
}

// RandomTranslate shifts the image by tx = rangeX*(U-0.5) and ty = rangeY*(U-0.5) pixels, where U ~ Uniform[0, 1),
// and adds tx*TranslationAngleFactor to the angle.
//
// The output has the same size as the input. Areas uncovered by the shift are black.
func RandomTranslate(rng *rand.Rand, img *image.NRGBA, angle, rangeX, rangeY float64) (*image.NRGBA, float64) {
	tx := rangeX * (rng.Float64() - 0.5)
	ty := rangeY * (rng.Float64() - 0.5)
	return Translate(img, tx, ty), angle + tx*TranslationAngleFactor
}

// Translate applies the affine transformation [[1, 0, tx], [0, 1, ty]] to img, with bilinear interpolation.
func Translate(img *image.NRGBA, tx, ty float64) *image.NRGBA {
	bounds := img.Bounds()
	dst := imaging.New(bounds.Dx(), bounds.Dy(), color.NRGBA{A: 0xFF})
	srcToDst := f64.Aff3{
		1, 0, tx - float64(bounds.Min.X),
		0, 1, ty - float64(bounds.Min.Y),
	}
	draw.BiLinear.Transform(dst, srcToDst, img, bounds, draw.Src, nil)
	return dst
}

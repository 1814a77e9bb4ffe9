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

// Package augment implements the random transformations used to augment the recorded driving data.
//
// Each transformation takes the random source explicitly, so a seeded *rand.Rand reproduces the
// same augmentation. Transformations that move the image also correct the steering angle:
//
//   - Using the left (right) camera adds (subtracts) CameraAngleCorrection.
//   - Flipping the image negates the angle.
//   - Shifting the image horizontally by tx pixels adds tx*TranslationAngleFactor.
//
// Shadows and brightness changes keep the angle.
//
// All transformations expect images anchored at (0, 0), as returned by imageops.Loader, and
// never modify their input.
package augment

import (
	"image"
	"math/rand"

	"github.com/gomlx/steering/pkg/imageops"
	"github.com/pkg/errors"
)

const (
	// CameraAngleCorrection is added to the angle when the left camera is used, and subtracted for the right one.
	CameraAngleCorrection = 0.2

	// TranslationAngleFactor is the angle correction per pixel of horizontal shift.
	TranslationAngleFactor = 0.002

	// FlipProbability is the probability of RandomFlip mirroring the image.
	FlipProbability = 0.5
)

// Config of the augmentation.
type Config struct {
	// RangeX and RangeY are the total range of the random shift, in pixels.
	// The shift is drawn uniformly from [-Range/2, Range/2).
	RangeX, RangeY float64
}

// DefaultConfig used for training.
var DefaultConfig = Config{
	RangeX: 100,
	RangeY: 10,
}

// Augment loads one of the three cameras and randomly transforms it, with the configured translation ranges.
// See Augment.
func (cfg Config) Augment(rng *rand.Rand, loader imageops.Loader, dir, center, left, right string, angle float64) (
	*image.NRGBA, float64, error) {
	return Augment(rng, loader, dir, center, left, right, angle, cfg.RangeX, cfg.RangeY)
}

// Augment picks one of the cameras and applies, in order, RandomFlip, RandomTranslate, RandomShadow and RandomBrightness.
//
// It operates on the full (not cropped) frame, which is what the angle corrections are calibrated for.
// It returns the augmented frame and its corrected angle.
func Augment(rng *rand.Rand, loader imageops.Loader, dir, center, left, right string, angle float64,
	rangeX, rangeY float64) (*image.NRGBA, float64, error) {
	img, angle, err := ChooseImage(rng, loader, dir, center, left, right, angle)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "augmentation failed")
	}
	img, angle = RandomFlip(rng, img, angle)
	img, angle = RandomTranslate(rng, img, angle, rangeX, rangeY)
	img = RandomShadow(rng, img)
	img = RandomBrightness(rng, img)
	return img, angle, nil
}

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

package imageops

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ShapeError is returned when a frame is too small for the configured crop bounds.
type ShapeError struct {
	Height, Width int
	MinHeight     int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("image of %dx%d (height x width) too small to crop: height must be at least %d and width > 0",
		e.Height, e.Width, e.MinHeight)
}

// Crop removes cfg.CropTop rows from the top and cfg.CropBottom rows from the bottom of img.
// The result has height H - CropTop - CropBottom and the same width.
func Crop(img *image.NRGBA, cfg PreprocessConfig) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if err := cfg.CheckSource(bounds.Dy(), bounds.Dx()); err != nil {
		return nil, err
	}
	rect := image.Rect(bounds.Min.X, bounds.Min.Y+cfg.CropTop, bounds.Max.X, bounds.Max.Y-cfg.CropBottom)
	return imaging.Crop(img, rect), nil
}

// Resize img to cfg.Width x cfg.Height using area averaging (box filter).
func Resize(img *image.NRGBA, cfg PreprocessConfig) *image.NRGBA {
	return imaging.Resize(img, cfg.Width, cfg.Height, imaging.Box)
}

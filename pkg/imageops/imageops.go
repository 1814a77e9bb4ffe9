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

// Package imageops loads camera frames and converts them to the representation the steering model consumes.
//
// The steps are fixed: crop the sky and the hood out of the frame, resize it with area averaging to
// ImageWidth x ImageHeight and convert it from RGB to YUV. Preprocess chains all three.
//
// Images are handled as *image.NRGBA with the alpha channel forced to opaque, so the R, G and B
// bytes can be read directly from Pix.
package imageops

import (
	"image"

	"github.com/pkg/errors"
)

// Input shape accepted by the model.
const (
	ImageHeight   = 66
	ImageWidth    = 200
	ImageChannels = 3
)

// Rows removed from the source frame before resizing.
const (
	// CropTop removes the sky and the horizon.
	CropTop = 60

	// CropBottom removes the car hood.
	CropBottom = 25
)

// PreprocessConfig holds the geometry of Preprocess.
type PreprocessConfig struct {
	// CropTop and CropBottom are the number of rows removed from the top and the bottom of the frame.
	CropTop, CropBottom int

	// Width and Height of the resized image.
	Width, Height int
}

// DefaultPreprocessConfig matches the model input shape: ImageHeight x ImageWidth x ImageChannels.
var DefaultPreprocessConfig = PreprocessConfig{
	CropTop:    CropTop,
	CropBottom: CropBottom,
	Width:      ImageWidth,
	Height:     ImageHeight,
}

// Validate checks the configuration itself, independent of any source image.
func (cfg PreprocessConfig) Validate() error {
	if cfg.CropTop < 0 || cfg.CropBottom < 0 {
		return errors.Errorf("invalid crop bounds top=%d, bottom=%d: they must be >= 0", cfg.CropTop, cfg.CropBottom)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Errorf("invalid target size %dx%d (width x height): dimensions must be > 0", cfg.Width, cfg.Height)
	}
	return nil
}

// MinSourceHeight is the smallest source height that leaves at least one row after cropping.
func (cfg PreprocessConfig) MinSourceHeight() int {
	return cfg.CropTop + cfg.CropBottom + 1
}

// CheckSource returns a *ShapeError if a source frame of the given size can't be cropped.
func (cfg PreprocessConfig) CheckSource(height, width int) error {
	if height < cfg.MinSourceHeight() || width <= 0 {
		return &ShapeError{
			Height:    height,
			Width:     width,
			MinHeight: cfg.MinSourceHeight(),
		}
	}
	return nil
}

// ElementsPerImage is the number of uint8 values of one preprocessed image.
func (cfg PreprocessConfig) ElementsPerImage() int {
	return cfg.Height * cfg.Width * ImageChannels
}

// Preprocess converts a raw camera frame to the model input: ToYUV(Resize(Crop(img))).
//
// It is deterministic. The returned YUV image has shape [cfg.Height, cfg.Width, 3].
func Preprocess(img *image.NRGBA, cfg PreprocessConfig) (*YUV, error) {
	cropped, err := Crop(img, cfg)
	if err != nil {
		return nil, err
	}
	return ToYUV(Resize(cropped, cfg)), nil
}

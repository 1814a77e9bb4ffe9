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

package batcher

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/steering/pkg/imageops"
	"github.com/pkg/errors"
)

// Batch of preprocessed images and their steering angles. Image i is paired with Angles[i].
type Batch struct {
	// Size is the number of samples.
	Size int

	// Height and Width of each image.
	Height, Width int

	// Images holds the YUV images, shaped [Size, Height, Width, 3].
	Images []uint8

	// Angles holds the steering angles, shaped [Size].
	Angles []float32
}

// NewBatch allocates a zero-filled batch of size images with the geometry of cfg.
func NewBatch(size int, cfg imageops.PreprocessConfig) *Batch {
	return &Batch{
		Size:   size,
		Height: cfg.Height,
		Width:  cfg.Width,
		Images: make([]uint8, size*cfg.ElementsPerImage()),
		Angles: make([]float32, size),
	}
}

func (b *Batch) imageSize() int {
	return b.Height * b.Width * imageops.ImageChannels
}

// Image returns the flat [Height, Width, 3] values of image i. It shares the storage of the batch.
func (b *Batch) Image(i int) []uint8 {
	n := b.imageSize()
	return b.Images[i*n : (i+1)*n]
}

// Set stores yuv and angle at position i.
// It panics if yuv doesn't have the batch geometry: that is a bug in the caller.
func (b *Batch) Set(i int, yuv *imageops.YUV, angle float64) {
	if yuv.Height != b.Height || yuv.Width != b.Width {
		panic(errors.Errorf("batch of %dx%d images can't store image of %dx%d", b.Height, b.Width, yuv.Height, yuv.Width))
	}
	copy(b.Image(i), yuv.Pix)
	b.Angles[i] = float32(angle)
}

// Tensors converts the batch to GoMLX tensors: images as float32 [Size, Height, Width, 3] with the raw YUV values
// (normalization is left to the model), and angles as float32 [Size].
func (b *Batch) Tensors() (images, angles *tensors.Tensor) {
	flat := make([]float32, len(b.Images))
	for ii, v := range b.Images {
		flat[ii] = float32(v)
	}
	images = tensors.FromFlatDataAndDimensions(flat, b.Size, b.Height, b.Width, imageops.ImageChannels)
	angles = tensors.FromFlatDataAndDimensions(append([]float32(nil), b.Angles...), b.Size)
	return
}

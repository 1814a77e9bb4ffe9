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
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/steering/internal/testutil"
	"github.com/gomlx/steering/pkg/augment"
	"github.com/gomlx/steering/pkg/drivelog"
	"github.com/gomlx/steering/pkg/imageops"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLoader serves frames from memory, keyed by the trimmed file name.
type memLoader map[string]*image.NRGBA

func (m memLoader) Load(dir, file string) (*image.NRGBA, error) {
	file = strings.TrimSpace(file)
	img, found := m[file]
	if !found {
		return nil, &imageops.LoadError{Path: file, Err: os.ErrNotExist}
	}
	return img, nil
}

// sampleCenterColor is a shade of testutil.CenterColor distinct for each sample, so images can be traced
// back to their sample.
func sampleCenterColor(ii int) color.NRGBA {
	c := testutil.CenterColor
	c.G += uint8(10 * ii)
	return c
}

// makeSamples creates numSamples samples with solid frames, and the loader serving them.
// Center frames have a distinct color per sample, side cameras use testutil.LeftColor and testutil.RightColor.
func makeSamples(numSamples, height, width int) ([]drivelog.Sample, memLoader) {
	loader := memLoader{}
	samples := make([]drivelog.Sample, numSamples)
	for ii := range samples {
		samples[ii] = drivelog.Sample{
			Center: fmt.Sprintf("center_%d.png", ii),
			Left:   fmt.Sprintf(" left_%d.png", ii),
			Right:  fmt.Sprintf(" right_%d.png", ii),
			Angle:  float64(ii)/float64(numSamples) - 0.5,
		}
		loader[samples[ii].Center] = testutil.Solid(height, width, sampleCenterColor(ii))
		loader[strings.TrimSpace(samples[ii].Left)] = testutil.Solid(height, width, testutil.LeftColor)
		loader[strings.TrimSpace(samples[ii].Right)] = testutil.Solid(height, width, testutil.RightColor)
	}
	return samples, loader
}

// preprocessedCenters maps each sample angle to its preprocessed center frame. Angles must be distinct.
func preprocessedCenters(t *testing.T, samples []drivelog.Sample, loader memLoader, cfg imageops.PreprocessConfig) map[float32][]uint8 {
	t.Helper()
	centers := make(map[float32][]uint8, len(samples))
	for _, s := range samples {
		img := must.M1(loader.Load("", s.Center))
		centers[float32(s.Angle)] = must.M1(imageops.Preprocess(img, cfg)).Pix
	}
	require.Len(t, centers, len(samples), "sample angles must be distinct")
	return centers
}

// smallConfig uses tiny frames, so that many batches can be generated quickly.
func smallConfig(loader imageops.Loader, batchSize int, training bool) Config {
	cfg := DefaultConfig("", batchSize, training)
	cfg.Loader = loader
	cfg.Preprocess = imageops.PreprocessConfig{CropTop: 4, CropBottom: 2, Width: 20, Height: 8}
	cfg.Augment.RangeX, cfg.Augment.RangeY = 4, 2
	return cfg
}

func TestNewErrors(t *testing.T) {
	samples, loader := makeSamples(3, testutil.FrameHeight, testutil.FrameWidth)
	cfg := DefaultConfig("", 4, true)
	cfg.Loader = loader

	_, err := New(cfg, nil)
	require.Error(t, err)

	badCfg := cfg
	badCfg.BatchSize = 0
	_, err = New(badCfg, samples)
	require.Error(t, err)

	badCfg = cfg
	badCfg.AugmentProbability = 1.5
	_, err = New(badCfg, samples)
	require.Error(t, err)

	badCfg = cfg
	badCfg.Augment.RangeX = -1
	_, err = New(badCfg, samples)
	require.Error(t, err)

	badCfg = cfg
	badCfg.Preprocess.Width = 0
	_, err = New(badCfg, samples)
	require.Error(t, err)

	// Frames too short to be cropped.
	shortSamples, shortLoader := makeSamples(2, 80, testutil.FrameWidth)
	badCfg = cfg
	badCfg.Loader = shortLoader
	_, err = New(badCfg, shortSamples)
	var shapeErr *imageops.ShapeError
	require.True(t, errors.As(err, &shapeErr), "expected ShapeError, got %v", err)
	assert.Equal(t, 80, shapeErr.Height)

	// Missing first frame.
	badCfg = cfg
	badCfg.Loader = memLoader{}
	_, err = New(badCfg, samples)
	var loadErr *imageops.LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)

	// Without probing, the generator is created and fails only when producing a batch.
	badCfg.ProbeShape = false
	gen := must.M1(New(badCfg, samples))
	_, err = gen.Next()
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
}

func TestBatchShape(t *testing.T) {
	samples, loader := makeSamples(4, testutil.FrameHeight, testutil.FrameWidth)
	cfg := DefaultConfig("", 3, true)
	cfg.Loader = loader
	gen := must.M1(New(cfg, samples))
	for range 5 {
		batch := must.M1(gen.Next())
		require.Equal(t, 3, batch.Size)
		require.Equal(t, imageops.ImageHeight, batch.Height)
		require.Equal(t, imageops.ImageWidth, batch.Width)
		require.Len(t, batch.Images, 3*imageops.ImageHeight*imageops.ImageWidth*imageops.ImageChannels)
		require.Len(t, batch.Angles, 3)
		for _, angle := range batch.Angles {
			// Angles are at most |0.5| + 0.2 (camera) + 0.2 (translation).
			require.LessOrEqual(t, float64(angle), 0.9+1e-6)
			require.GreaterOrEqual(t, float64(angle), -0.9-1e-6)
		}
	}
	stats := gen.Stats()
	assert.Equal(t, 5, stats.Batches)
	assert.Equal(t, 15, stats.Samples)
}

func TestStreamStability(t *testing.T) {
	samples, loader := makeSamples(7, 16, 32)
	gen := must.M1(New(smallConfig(loader, 4, true), samples))
	const numBatches = 1000
	for range numBatches {
		batch := must.M1(gen.Next())
		require.Equal(t, 4, batch.Size)
		require.Len(t, batch.Images, 4*8*20*3)
		require.Len(t, batch.Angles, 4)
	}
	stats := gen.Stats()
	assert.Equal(t, numBatches, stats.Batches)
	assert.Equal(t, 4*numBatches, stats.Samples)
	// Each pass over the 7 samples takes a new permutation.
	assert.Equal(t, (4*numBatches+6)/7, stats.Reshuffles)
	// About 60% of the samples are augmented.
	ratio := float64(stats.Augmented) / float64(stats.Samples)
	assert.InDelta(t, DefaultAugmentProbability, ratio, 0.05)
}

func TestEvaluation(t *testing.T) {
	samples, loader := makeSamples(5, testutil.FrameHeight, testutil.FrameWidth)
	cfg := DefaultConfig("", 5, false)
	cfg.Loader = loader
	gen := must.M1(New(cfg, samples))
	centers := preprocessedCenters(t, samples, loader, cfg.Preprocess)

	// Reference value of the first sample's frame.
	require.Equal(t, []uint8{88, 104, 226}, centers[float32(samples[0].Angle)][:3])

	for range 3 {
		batch := must.M1(gen.Next())
		// Each batch is exactly one pass over the samples, so every angle shows up once.
		seen := make(map[float32]bool)
		for ii := range batch.Size {
			angle := batch.Angles[ii]
			want, found := centers[angle]
			require.Truef(t, found, "unexpected angle %g", angle)
			require.Falsef(t, seen[angle], "angle %g repeated in batch", angle)
			seen[angle] = true

			// Image ii is the preprocessed center frame of the sample with angle Angles[ii].
			require.Equalf(t, want, batch.Image(ii), "image %d does not match the frame of the sample with angle %g", ii, angle)
		}
		require.Len(t, seen, len(samples))
	}
	assert.Zero(t, gen.Stats().Augmented)
}

// halfFrame returns a frame whose left half is c and right half is black, so that horizontal flips are visible.
func halfFrame(height, width int, c color.NRGBA) *image.NRGBA {
	img := testutil.Solid(height, width, color.NRGBA{A: 0xFF})
	for y := range height {
		for x := range width / 2 {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// cameraFromYUV tells which camera color a (possibly darkened or brightened) YUV pixel comes from.
func cameraFromYUV(pix []uint8) (augment.Camera, bool) {
	u, v := pix[1], pix[2]
	switch {
	case v > 140:
		return augment.Center, true
	case u > 140:
		return augment.Right, true
	case u < 120 && v < 120:
		return augment.Left, true
	}
	return 0, false
}

func TestTrainingPairing(t *testing.T) {
	// Small angles, so that the camera can be told from the magnitude of the augmented angle:
	// center in (0, 0.1), right in (0.1, 0.2), left above 0.2.
	const numSamples = 5
	const height, width = 16, 32
	loader := memLoader{}
	samples := make([]drivelog.Sample, numSamples)
	for ii := range samples {
		samples[ii] = drivelog.Sample{
			Center: fmt.Sprintf("center_%d.png", ii),
			Left:   fmt.Sprintf("left_%d.png", ii),
			Right:  fmt.Sprintf("right_%d.png", ii),
			Angle:  float64(ii+1) * 0.01,
		}
		loader[samples[ii].Center] = halfFrame(height, width, testutil.CenterColor)
		loader[samples[ii].Left] = halfFrame(height, width, testutil.LeftColor)
		loader[samples[ii].Right] = halfFrame(height, width, testutil.RightColor)
	}
	cfg := smallConfig(loader, numSamples, true)
	cfg.AugmentProbability = 1
	cfg.Augment.RangeX, cfg.Augment.RangeY = 0, 0
	gen := must.M1(New(cfg, samples))

	type key struct {
		camera  augment.Camera
		flipped bool
	}
	counts := make(map[key]int)
	for range 100 {
		batch := must.M1(gen.Next())
		for ii := range batch.Size {
			img := batch.Image(ii)
			// Pixels at row 4 and columns 2 and 17, far from the middle of the frame.
			leftPix := img[(4*cfg.Preprocess.Width+2)*3:][:3]
			rightPix := img[(4*cfg.Preprocess.Width+17)*3:][:3]
			flipped := leftPix[0] < 10
			colored := leftPix
			if flipped {
				require.Greaterf(t, rightPix[0], uint8(10), "image %d is black on both sides", ii)
				colored = rightPix
			} else {
				require.Lessf(t, rightPix[0], uint8(10), "image %d is colored on both sides", ii)
			}
			camera, ok := cameraFromYUV(colored)
			require.Truef(t, ok, "image %d has unknown color %v", ii, colored)

			angle := float64(batch.Angles[ii])
			if flipped {
				angle = -angle
			}
			switch camera {
			case augment.Center:
				require.Truef(t, angle > 0 && angle < 0.1, "center frame with angle %g", angle)
			case augment.Left:
				require.Truef(t, angle > 0.2 && angle < 0.3, "left frame with angle %g", angle)
			case augment.Right:
				require.Truef(t, angle < -0.1 && angle > -0.2, "right frame with angle %g", angle)
			}
			counts[key{camera, flipped}]++
		}
	}
	for _, camera := range []augment.Camera{augment.Left, augment.Right, augment.Center} {
		for _, flipped := range []bool{false, true} {
			assert.Greaterf(t, counts[key{camera, flipped}], 0, "camera %s, flipped=%v never seen", camera, flipped)
		}
	}
}

func TestPermutationCoverage(t *testing.T) {
	const numSamples = 6
	samples, loader := makeSamples(numSamples, 16, 32)
	gen := must.M1(New(smallConfig(loader, 4, false), samples))

	// 3 batches of 4 are exactly 2 passes over the 6 samples: each angle appears twice.
	counts := make(map[float32]int)
	for range 3 {
		batch := must.M1(gen.Next())
		for _, angle := range batch.Angles {
			counts[angle]++
		}
	}
	require.Len(t, counts, numSamples)
	for angle, count := range counts {
		require.Equalf(t, 2, count, "angle %g", angle)
	}
	assert.Equal(t, 2, gen.Stats().Reshuffles)
}

func TestReset(t *testing.T) {
	samples, loader := makeSamples(5, 16, 32)
	cfg := smallConfig(loader, 3, true)
	cfg.Seed = 17
	gen := must.M1(New(cfg, samples))

	var first []*Batch
	for range 4 {
		first = append(first, must.M1(gen.Next()))
	}
	gen.Reset()
	require.Zero(t, gen.Stats().Batches)
	for ii := range 4 {
		batch := must.M1(gen.Next())
		require.Equalf(t, first[ii].Angles, batch.Angles, "batch %d", ii)
		require.Equalf(t, first[ii].Images, batch.Images, "batch %d", ii)
	}

	// A generator with the same seed produces the same stream.
	gen2 := must.M1(New(cfg, samples))
	batch := must.M1(gen2.Next())
	require.Equal(t, first[0].Angles, batch.Angles)
}

func TestLoadErrorAbortsBatch(t *testing.T) {
	samples, loader := makeSamples(3, 16, 32)
	delete(loader, samples[2].Center)
	cfg := smallConfig(loader, 3, false)
	gen := must.M1(New(cfg, samples))
	_, err := gen.Next()
	var loadErr *imageops.LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
	assert.Contains(t, err.Error(), samples[2].Center)
}

func TestYield(t *testing.T) {
	samples, loader := makeSamples(4, 16, 32)
	gen := must.M1(New(smallConfig(loader, 2, false), samples))
	assert.Equal(t, "eval", gen.Name())

	spec, inputs, labels, err := gen.Yield()
	require.NoError(t, err)
	require.Nil(t, spec)
	require.Len(t, inputs, 1)
	require.Len(t, labels, 1)
	assert.Equal(t, []int{2, 8, 20, 3}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2}, labels[0].Shape().Dimensions)

	centers := preprocessedCenters(t, samples, loader, gen.Config().Preprocess)
	pixels := tensors.CopyFlatData[float32](inputs[0])
	angles := tensors.CopyFlatData[float32](labels[0])
	imageSize := 8 * 20 * 3
	require.Len(t, pixels, 2*imageSize)
	require.Len(t, angles, 2)
	for ii, angle := range angles {
		want, found := centers[angle]
		require.Truef(t, found, "unexpected angle %g", angle)
		for pos, v := range want {
			require.Equalf(t, float32(v), pixels[ii*imageSize+pos], "image %d, position %d", ii, pos)
		}
	}
}

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

// Package batcher produces an endless stream of preprocessed (and, for training, augmented) batches
// of camera frames and steering angles.
//
// A Generator is an explicit iterator: each call to Generator.Next fills a new Batch, resuming from where the
// previous call stopped. It also implements train.Dataset, so it can be fed directly to a GoMLX training loop.
// Since the stream never ends, use it with `train.Loop.RunSteps()`, not `RunEpochs()`.
package batcher

import (
	"image"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/steering/pkg/augment"
	"github.com/gomlx/steering/pkg/drivelog"
	"github.com/gomlx/steering/pkg/imageops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultAugmentProbability is the probability that a training sample is augmented. The others
// use the center camera unchanged.
const DefaultAugmentProbability = 0.6

// Config of a Generator.
type Config struct {
	// Name of the dataset, used by train.Dataset.
	Name string

	// Dir is the recording directory: sample paths are relative to it.
	Dir string

	// BatchSize is the number of samples in each batch.
	BatchSize int

	// Training enables augmentation. Evaluation generators (Training == false) always yield
	// the preprocessed center frame with its recorded angle.
	Training bool

	// AugmentProbability is the probability of augmenting a sample, when Training is set.
	AugmentProbability float64

	// Seed of the random source used for shuffling and augmentation.
	// Independent generators should use different seeds.
	Seed int64

	// Preprocess geometry. All yielded images are Preprocess.Height x Preprocess.Width x 3.
	Preprocess imageops.PreprocessConfig

	// Augment configures the augmentation.
	Augment augment.Config

	// Loader reads the frames. If nil, imageops.FileLoader is used.
	Loader imageops.Loader

	// ProbeShape makes New load the center frame of the first sample and fail with *imageops.ShapeError
	// if it can't be cropped.
	ProbeShape bool
}

// DefaultConfig returns a configuration with the default values for the given directory and batch size.
func DefaultConfig(dir string, batchSize int, training bool) Config {
	name := "eval"
	if training {
		name = "train"
	}
	return Config{
		Name:               name,
		Dir:                dir,
		BatchSize:          batchSize,
		Training:           training,
		AugmentProbability: DefaultAugmentProbability,
		Preprocess:         imageops.DefaultPreprocessConfig,
		Augment:            augment.DefaultConfig,
		ProbeShape:         true,
	}
}

// Assert Generator is a train.Dataset.
var _ train.Dataset = (*Generator)(nil)

// Stats of what a Generator produced so far.
type Stats struct {
	Batches, Samples, Augmented, Reshuffles int
}

// Generator yields batches forever, cycling over random permutations of the samples.
//
// A Generator is not safe for concurrent use. To produce batches in parallel, create one
// Generator per goroutine, each with a different Config.Seed.
type Generator struct {
	cfg     Config
	samples []drivelog.Sample
	loader  imageops.Loader
	rng     *rand.Rand

	// perm is the current permutation of sample indices, and cursor the position of the next one.
	perm   []int
	cursor int

	stats Stats
}

// New creates a Generator over samples. The samples are not copied and must not be changed while
// the Generator is in use.
func New(cfg Config, samples []drivelog.Sample) (*Generator, error) {
	if len(samples) == 0 {
		return nil, errors.New("batcher requires at least one sample")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d: it must be > 0", cfg.BatchSize)
	}
	if cfg.AugmentProbability < 0 || cfg.AugmentProbability > 1 {
		return nil, errors.Errorf("invalid augment probability %g: it must be in [0, 1]", cfg.AugmentProbability)
	}
	if err := cfg.Preprocess.Validate(); err != nil {
		return nil, err
	}
	if cfg.Augment.RangeX < 0 || cfg.Augment.RangeY < 0 {
		return nil, errors.Errorf("invalid translation ranges (%g, %g): they must be >= 0",
			cfg.Augment.RangeX, cfg.Augment.RangeY)
	}
	g := &Generator{
		cfg:     cfg,
		samples: samples,
		loader:  cfg.Loader,
	}
	if g.loader == nil {
		g.loader = imageops.FileLoader{}
	}
	if cfg.ProbeShape {
		img, err := g.loader.Load(cfg.Dir, samples[0].Center)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to probe the image shape")
		}
		bounds := img.Bounds()
		if err := cfg.Preprocess.CheckSource(bounds.Dy(), bounds.Dx()); err != nil {
			return nil, err
		}
	}
	g.Reset()
	return g, nil
}

// Config returns the configuration of the Generator.
func (g *Generator) Config() Config { return g.cfg }

// Stats returns counters of what was produced since the last Reset.
func (g *Generator) Stats() Stats { return g.stats }

// Reset restarts the Generator: it re-seeds the random source and discards the current permutation,
// so the stream of batches is replayed from the start.
func (g *Generator) Reset() {
	g.rng = rand.New(rand.NewSource(g.cfg.Seed))
	g.perm = nil
	g.cursor = 0
	g.stats = Stats{}
}

// nextIndex returns the next sample index, drawing a new permutation when the current one is exhausted.
func (g *Generator) nextIndex() int {
	if g.cursor >= len(g.perm) {
		g.perm = g.rng.Perm(len(g.samples))
		g.cursor = 0
		g.stats.Reshuffles++
		klog.V(1).Infof("batcher %q: new permutation of %d samples (pass #%d)",
			g.cfg.Name, len(g.samples), g.stats.Reshuffles)
	}
	idx := g.perm[g.cursor]
	g.cursor++
	return idx
}

// Next fills and returns a new Batch.
//
// Any error (a frame that can't be loaded or cropped) aborts the batch: the Generator should be considered broken,
// since its stream position is lost.
func (g *Generator) Next() (*Batch, error) {
	batch := NewBatch(g.cfg.BatchSize, g.cfg.Preprocess)
	for slot := 0; slot < batch.Size; slot++ {
		idx := g.nextIndex()
		sample := &g.samples[idx]
		img, angle, augmented, err := g.rawSample(sample)
		if err != nil {
			klog.V(2).Infof("batcher %q: sample #%d failed (augmented=%v): %v", g.cfg.Name, idx, augmented, err)
			return nil, errors.WithMessagef(err, "batcher %q: sample #%d (%s)", g.cfg.Name, idx, sample.Center)
		}
		yuv, err := imageops.Preprocess(img, g.cfg.Preprocess)
		if err != nil {
			return nil, errors.WithMessagef(err, "batcher %q: sample #%d (%s)", g.cfg.Name, idx, sample.Center)
		}
		batch.Set(slot, yuv, angle)
		g.stats.Samples++
		if augmented {
			g.stats.Augmented++
		}
	}
	g.stats.Batches++
	return batch, nil
}

// rawSample returns the frame, before preprocessing, and the angle for sample.
func (g *Generator) rawSample(sample *drivelog.Sample) (img *image.NRGBA, angle float64, augmented bool, err error) {
	if g.cfg.Training && g.rng.Float64() < g.cfg.AugmentProbability {
		img, angle, err = g.cfg.Augment.Augment(g.rng, g.loader, g.cfg.Dir,
			sample.Center, sample.Left, sample.Right, sample.Angle)
		return img, angle, true, err
	}
	img, err = g.loader.Load(g.cfg.Dir, sample.Center)
	return img, sample.Angle, false, err
}

// Name implements train.Dataset.
func (g *Generator) Name() string { return g.cfg.Name }

// Yield implements train.Dataset. It never returns io.EOF.
//
// It returns one input tensor, the images shaped [BatchSize, Height, Width, 3] (float32, YUV values in [0, 255]),
// and one label tensor, the angles shaped [BatchSize] (float32). The spec is nil.
func (g *Generator) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	var batch *Batch
	batch, err = g.Next()
	if err != nil {
		return
	}
	images, angles := batch.Tensors()
	inputs = []*tensors.Tensor{images}
	labels = []*tensors.Tensor{angles}
	return
}

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

package main

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/steering/internal/workerspool"
	"github.com/gomlx/steering/pkg/batcher"
	"github.com/gomlx/steering/pkg/drivelog"
	"github.com/gomlx/steering/pkg/imageops"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row == lgtable.HeaderRow:
				return headerRowStyle
			case row%2 == 0:
				s = evenRowStyle
			default:
				s = oddRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		}).
		Headers(headers...)
}

func parametersTable(dir string) *lgtable.Table {
	table := newTable("parameter", "value")
	table.Row("data", dir)
	table.Row("log", *flagLog)
	table.Row("test_size", fmt.Sprintf("%g", *flagTestSize))
	table.Row("batch", humanize.Comma(int64(*flagBatchSize)))
	table.Row("steps", humanize.Comma(int64(*flagSteps)))
	table.Row("seed", fmt.Sprintf("%d", *flagSeed))
	table.Row("balance", fmt.Sprintf("%v (%d bins, %s samples per bin)",
		*flagBalance, *flagBins, humanize.Comma(int64(*flagSamplesPerBin))))
	table.Row("image", fmt.Sprintf("%dx%dx%d YUV", imageops.ImageHeight, imageops.ImageWidth, imageops.ImageChannels))
	table.Row("augment_probability", fmt.Sprintf("%g", batcher.DefaultAugmentProbability))
	return table
}

func balanceTable(report *drivelog.BalanceReport) *lgtable.Table {
	table := newTable("bin", "before", "after")
	for binIdx := range report.CountsBefore {
		if report.CountsBefore[binIdx] == 0 {
			continue
		}
		table.Row(
			fmt.Sprintf("[%+.3f, %+.3f)", report.Dividers[binIdx], report.Dividers[binIdx+1]),
			humanize.Comma(int64(report.CountsBefore[binIdx])),
			humanize.Comma(int64(report.CountsAfter[binIdx])))
	}
	table.Row("removed", humanize.Comma(int64(report.Removed)), "")
	return table
}

func statsTable(gens ...*batcher.Generator) *lgtable.Table {
	table := newTable("generator", "batches", "samples", "augmented", "permutations", "bytes")
	for _, gen := range gens {
		stats := gen.Stats()
		bytes := uint64(stats.Samples) * uint64(gen.Config().Preprocess.ElementsPerImage())
		table.Row(gen.Name(),
			humanize.Comma(int64(stats.Batches)),
			humanize.Comma(int64(stats.Samples)),
			humanize.Comma(int64(stats.Augmented)),
			humanize.Comma(int64(stats.Reshuffles)),
			humanize.Bytes(bytes))
	}
	return table
}

// pullBatches pulls numSteps batches from gen, displaying a progress bar.
func pullBatches(gen *batcher.Generator, numSteps int) error {
	bar := progressbar.NewOptions(numSteps,
		progressbar.OptionSetDescription(fmt.Sprintf("%-6s", gen.Name())),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionShowCount())
	for range numSteps {
		if _, err := gen.Next(); err != nil {
			return err
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()
	return nil
}

// saveSamples augments numSamples random training samples and saves the frames to outDir. The steering angle
// after augmentation is part of the file name.
//
// Augmentation consumes rng, so it runs sequentially. Only the PNG encoding runs in parallel.
func saveSamples(cfg batcher.Config, samples []drivelog.Sample, numSamples int, rng *rand.Rand, outDir string) error {
	loader := imageops.FileLoader{}
	pool := workerspool.New(-1)
	for ii := range numSamples {
		s := samples[rng.Intn(len(samples))]
		img, angle, err := cfg.Augment.Augment(rng, loader, cfg.Dir, s.Center, s.Left, s.Right, s.Angle)
		if err != nil {
			_ = pool.Wait()
			return err
		}
		imgPath := filepath.Join(outDir, fmt.Sprintf("sample_%03d_angle_%+.3f.png", ii, angle))
		pool.Go(func() error {
			if err := imaging.Save(img, imgPath); err != nil {
				return errors.Wrapf(err, "failed to save augmented sample to %q", imgPath)
			}
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return err
	}
	klog.Infof("%d augmented samples saved to %q", numSamples, outDir)
	return nil
}

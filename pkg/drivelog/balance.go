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

package drivelog

import (
	"image/color"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Defaults for Balance.
const (
	DefaultNumBins       = 25
	DefaultSamplesPerBin = 400
)

// BalanceReport describes the angle histograms before and after Balance.
type BalanceReport struct {
	// Dividers of the bins: bin i holds angles in [Dividers[i], Dividers[i+1]).
	Dividers []float64

	// CountsBefore and CountsAfter are the number of samples in each bin.
	CountsBefore, CountsAfter []float64

	// Removed is the number of samples dropped.
	Removed int
}

// Dividers returns numBins+1 equally spaced dividers covering all angles. The last divider is
// slightly larger than the maximum angle, so every angle falls in a half-open bin.
//
// It returns an error if there are no angles or if any of them is NaN or infinite.
func Dividers(angles []float64, numBins int) ([]float64, error) {
	if numBins <= 0 {
		return nil, errors.Errorf("invalid number of bins %d: it must be > 0", numBins)
	}
	if err := checkFinite(angles); err != nil {
		return nil, err
	}
	minAngle, maxAngle := floats.Min(angles), floats.Max(angles)
	if maxAngle == minAngle {
		maxAngle = minAngle + 1
	}
	dividers := floats.Span(make([]float64, numBins+1), minAngle, maxAngle)
	dividers[numBins] = math.Nextafter(maxAngle, math.Inf(1))
	return dividers, nil
}

// checkFinite returns an error if angles is empty or holds a NaN or infinite value.
func checkFinite(angles []float64) error {
	if len(angles) == 0 {
		return errors.New("no steering angles")
	}
	for ii, angle := range angles {
		if math.IsNaN(angle) || math.IsInf(angle, 0) {
			return errors.Errorf("steering angle #%d is %g: it must be finite", ii, angle)
		}
	}
	return nil
}

// Histogram counts the angles falling in each bin defined by dividers.
func Histogram(angles, dividers []float64) []float64 {
	if len(angles) == 0 {
		return make([]float64, len(dividers)-1)
	}
	sorted := slices.Clone(angles)
	sort.Float64s(sorted)
	return stat.Histogram(nil, dividers, sorted, nil)
}

// binIndex returns the bin of angle, assuming it is within the dividers range.
func binIndex(angle float64, dividers []float64) int {
	idx := sort.SearchFloat64s(dividers, angle)
	if idx == len(dividers) || dividers[idx] > angle {
		idx--
	}
	return max(0, min(idx, len(dividers)-2))
}

// Balance limits the number of samples in each bin of the angle histogram to samplesPerBin.
//
// Recordings are dominated by driving straight (angle ~0), which biases the model. Balance shuffles the members of
// each over-represented bin and drops the excess. The kept samples preserve their original order.
func Balance(samples []Sample, numBins, samplesPerBin int, rng *rand.Rand) ([]Sample, *BalanceReport, error) {
	if numBins <= 0 {
		return nil, nil, errors.Errorf("invalid number of bins %d: it must be > 0", numBins)
	}
	if samplesPerBin <= 0 {
		return nil, nil, errors.Errorf("invalid samples per bin %d: it must be > 0", samplesPerBin)
	}
	if len(samples) == 0 {
		return nil, nil, errors.New("no samples to balance")
	}
	angles := Angles(samples)
	dividers, err := Dividers(angles, numBins)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to balance samples")
	}
	report := &BalanceReport{Dividers: dividers}
	report.CountsBefore = Histogram(angles, report.Dividers)

	bins := make([][]int, numBins)
	for ii, angle := range angles {
		binIdx := binIndex(angle, report.Dividers)
		bins[binIdx] = append(bins[binIdx], ii)
	}
	drop := make([]bool, len(samples))
	for _, members := range bins {
		if len(members) <= samplesPerBin {
			continue
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		for _, idx := range members[samplesPerBin:] {
			drop[idx] = true
		}
	}

	kept := make([]Sample, 0, len(samples))
	for ii, s := range samples {
		if drop[ii] {
			report.Removed++
			continue
		}
		kept = append(kept, s)
	}
	report.CountsAfter = Histogram(Angles(kept), report.Dividers)
	return kept, report, nil
}

// PlotHistogram saves a histogram of the steering angles to filePath. The format is given by the extension
// (e.g. ".png", ".svg"). If samplesPerBin > 0, a horizontal line marks the limit used by Balance.
func PlotHistogram(samples []Sample, numBins, samplesPerBin int, filePath string) error {
	if len(samples) == 0 {
		return errors.New("no samples to plot")
	}
	angles := Angles(samples)
	if err := checkFinite(angles); err != nil {
		return errors.WithMessage(err, "failed to plot histogram")
	}
	p := plot.New()
	p.Title.Text = "Steering angles"
	p.X.Label.Text = "angle"
	p.Y.Label.Text = "samples"

	hist, err := plotter.NewHist(plotter.Values(angles), numBins)
	if err != nil {
		return errors.Wrap(err, "failed to create histogram")
	}
	p.Add(hist)

	if samplesPerBin > 0 {
		limit, err := plotter.NewLine(plotter.XYs{
			{X: floats.Min(angles), Y: float64(samplesPerBin)},
			{X: floats.Max(angles), Y: float64(samplesPerBin)},
		})
		if err != nil {
			return errors.Wrap(err, "failed to create samples per bin line")
		}
		limit.Color = color.RGBA{R: 0xD0, G: 0x20, B: 0x20, A: 0xFF}
		p.Add(limit)
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save histogram to %q", filePath)
	}
	return nil
}

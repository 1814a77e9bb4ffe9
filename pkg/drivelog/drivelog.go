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

// Package drivelog reads the driving log recorded by the simulator and prepares it for training:
// splitting it into training and validation samples, and balancing the distribution of steering angles.
package drivelog

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// DefaultLogName is the file name of the log written by the simulator in the recording directory.
const DefaultLogName = "driving_log.csv"

// Columns of the driving log, in order.
var Columns = []string{"center", "left", "right", "steering", "throttle", "brake", "speed"}

// Sample is one recorded driving instant: the frames of the three cameras and the steering angle.
//
// The paths are relative to the recording directory, and may be padded with whitespace.
type Sample struct {
	Center, Left, Right string

	// Angle is the steering angle, usually in [-1, 1].
	Angle float64

	// Throttle, Brake and Speed are recorded by the simulator, but not used for training the steering model.
	Throttle, Brake, Speed float64
}

// ReadLog reads the driving log dir/name. See ParseLog.
func ReadLog(dir, name string) ([]Sample, error) {
	logPath := filepath.Join(dir, name)
	contents, err := os.ReadFile(logPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read driving log")
	}
	samples, err := ParseLog(contents)
	if err != nil {
		return nil, errors.WithMessagef(err, "while parsing driving log %q", logPath)
	}
	return samples, nil
}

// ParseLog parses the contents of a driving log: a CSV file with the 7 Columns.
// A header line is optional, and detected by its first field being "center".
func ParseLog(contents []byte) ([]Sample, error) {
	if len(bytes.TrimSpace(contents)) == 0 {
		return nil, errors.New("driving log is empty")
	}
	firstLine, _, _ := bytes.Cut(contents, []byte("\n"))
	firstField, _, _ := bytes.Cut(firstLine, []byte(","))
	hasHeader := strings.EqualFold(strings.TrimSpace(string(firstField)), Columns[0])

	types := make(map[string]series.Type, len(Columns))
	for _, col := range Columns {
		types[col] = series.String
	}
	df := dataframe.ReadCSV(bytes.NewReader(contents),
		dataframe.HasHeader(hasHeader), dataframe.Names(Columns...),
		dataframe.DetectTypes(false), dataframe.WithTypes(types))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse CSV")
	}

	numRows := df.Nrow()
	if numRows == 0 {
		return nil, errors.New("driving log has no rows")
	}
	samples := make([]Sample, numRows)
	centers, lefts, rights := df.Col("center").Records(), df.Col("left").Records(), df.Col("right").Records()
	for ii := range samples {
		samples[ii].Center, samples[ii].Left, samples[ii].Right = centers[ii], lefts[ii], rights[ii]
	}
	for _, field := range []struct {
		col string
		set func(s *Sample, v float64)
	}{
		{"steering", func(s *Sample, v float64) { s.Angle = v }},
		{"throttle", func(s *Sample, v float64) { s.Throttle = v }},
		{"brake", func(s *Sample, v float64) { s.Brake = v }},
		{"speed", func(s *Sample, v float64) { s.Speed = v }},
	} {
		for ii, record := range df.Col(field.col).Records() {
			v, err := strconv.ParseFloat(strings.TrimSpace(record), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: invalid %s value %q", ii, field.col, record)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("row %d: invalid %s value %q: it must be finite", ii, field.col, record)
			}
			field.set(&samples[ii], v)
		}
	}
	return samples, nil
}

// Angles returns the steering angles of the samples.
func Angles(samples []Sample) []float64 {
	angles := make([]float64, len(samples))
	for ii, s := range samples {
		angles[ii] = s.Angle
	}
	return angles
}

// Split shuffles the samples and splits them into training and validation sets.
// The validation set gets ceil(testSize*len(samples)) samples, the training set gets the rest.
func Split(samples []Sample, testSize float64, rng *rand.Rand) (train, validation []Sample, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.Errorf("invalid test size %g: it must be in the open interval (0, 1)", testSize)
	}
	numValidation := int(math.Ceil(testSize * float64(len(samples))))
	if numValidation >= len(samples) {
		return nil, nil, errors.Errorf("test size %g with %d samples leaves no training samples", testSize, len(samples))
	}
	perm := rng.Perm(len(samples))
	validation = make([]Sample, 0, numValidation)
	train = make([]Sample, 0, len(samples)-numValidation)
	for ii, idx := range perm {
		if ii < numValidation {
			validation = append(validation, samples[idx])
		} else {
			train = append(train, samples[idx])
		}
	}
	return train, validation, nil
}

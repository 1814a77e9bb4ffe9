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

// Package testutil creates synthetic camera frames and driving logs for tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Size of the frames recorded by the simulator.
const (
	FrameHeight = 160
	FrameWidth  = 320
)

// Colors used for each camera, so tests can tell which file was loaded.
var (
	CenterColor = color.NRGBA{R: 200, G: 40, B: 40, A: 255}
	LeftColor   = color.NRGBA{R: 40, G: 200, B: 40, A: 255}
	RightColor  = color.NRGBA{R: 40, G: 40, B: 200, A: 255}
)

// Solid returns a height x width frame filled with c.
func Solid(height, width int, c color.NRGBA) *image.NRGBA {
	return imaging.New(width, height, c)
}

// Gradient returns a frame whose colors vary with the position, so that geometric
// transformations are visible in the pixel values.
func Gradient(height, width int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// WriteImage saves img under dir/name, creating subdirectories as needed.
func WriteImage(t testing.TB, dir, name string, img image.Image) {
	t.Helper()
	imgPath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(imgPath), 0755))
	require.NoError(t, imaging.Save(img, imgPath))
}

// Row of a synthetic driving log.
type Row struct {
	Center, Left, Right string
	Angle               float64
}

// WriteCameras writes numRows triplets of solid frames (CenterColor, LeftColor, RightColor) under dir/IMG,
// and returns the corresponding rows. The file names in the rows are padded with spaces, like in the simulator log.
func WriteCameras(t testing.TB, dir string, numRows, height, width int) []Row {
	t.Helper()
	rows := make([]Row, numRows)
	for ii := range rows {
		names := [3]string{}
		for camIdx, cam := range []struct {
			prefix string
			color  color.NRGBA
		}{{"center", CenterColor}, {"left", LeftColor}, {"right", RightColor}} {
			names[camIdx] = fmt.Sprintf("IMG/%s_%04d.png", cam.prefix, ii)
			WriteImage(t, dir, names[camIdx], Solid(height, width, cam.color))
		}
		rows[ii] = Row{
			Center: names[0],
			Left:   " " + names[1],
			Right:  " " + names[2],
			Angle:  float64(ii%5)*0.1 - 0.2,
		}
	}
	return rows
}

// WriteLog writes rows as a simulator driving log (7 columns) to dir/name, optionally with a header.
func WriteLog(t testing.TB, dir, name string, withHeader bool, rows []Row) {
	t.Helper()
	var sb strings.Builder
	if withHeader {
		sb.WriteString("center,left,right,steering,throttle,brake,speed\n")
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(&sb, "%s,%s,%s, %g, 0.5, 0, 30.1\n", row.Center, row.Left, row.Right, row.Angle)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0644))
}

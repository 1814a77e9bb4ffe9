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
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Loader reads one camera frame. The file name is relative to dir and may be padded with whitespace,
// as it comes in the driving log.
type Loader interface {
	Load(dir, file string) (*image.NRGBA, error)
}

// LoadError is returned when a frame is missing or can't be decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying file system or decoding error.
func (e *LoadError) Unwrap() error { return e.Err }

// FileLoader implements Loader by reading frames from the file system.
// Any format registered with imaging works (PNG, JPEG, GIF, BMP, TIFF).
type FileLoader struct{}

var _ Loader = FileLoader{}

// Load implements Loader. There is no caching: every call reads the file.
func (FileLoader) Load(dir, file string) (*image.NRGBA, error) {
	imgPath := filepath.Join(dir, strings.TrimSpace(file))
	img, err := imaging.Open(imgPath)
	if err != nil {
		return nil, &LoadError{Path: imgPath, Err: err}
	}
	return ToRGB(img), nil
}

// ToRGB copies img into a new *image.NRGBA anchored at (0, 0), with alpha set to opaque.
func ToRGB(img image.Image) *image.NRGBA {
	rgb := imaging.Clone(img)
	for ii := 3; ii < len(rgb.Pix); ii += 4 {
		rgb.Pix[ii] = 0xFF
	}
	return rgb
}

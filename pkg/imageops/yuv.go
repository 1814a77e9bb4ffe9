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
	"image"
	"math"
)

// YUV image, stored as [Height, Width, 3] with channels in Y, U, V order.
type YUV struct {
	Pix           []uint8
	Height, Width int
}

// NewYUV returns a zero-filled YUV image.
func NewYUV(height, width int) *YUV {
	return &YUV{
		Pix:    make([]uint8, height*width*ImageChannels),
		Height: height,
		Width:  width,
	}
}

// PixOffset returns the index of the Y value of the pixel at (row, col).
func (p *YUV) PixOffset(row, col int) int {
	return (row*p.Width + col) * ImageChannels
}

// At returns the Y, U and V values of the pixel at (row, col).
func (p *YUV) At(row, col int) (y, u, v uint8) {
	off := p.PixOffset(row, col)
	return p.Pix[off], p.Pix[off+1], p.Pix[off+2]
}

// Coefficients of the RGB to YUV conversion (the same as OpenCV's COLOR_RGB2YUV).
const (
	yuvKR     = 0.299
	yuvKG     = 0.587
	yuvKB     = 0.114
	yuvCb     = 0.492
	yuvCr     = 0.877
	yuvOffset = 128.0
)

// ToYUV converts an RGB image to YUV.
func ToYUV(img *image.NRGBA) *YUV {
	bounds := img.Bounds()
	yuv := NewYUV(bounds.Dy(), bounds.Dx())
	pos := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := float64(img.Pix[off]), float64(img.Pix[off+1]), float64(img.Pix[off+2])
			luma := yuvKR*r + yuvKG*g + yuvKB*b
			yuv.Pix[pos] = saturateUint8(luma)
			yuv.Pix[pos+1] = saturateUint8(yuvCb*(b-luma) + yuvOffset)
			yuv.Pix[pos+2] = saturateUint8(yuvCr*(r-luma) + yuvOffset)
			pos += ImageChannels
			off += 4
		}
	}
	return yuv
}

func saturateUint8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vision

import (
	"image"
)

// Grayscale converts img to 8-bit luminance. The BT.601 weights are applied
// with red and blue swapped (0.114 R, 0.587 G, 0.299 B), which reproduces a
// BGR-to-gray conversion run over RGB page samples; the keep thresholds were
// tuned against that weighting.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * gray.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			gray.Pix[row+x-b.Min.X] = uint8((7471*r + 38470*g + 19595*bl + 1<<15) >> 24)
		}
	}
	return gray
}

// EdgeMap is a binary edge image. Edges are 255, everything else is 0.
type EdgeMap struct {
	Width, Height int
	Pix           []uint8
}

// At reports whether (x, y) is an edge pixel.
func (e *EdgeMap) At(x, y int) bool {
	return e.Pix[y*e.Width+x] != 0
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for _, p := range e.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Image returns the edge map as a grayscale image.
func (e *EdgeMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, e.Width, e.Height))
	copy(img.Pix, e.Pix)
	return img
}

const (
	cannyShift = 15
	// tan(22.5 degrees) in cannyShift fixed point.
	tg22 = 13573
)

// Canny computes an edge map with a 3x3 Sobel aperture, L1 gradient
// magnitude, non-maximum suppression and hysteresis thresholding between
// low and high. Borders are replicated, and no smoothing is applied first.
func Canny(gray *image.Gray, low, high int) *EdgeMap {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	edges := &EdgeMap{Width: w, Height: h, Pix: make([]uint8, w*h)}
	if w == 0 || h == 0 {
		return edges
	}
	if low > high {
		low, high = high, low
	}

	px := func(x, y int) int {
		x = clamp(x, 0, w-1)
		y = clamp(y, 0, h-1)
		return int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	dxs := make([]int, w*h)
	dys := make([]int, w*h)
	mag := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := -px(x-1, y-1) + px(x+1, y-1) -
				2*px(x-1, y) + 2*px(x+1, y) -
				px(x-1, y+1) + px(x+1, y+1)
			dy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			i := y*w + x
			dxs[i], dys[i] = dx, dy
			mag[i] = abs(dx) + abs(dy)
		}
	}

	magAt := func(x, y int) int {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// 0: not an edge, 1: weak candidate, 2: strong edge
	state := make([]uint8, w*h)
	stack := make([]int, 0, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			dx, dy := dxs[i], dys[i]
			xs := abs(dx)
			ys := abs(dy) << cannyShift
			tg22x := xs * tg22

			var isMax bool
			if ys < tg22x {
				isMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			} else {
				tg67x := tg22x + (xs << (cannyShift + 1))
				if ys > tg67x {
					isMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
				} else {
					s := 1
					if (dx ^ dy) < 0 {
						s = -1
					}
					isMax = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
				}
			}
			if !isMax {
				continue
			}
			if m > high {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		edges.Pix[i] = 255
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	return edges
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

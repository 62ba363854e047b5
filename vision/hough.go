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
	"math"
	"math/rand/v2"
)

// Segment is a detected line segment between two edge pixels.
type Segment struct {
	From, To image.Point
}

// HoughParams configures probabilistic Hough line detection.
type HoughParams struct {
	Rho           float64 // distance resolution in pixels
	Theta         float64 // angle resolution in radians
	Threshold     int     // minimum accumulator votes
	MinLineLength int
	MaxLineGap    int
	Seed          uint64
}

// houghSeed matches the default state of OpenCV's RNG so results are reproducible.
const houghSeed = 0xFFFFFFFF

const fixedShift = 16

// HoughLinesP runs the progressive probabilistic Hough transform over edges.
// Edge pixels are visited in a seeded random order; each vote that reaches
// Threshold triggers a walk along the winning direction, and the pixels of a
// walk that spans MinLineLength are removed from the accumulator.
func HoughLinesP(edges *EdgeMap, p HoughParams) []Segment {
	w, h := edges.Width, edges.Height
	if w == 0 || h == 0 || p.Rho <= 0 || p.Theta <= 0 {
		return nil
	}

	numAngle := int(math.Round(math.Pi / p.Theta))
	numRho := int(math.Round(float64((w+h)*2+1) / p.Rho))
	accum := make([]int, numAngle*numRho)

	cosTab := make([]float64, numAngle)
	sinTab := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		ang := float64(n) * p.Theta
		cosTab[n] = math.Cos(ang) / p.Rho
		sinTab[n] = math.Sin(ang) / p.Rho
	}

	mask := make([]bool, w*h)
	points := make([]image.Point, 0, edges.Count())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.At(x, y) {
				mask[y*w+x] = true
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}

	rhoIndex := func(n, x, y int) int {
		r := int(math.Round(float64(x)*cosTab[n] + float64(y)*sinTab[n]))
		return n*numRho + r + (numRho-1)/2
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9E3779B97F4A7C15))
	var lines []Segment

	// walk follows the line through (x, y) in direction (a, b). visit is
	// called for every in-bounds pixel until it returns false.
	walk := func(x0, y0 int, a, b float64, reverse bool, visit func(x, y int) bool) {
		var xflag bool
		var dx0, dy0 int
		if math.Abs(a) > math.Abs(b) {
			xflag = true
			dx0 = 1
			if a <= 0 {
				dx0 = -1
			}
			dy0 = int(math.Round(b * (1 << fixedShift) / math.Abs(a)))
			y0 = (y0 << fixedShift) + (1 << (fixedShift - 1))
		} else {
			dy0 = 1
			if b <= 0 {
				dy0 = -1
			}
			dx0 = int(math.Round(a * (1 << fixedShift) / math.Abs(b)))
			x0 = (x0 << fixedShift) + (1 << (fixedShift - 1))
		}
		dx, dy := dx0, dy0
		if reverse {
			dx, dy = -dx, -dy
		}
		for x, y := x0, y0; ; x, y = x+dx, y+dy {
			var px, py int
			if xflag {
				px, py = x, y>>fixedShift
			} else {
				px, py = x>>fixedShift, y
			}
			if px < 0 || px >= w || py < 0 || py >= h {
				return
			}
			if !visit(px, py) {
				return
			}
		}
	}

	for count := len(points); count > 0; count-- {
		idx := rng.IntN(count)
		pt := points[idx]
		points[idx] = points[count-1]

		if !mask[pt.Y*w+pt.X] {
			continue
		}

		maxVal := p.Threshold - 1
		maxN := 0
		for n := 0; n < numAngle; n++ {
			i := rhoIndex(n, pt.X, pt.Y)
			accum[i]++
			if accum[i] > maxVal {
				maxVal = accum[i]
				maxN = n
			}
		}
		if maxVal < p.Threshold {
			continue
		}

		a := -sinTab[maxN] * p.Rho
		b := cosTab[maxN] * p.Rho

		var ends [2]image.Point
		for k := 0; k < 2; k++ {
			gap := 0
			walk(pt.X, pt.Y, a, b, k > 0, func(x, y int) bool {
				if mask[y*w+x] {
					gap = 0
					ends[k] = image.Point{X: x, Y: y}
				} else {
					gap++
					if gap > p.MaxLineGap {
						return false
					}
				}
				return true
			})
		}

		good := abs(ends[1].X-ends[0].X) >= p.MinLineLength ||
			abs(ends[1].Y-ends[0].Y) >= p.MinLineLength

		for k := 0; k < 2; k++ {
			walk(pt.X, pt.Y, a, b, k > 0, func(x, y int) bool {
				i := y*w + x
				if mask[i] {
					if good {
						for n := 0; n < numAngle; n++ {
							accum[rhoIndex(n, x, y)]--
						}
					}
					mask[i] = false
				}
				return x != ends[k].X || y != ends[k].Y
			})
		}

		if good {
			lines = append(lines, Segment{From: ends[0], To: ends[1]})
		}
	}

	return lines
}

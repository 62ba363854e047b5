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
)

const (
	cannyLow  = 0
	cannyHigh = 100

	// MinSegments is the number of detected lines at which a page is kept.
	MinSegments = 10
)

// PageParams returns the Hough parameters used for a rendered page of the
// given size: 1px and 1 degree resolution, 30 votes, a minimum length of 10%
// of the mean side and a 1px gap.
func PageParams(width, height int) HoughParams {
	return HoughParams{
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     30,
		MinLineLength: int(float64(height+width) / 2 * 0.10),
		MaxLineGap:    1,
		Seed:          houghSeed,
	}
}

// DetectSegments runs the page edge and line pipeline over img.
func DetectSegments(img image.Image) []Segment {
	gray := Grayscale(img)
	b := gray.Bounds()
	edges := Canny(gray, cannyLow, cannyHigh)
	return HoughLinesP(edges, PageParams(b.Dx(), b.Dy()))
}

// KeepPage reports whether a rendered page looks like a diagram or scan worth
// retaining. Plain text pages produce few long straight segments.
func KeepPage(img image.Image) bool {
	return len(DetectSegments(img)) >= MinSegments
}

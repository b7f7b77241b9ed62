// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mos

import "math"

// NormalizedSize returns the size a target of width x height is scaled to:
// the larger side becomes TileSize * GridTargetSize pixels and the smaller
// side keeps the aspect ratio. If both sides are equal the width is treated
// as the larger one.
func NormalizedSize(width, height int, cfg Config) (int, int) {
	newLarger := cfg.TileSize * cfg.GridTargetSize
	larger, smaller := width, height
	if height > width {
		larger, smaller = height, width
	}
	if larger <= 0 {
		return 0, 0
	}
	newSmaller := int(math.Round(float64(smaller) * float64(newLarger) / float64(larger)))
	if newSmaller < 1 {
		newSmaller = 1
	}
	if width >= height {
		return newLarger, newSmaller
	}
	return newSmaller, newLarger
}

// NormalizeTarget scales img to NormalizedSize. The image is stretched to the
// exact size, upscaling is allowed.
func NormalizeTarget(img *Image, cfg Config, resizer Resizer) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if resizer == nil {
		resizer = DefaultResizer
	}
	width, height := NormalizedSize(img.Width, img.Height, cfg)
	res, err := resizer.Resize(img, ResizeOptions{
		Width:        width,
		Height:       height,
		AllowUpscale: true,
		Fit:          false,
	})
	if err != nil {
		return nil, &CollaboratorError{Stage: "resize", Source: "target", Err: err}
	}
	return res, nil
}

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

import (
	"sync"
)

// patternImage returns an image where each channel value depends on the
// position, no two pixels in a 256 pixel wide area are equal.
func patternImage(width, height int, cs ColorSpace) *Image {
	img := NewImage(width, height, cs)
	ch := cs.Channels()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < ch; c++ {
				img.Pixels[(y*width+x)*ch+c] = byte((x*7 + y*13 + c*50) % 256)
			}
		}
	}
	return img
}

// solidImage returns an image filled with a single color.
func solidImage(width, height int, cs ColorSpace, value ...byte) *Image {
	img := NewImage(width, height, cs)
	ch := cs.Channels()
	for i := 0; i < width*height; i++ {
		copy(img.Pixels[i*ch:(i+1)*ch], value)
	}
	return img
}

// recordingResizer returns a black image of the requested size and records
// all options it was called with. If err is set it fails instead.
type recordingResizer struct {
	mutex sync.Mutex
	calls []ResizeOptions
	err   error
}

func (r *recordingResizer) Resize(img *Image, opts ResizeOptions) (*Image, error) {
	r.mutex.Lock()
	r.calls = append(r.calls, opts)
	r.mutex.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	width, height, err := opts.Dimensions(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	return NewImage(width, height, img.ColorSpace), nil
}

func testConfig() Config {
	return Config{
		TileSize:       20,
		TileSteps:      2,
		GridTargetSize: 60,
		NumRoutines:    4,
	}
}

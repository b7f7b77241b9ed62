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
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

const (
	// DefaultTileSize is the width and height of a tile in pixels.
	DefaultTileSize = 20
	// DefaultTileSteps controls both the number of scales sampled per source
	// (TileSteps + 1) and the overlap of crop windows (a window advances by
	// at most TileSize / TileSteps pixels).
	DefaultTileSteps = 2
	// DefaultGridTargetSize is the number of tiles along the larger side of
	// the normalized target.
	DefaultGridTargetSize = 60
)

// Config describes a mosaic run. It is passed by value and never changed
// once a run has started.
type Config struct {
	// TileSize is the edge length of each square tile in pixels.
	TileSize int
	// TileSteps is the number of scale segments and the overlap divisor for
	// crop offsets.
	TileSteps int
	// GridTargetSize is the number of tiles along the larger side of the
	// target after normalization.
	GridTargetSize int
	// NumRoutines is the number of goroutines comparing grid rows against a
	// tile pool.
	NumRoutines int
}

// DefaultConfig returns a 20 pixel tile, two steps and a grid of 60 tiles along
// the larger side of the target. Matching runs with two goroutines per CPU.
func DefaultConfig() Config {
	numRoutines := runtime.NumCPU() * 2
	if numRoutines <= 0 {
		numRoutines = 4
	}
	return Config{
		TileSize:       DefaultTileSize,
		TileSteps:      DefaultTileSteps,
		GridTargetSize: DefaultGridTargetSize,
		NumRoutines:    numRoutines,
	}
}

// Validate checks that all values are positive.
func (c Config) Validate() error {
	switch {
	case c.TileSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "tile size must be positive, got %d", c.TileSize)
	case c.TileSteps <= 0:
		return errors.Wrapf(ErrInvalidConfig, "tile steps must be positive, got %d", c.TileSteps)
	case c.GridTargetSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "grid target size must be positive, got %d", c.GridTargetSize)
	case c.NumRoutines <= 0:
		return errors.Wrapf(ErrInvalidConfig, "number of routines must be positive, got %d", c.NumRoutines)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config(tile=%d, steps=%d, grid=%d, routines=%d)",
		c.TileSize, c.TileSteps, c.GridTargetSize, c.NumRoutines)
}

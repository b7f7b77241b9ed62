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
	"errors"
	"fmt"
)

var (
	// ErrEmptyGrid is returned if the target image is smaller than a single
	// tile in at least one direction, so no grid cell can be created.
	ErrEmptyGrid = errors.New("target image is smaller than one tile")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid mosaic configuration")

	// ErrInvalidImage is returned if the pixel buffer of an image does not
	// match its dimensions and color space.
	ErrInvalidImage = errors.New("invalid image")

	// ErrUnsupportedFormat is returned by the codec for mime types it can't
	// encode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// BoundsError is returned if a tile was requested that is not completely
// inside the image.
type BoundsError struct {
	X, Y          int
	TileSize      int
	Width, Height int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("tile of size %d at (%d, %d) exceeds image bounds %dx%d",
		e.TileSize, e.X, e.Y, e.Width, e.Height)
}

// LengthMismatchError is returned if two tiles of different length are
// compared. It always indicates a bug in tile creation.
type LengthMismatchError struct {
	A, B int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("can't compare tiles of length %d and %d", e.A, e.B)
}

// NoMatchFoundError is returned if a grid cell has no substitute after all
// sources were processed.
type NoMatchFoundError struct {
	Row, Col int
}

func (e *NoMatchFoundError) Error() string {
	return fmt.Sprintf("no substitute found for tile in row %d, column %d", e.Row, e.Col)
}

// CollaboratorError wraps a failure of decoding, resizing or encoding an
// image. Stage is one of "decode", "resize", "encode" or "load", Source
// names the image the stage worked on (may be empty).
type CollaboratorError struct {
	Stage  string
	Source string
	Err    error
}

func (e *CollaboratorError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s of %s failed: %v", e.Stage, e.Source, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

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
	"context"

	"github.com/pkg/errors"
)

// CropTile copies the square block of tileSize x tileSize pixels with its top
// left corner at (x, y) from img. The result keeps the channel layout of img.
// A *BoundsError is returned if the block is not completely inside img.
func CropTile(img *Image, x, y, tileSize int) (Tile, error) {
	if x < 0 || y < 0 || tileSize <= 0 || x+tileSize > img.Width || y+tileSize > img.Height {
		return nil, &BoundsError{X: x, Y: y, TileSize: tileSize, Width: img.Width, Height: img.Height}
	}
	channels := img.Channels()
	rowLen := tileSize * channels
	stride := img.Stride()
	tile := make(Tile, tileSize*rowLen)
	for row := 0; row < tileSize; row++ {
		start := (y+row)*stride + x*channels
		copy(tile[row*rowLen:], img.Pixels[start:start+rowLen])
	}
	return tile, nil
}

// AssembleFromGrid lays out the tiles of the grid side by side into a new
// image of Cols * tileSize x Rows * tileSize pixels. Each tile must hold
// tileSize * tileSize pixels in color space cs, otherwise a
// *LengthMismatchError is returned.
func AssembleFromGrid(tiles *Grid[Tile], tileSize int, cs ColorSpace) (*Image, error) {
	if tiles.Rows() == 0 || tiles.Cols() == 0 || tileSize <= 0 {
		return nil, ErrEmptyGrid
	}
	res := NewImage(tiles.Cols()*tileSize, tiles.Rows()*tileSize, cs)
	rowLen := tileSize * cs.Channels()
	expected := tileSize * rowLen
	stride := res.Stride()
	var err error
	tiles.Each(func(row, col int, tile Tile) {
		if err != nil {
			return
		}
		if len(tile) != expected {
			err = &LengthMismatchError{A: len(tile), B: expected}
			return
		}
		for y := 0; y < tileSize; y++ {
			start := (row*tileSize+y)*stride + col*rowLen
			copy(res.Pixels[start:start+rowLen], tile[y*rowLen:(y+1)*rowLen])
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ComposeMosaic normalizes target, searches the best substitute for each of
// its tiles in all images of sources and assembles the result.
//
// The result has the size of the tile grid of the normalized target, that is
// pixels which don't fill a complete tile are dropped.
func ComposeMosaic(ctx context.Context, target *Image, sources ImageStorage, cfg Config,
	resizer Resizer, progress ProgressFunc) (*Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	normalized, err := NormalizeTarget(target, cfg, resizer)
	if err != nil {
		return nil, errors.Wrap(err, "can't normalize target image")
	}
	assembler := NewAssembler(cfg, resizer)
	if progress != nil {
		assembler.Progress = progress
	}
	return assembler.Assemble(ctx, normalized, sources)
}

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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScales(t *testing.T) {
	g := NewTileGenerator(testConfig(), nil)
	scales := g.Scales(100, 50)
	require.Len(t, scales, 3)
	assert.InDelta(t, 0.4, scales[0], 1e-9)
	assert.InDelta(t, 0.6, scales[1], 1e-9)
	assert.InDelta(t, 0.8, scales[2], 1e-9)

	// smaller side maps to TileSize and 2 * TileSize
	portrait := g.Scales(40, 80)
	assert.InDelta(t, 0.5, portrait[0], 1e-9)
	assert.InDelta(t, 1.0, portrait[len(portrait)-1], 1e-9)

	assert.Nil(t, g.Scales(0, 10))
}

func TestCropOffsets(t *testing.T) {
	g := NewTileGenerator(testConfig(), nil)
	tests := []struct {
		side     int
		expected []int
	}{
		{19, nil},
		{20, []int{0}},
		{25, []int{0, 5}},
		{30, []int{0, 10}},
		{40, []int{0, 10, 20}},
		{45, []int{0, 8, 17, 25}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, g.CropOffsets(tt.side), "side %d", tt.side)
	}
}

func TestCropOffsetsOverlap(t *testing.T) {
	cfg := testConfig()
	for _, steps := range []int{1, 2, 3, 5} {
		cfg.TileSteps = steps
		g := NewTileGenerator(cfg, nil)
		for side := 20; side < 200; side++ {
			offsets := g.CropOffsets(side)
			require.NotEmpty(t, offsets)
			assert.Equal(t, 0, offsets[0])
			assert.Equal(t, side-20, offsets[len(offsets)-1])
			for i := 1; i < len(offsets); i++ {
				// rounding may add at most one pixel to the step
				assert.LessOrEqual(t, offsets[i]-offsets[i-1], 20/steps+1)
			}
		}
	}
}

func TestGenerateTiles(t *testing.T) {
	g := NewTileGenerator(testConfig(), DefaultResizer)
	src := patternImage(40, 40, RGB)
	tiles, err := g.GenerateTiles(context.Background(), src)
	require.NoError(t, err)

	// scales 0.5, 0.75 and 1.0: 20x20 gives 1 tile, 30x30 gives 2x2 and
	// 40x40 gives 3x3
	require.Len(t, tiles, 1+4+9)
	for _, tile := range tiles {
		assert.Len(t, tile, 20*20*3)
	}

	// the last scale is the source itself, x offsets are the outer loop
	expected := []struct{ x, y int }{
		{0, 0}, {0, 10}, {0, 20},
		{10, 0}, {10, 10}, {10, 20},
		{20, 0}, {20, 10}, {20, 20},
	}
	for i, pos := range expected {
		crop, err := CropTile(src, pos.x, pos.y, 20)
		require.NoError(t, err)
		assert.Equal(t, crop, tiles[5+i], "offset (%d, %d)", pos.x, pos.y)
	}
}

func TestGenerateTilesTileLength(t *testing.T) {
	cfg := testConfig()
	cfg.TileSize = 8
	cfg.TileSteps = 3
	resizer := &recordingResizer{}
	g := NewTileGenerator(cfg, resizer)
	for _, size := range [][2]int{{8, 8}, {13, 31}, {50, 9}, {3, 3}} {
		tiles, err := g.GenerateTiles(context.Background(), NewImage(size[0], size[1], RGBA))
		require.NoError(t, err)
		assert.NotEmpty(t, tiles)
		for _, tile := range tiles {
			assert.Len(t, tile, 8*8*4)
		}
	}
}

func TestGenerateTilesResizeError(t *testing.T) {
	resizer := &recordingResizer{err: errors.New("out of memory")}
	g := NewTileGenerator(testConfig(), resizer)
	_, err := g.GenerateTiles(context.Background(), patternImage(40, 40, RGB))
	var collErr *CollaboratorError
	require.True(t, errors.As(err, &collErr))
	assert.Equal(t, "resize", collErr.Stage)
}

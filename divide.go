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
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Grid is a matrix of values with a fixed number of rows and columns.
// Row corresponds to the y axis and column to the x axis of an image, so the
// cell Get(0, 0) is the top left corner and Get(0, 1) is right of it.
type Grid[T any] struct {
	rows, cols int
	cells      []T
}

// NewGrid returns a grid where each cell holds the zero value of T.
func NewGrid[T any](rows, cols int) *Grid[T] {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("invalid grid dimensions %dx%d", rows, cols))
	}
	return &Grid[T]{rows: rows, cols: cols, cells: make([]T, rows*cols)}
}

// Rows returns the number of rows.
func (g *Grid[T]) Rows() int {
	return g.rows
}

// Cols returns the number of columns.
func (g *Grid[T]) Cols() int {
	return g.cols
}

func (g *Grid[T]) index(row, col int) int {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		panic(fmt.Sprintf("grid index (%d, %d) out of range for %dx%d grid", row, col, g.rows, g.cols))
	}
	return row*g.cols + col
}

// Get returns the value in the given row and column.
func (g *Grid[T]) Get(row, col int) T {
	return g.cells[g.index(row, col)]
}

// Set sets the value in the given row and column.
func (g *Grid[T]) Set(row, col int, value T) {
	g.cells[g.index(row, col)] = value
}

// Each calls fn for every cell in row-major order: all cells of row 0 from
// left to right, then row 1 and so on.
func (g *Grid[T]) Each(fn func(row, col int, value T)) {
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			fn(row, col, g.cells[row*g.cols+col])
		}
	}
}

// MapGrid returns a new grid of the same size with fn applied to each cell.
func MapGrid[T, U any](g *Grid[T], fn func(row, col int, value T) U) *Grid[U] {
	res := NewGrid[U](g.rows, g.cols)
	g.Each(func(row, col int, value T) {
		res.cells[row*g.cols+col] = fn(row, col, value)
	})
	return res
}

// Tile is the pixel data of a square block of TileSize x TileSize pixels,
// stored row by row with the channel layout of the image it was cut from.
type Tile []byte

// TileCandidate is a cell of the working grid: the original tile of the
// target and the best substitute found so far.
//
// All updates go through Offer which is safe for concurrent use.
type TileCandidate struct {
	mu         sync.Mutex
	BestScore  uint64
	Original   Tile
	Substitute Tile
	// source and index of the current substitute, used to break ties
	source ImageID
	index  int
}

// NewTileCandidate returns a candidate without a substitute and the worst
// possible score.
func NewTileCandidate(original Tile) *TileCandidate {
	return &TileCandidate{
		BestScore: math.MaxUint64,
		Original:  original,
		source:    -1,
		index:     -1,
	}
}

// Offer replaces the substitute if score is smaller than the best score so
// far. Equal scores are resolved by the position of the tile: the smaller
// source id wins, then the smaller index in the pool. This makes the result
// independent of the order in which sources are processed.
// It returns true if the substitute was replaced.
func (c *TileCandidate) Offer(score uint64, tile Tile, source ImageID, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Substitute != nil {
		switch {
		case score > c.BestScore:
			return false
		case score == c.BestScore:
			if source > c.source || (source == c.source && index >= c.index) {
				return false
			}
		}
	}
	c.BestScore = score
	c.Substitute = tile
	c.source = source
	c.index = index
	return true
}

// Best returns the current score and substitute.
func (c *TileCandidate) Best() (uint64, Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BestScore, c.Substitute
}

// TileGrid is the partition of the target image into tiles, each paired with
// its best substitute.
type TileGrid = Grid[*TileCandidate]

// GridSize returns the number of rows and columns when dividing an image of
// the given size into tiles. Remaining pixels are discarded.
func GridSize(width, height, tileSize int) (rows, cols int) {
	return height / tileSize, width / tileSize
}

// NewTileGrid divides target into tiles of tileSize x tileSize pixels.
// Pixels right of the last full column and below the last full row are not
// part of the grid. ErrEmptyGrid is returned if not a single tile fits.
func NewTileGrid(target *Image, tileSize int) (*TileGrid, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	rows, cols := GridSize(target.Width, target.Height, tileSize)
	if rows == 0 || cols == 0 {
		return nil, errors.Wrapf(ErrEmptyGrid, "target %dx%d, tile size %d",
			target.Width, target.Height, tileSize)
	}
	grid := NewGrid[*TileCandidate](rows, cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			original, err := CropTile(target, col*tileSize, row*tileSize, tileSize)
			if err != nil {
				return nil, err
			}
			grid.Set(row, col, NewTileCandidate(original))
		}
	}
	return grid, nil
}

// Substitutes returns the substitute of each cell. If a cell has none a
// *NoMatchFoundError for the first such cell (in row-major order) is
// returned.
func Substitutes(grid *TileGrid) (*Grid[Tile], error) {
	var missing *NoMatchFoundError
	res := MapGrid(grid, func(row, col int, c *TileCandidate) Tile {
		_, tile := c.Best()
		if tile == nil && missing == nil {
			missing = &NoMatchFoundError{Row: row, Col: col}
		}
		return tile
	})
	if missing != nil {
		return nil, missing
	}
	return res, nil
}

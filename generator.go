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
	"math"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// TileGenerator produces the tile pool of a source image: the source is
// scaled to several sizes and each scaled version is cut into overlapping
// tiles.
type TileGenerator struct {
	Config  Config
	Resizer Resizer
}

// NewTileGenerator returns a generator for the given configuration.
func NewTileGenerator(cfg Config, resizer Resizer) *TileGenerator {
	if resizer == nil {
		resizer = DefaultResizer
	}
	return &TileGenerator{Config: cfg, Resizer: resizer}
}

// Scales returns the scale factors applied to a source of the given size.
// The smallest scale maps the smaller side to TileSize, the largest to
// 2 * TileSize, with TileSteps segments in between. The result is sorted in
// ascending order.
func (g *TileGenerator) Scales(width, height int) []float64 {
	smaller := minInt(width, height)
	if smaller <= 0 {
		return nil
	}
	tileSize := float64(g.Config.TileSize)
	minScale := tileSize / float64(smaller)
	maxScale := 2 * tileSize / float64(smaller)
	return EvenSpacedInclusive(minScale, maxScale, g.Config.TileSteps)
}

// CropOffsets returns the start positions of tiles along an axis of the
// given length. Neighbouring tiles are at most TileSize / TileSteps pixels
// apart, the first tile starts at 0 and the last one ends at side.
// If side is smaller than TileSize no tile fits and nil is returned.
func (g *TileGenerator) CropOffsets(side int) []int {
	tileSize := g.Config.TileSize
	if side < tileSize {
		return nil
	}
	span := float64(side - tileSize)
	segments := int(math.Ceil(span / (float64(tileSize) / float64(g.Config.TileSteps))))
	points := EvenSpacedInclusive(0, span, segments)
	res := make([]int, len(points))
	for i, p := range points {
		res[i] = int(math.Round(p))
	}
	return res
}

// CropAll cuts img into tiles at all combinations of CropOffsets. The x
// offsets form the outer loop, for each x all y offsets are visited.
func (g *TileGenerator) CropAll(img *Image) ([]Tile, error) {
	xs := g.CropOffsets(img.Width)
	ys := g.CropOffsets(img.Height)
	res := make([]Tile, 0, len(xs)*len(ys))
	for _, x := range xs {
		for _, y := range ys {
			tile, err := CropTile(img, x, y, g.Config.TileSize)
			if err != nil {
				return nil, err
			}
			res = append(res, tile)
		}
	}
	return res, nil
}

// GenerateTiles returns the tile pool of src. The scaled versions are
// computed concurrently, but the order of the pool is fixed: all tiles of the
// smallest scale come first.
//
// Errors of the resizer are returned as *CollaboratorError.
func (g *TileGenerator) GenerateTiles(ctx context.Context, src *Image) ([]Tile, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	scales := g.Scales(src.Width, src.Height)
	pools := make([][]Tile, len(scales))

	group, ctx := errgroup.WithContext(ctx)
	for i, scale := range scales {
		i, scale := i, scale
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scaled, err := g.Resizer.Resize(src, ResizeOptions{Scale: scale, AllowUpscale: true})
			if err != nil {
				return &CollaboratorError{Stage: "resize", Err: err}
			}
			if scaled.Width < g.Config.TileSize || scaled.Height < g.Config.TileSize {
				log.WithFields(log.Fields{
					"scale":  scale,
					"width":  scaled.Width,
					"height": scaled.Height,
				}).Debug("Scaled source is smaller than a tile, skipping scale")
				return nil
			}
			pool, err := g.CropAll(scaled)
			if err != nil {
				return err
			}
			pools[i] = pool
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	size := 0
	for _, pool := range pools {
		size += len(pool)
	}
	res := make([]Tile, 0, size)
	for _, pool := range pools {
		res = append(res, pool...)
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		bytes := uint64(0)
		if size > 0 {
			bytes = uint64(size) * uint64(len(res[0]))
		}
		log.WithFields(log.Fields{
			"width":  src.Width,
			"height": src.Height,
			"scales": len(scales),
			"tiles":  size,
			"memory": humanize.IBytes(bytes),
		}).Debug("Generated tile pool")
	}
	return res, nil
}

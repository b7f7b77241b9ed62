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
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Assembler searches the best substitute for each tile of a target image
// in the tile pools of a set of source images.
//
// Sources are processed concurrently, at most Config.NumRoutines at a time.
// Once the pool of a source is generated the rows of the grid are matched
// against it by Config.NumRoutines workers. A worker computes the best tile
// of the pool for a cell without holding any lock and then offers it to the
// cell, so cells are locked once per source and not once per comparison.
//
// The result doesn't depend on the order in which sources finish: among
// tiles with equal distance the one from the source with the smaller id wins
// and within a source the one that comes first in the pool.
type Assembler struct {
	Config    Config
	Generator *TileGenerator
	// Progress is called after each source with the number of sources
	// processed so far. Calls are serialized.
	Progress ProgressFunc
}

// NewAssembler returns an assembler using resizer to scale the sources.
func NewAssembler(cfg Config, resizer Resizer) *Assembler {
	return &Assembler{
		Config:    cfg,
		Generator: NewTileGenerator(cfg, resizer),
		Progress:  ProgressIgnore,
	}
}

// Assemble divides target into tiles, replaces each tile by its best match
// among all sources and returns the assembled image. target is used as is,
// see NormalizeTarget for scaling it first.
//
// If sources is empty a *NoMatchFoundError is returned. Errors of loading or
// scaling a source abort the whole run and are returned as
// *CollaboratorError.
func (a *Assembler) Assemble(ctx context.Context, target *Image, sources ImageStorage) (*Image, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewTileGrid(target, a.Config.TileSize)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"rows":    grid.Rows(),
		"cols":    grid.Cols(),
		"sources": sources.NumImages(),
		"config":  a.Config,
	}).Info("Searching substitutes")
	if err := a.Search(ctx, grid, sources); err != nil {
		return nil, err
	}
	tiles, err := Substitutes(grid)
	if err != nil {
		return nil, err
	}
	return AssembleFromGrid(tiles, a.Config.TileSize, target.ColorSpace)
}

// Search offers the tiles of all sources to the cells of grid.
func (a *Assembler) Search(ctx context.Context, grid *TileGrid, sources ImageStorage) error {
	var progressMutex sync.Mutex
	done := 0

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(a.Config.NumRoutines)
	for _, id := range IDList(sources) {
		id := id
		group.Go(func() error {
			if err := a.processSource(ctx, grid, sources, id); err != nil {
				return err
			}
			progressMutex.Lock()
			done++
			if a.Progress != nil {
				a.Progress(done)
			}
			progressMutex.Unlock()
			return nil
		})
	}
	return group.Wait()
}

func (a *Assembler) processSource(ctx context.Context, grid *TileGrid, sources ImageStorage, id ImageID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := sources.Name(id)
	img, err := sources.LoadImage(id)
	if err != nil {
		return collaboratorError("load", name, err)
	}
	pool, err := a.Generator.GenerateTiles(ctx, img)
	if err != nil {
		return collaboratorError("resize", name, err)
	}
	log.WithFields(log.Fields{
		"source": name,
		"tiles":  len(pool),
	}).Debug("Matching tile pool")
	return a.matchPool(ctx, grid, pool, id)
}

// matchPool distributes the rows of grid among NumRoutines workers, each
// worker offers the best tile of pool to all cells of its rows.
func (a *Assembler) matchPool(ctx context.Context, grid *TileGrid, pool []Tile, source ImageID) error {
	if len(pool) == 0 {
		return nil
	}
	jobs := make(chan int, grid.Rows())
	for row := 0; row < grid.Rows(); row++ {
		jobs <- row
	}
	close(jobs)

	group, ctx := errgroup.WithContext(ctx)
	for w := 0; w < a.Config.NumRoutines; w++ {
		group.Go(func() error {
			for row := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				for col := 0; col < grid.Cols(); col++ {
					cell := grid.Get(row, col)
					index, score, err := BestMatch(cell.Original, pool)
					if err != nil {
						return errors.Wrapf(err, "can't match tile in row %d, column %d", row, col)
					}
					cell.Offer(score, pool[index], source, index)
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// collaboratorError returns err unchanged if it already is a
// *CollaboratorError (setting its source if missing). Context errors are
// returned unchanged as well, all other errors are wrapped.
func collaboratorError(stage, source string, err error) error {
	var collErr *CollaboratorError
	if errors.As(err, &collErr) {
		if collErr.Source == "" {
			collErr.Source = source
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &CollaboratorError{Stage: stage, Source: source, Err: err}
}

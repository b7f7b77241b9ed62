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

// TileDistance returns the sum of absolute differences of all channel values
// of a and b. Both tiles must have the same length, otherwise a
// *LengthMismatchError is returned.
//
// The smaller the distance is the more equal the tiles are considered, a
// distance of 0 means that both tiles are equal.
func TileDistance(a, b Tile) (uint64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{A: len(a), B: len(b)}
	}
	var res uint64
	for i, v := range a {
		res += absDiff(v, b[i])
	}
	return res, nil
}

// BestMatch returns the index of the tile in pool with the smallest distance
// to original together with that distance. If several tiles have the same
// distance the first one wins. For an empty pool it returns -1.
func BestMatch(original Tile, pool []Tile) (int, uint64, error) {
	best := -1
	var bestScore uint64
	for i, candidate := range pool {
		score, err := TileDistance(original, candidate)
		if err != nil {
			return -1, 0, err
		}
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore, nil
}

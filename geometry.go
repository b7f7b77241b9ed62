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

// EvenSpaced returns the points start, start + step, start + 2 * step, ...
// that are smaller than stop. The number of points is ceil((stop - start) /
// step); step must be > 0.
func EvenSpaced(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = start + float64(i)*step
	}
	return res
}

// EvenSpacedInclusive divides [start, stop] into segments parts of equal
// length and returns the segments + 1 boundaries. The last point is always
// exactly stop. If start == stop the result is [start], regardless of
// segments. segments must be ≥ 1.
func EvenSpacedInclusive(start, stop float64, segments int) []float64 {
	if start == stop {
		return []float64{start}
	}
	// the number of points is fixed by segments and not computed from the
	// step, otherwise rounding could add an extra point before stop
	step := (stop - start) / float64(segments)
	res := make([]float64, segments+1)
	for i := 0; i < segments; i++ {
		res[i] = start + float64(i)*step
	}
	res[segments] = stop
	return res
}

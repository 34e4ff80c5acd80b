/*
Copyright © 2024 the lasrc authors.
This file is part of lasrc.

lasrc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

lasrc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with lasrc.  If not, see <http://www.gnu.org/licenses/>.
*/

package lasrc

// gapFillRadius bounds the neighbor search for repairing invalid
// windows, in window steps.
const gapFillRadius = 10

// Defaults assigned to a window with no valid neighbor within the
// search radius.
const (
	defaultAOT = 0.05
	defaultEps = 1.5
)

// gapFillAerosols repairs the aerosol estimates of invalid windows
// (fill centers and failed retrievals) before full-resolution
// expansion. Each invalid window receives the average optical
// thickness and exponent of the valid windows within the smallest
// enclosing search radius, staying within one surface type: land
// (clear) neighbors are preferred, water neighbors are used when no
// land neighbor is in range, and the global defaults cover windows
// with no valid neighbor at all. Repairs are computed from the
// original validity mask and applied afterward, so the result does
// not depend on window visit order. Repaired non-fill centers are
// marked as valid retrievals.
func gapFillAerosols(scene *Scene, window, half int) {
	ns := scene.NSamps
	var lines, samps []int
	for i := half; i < scene.NLines; i += window {
		lines = append(lines, i)
	}
	for j := half; j < ns; j += window {
		samps = append(samps, j)
	}
	nwl, nws := len(lines), len(samps)

	const (
		invalid = iota
		land
		water
	)
	class := make([]uint8, nwl*nws)
	for wi, i := range lines {
		for wj, j := range samps {
			f := scene.IPFlag[i*ns+j]
			if f&FlagClear == 0 {
				continue
			}
			if f&FlagWater != 0 {
				class[wi*nws+wj] = water
			} else {
				class[wi*nws+wj] = land
			}
		}
	}

	type repair struct {
		wi, wj   int
		aot, eps float64
	}
	var repairs []repair
	for wi := 0; wi < nwl; wi++ {
		for wj := 0; wj < nws; wj++ {
			if class[wi*nws+wj] != invalid {
				continue
			}
			rp := repair{wi: wi, wj: wj, aot: defaultAOT, eps: defaultEps}
			for r := 1; r <= gapFillRadius; r++ {
				var landAOT, landEps, waterAOT, waterEps float64
				var landN, waterN int
				for dl := -r; dl <= r; dl++ {
					ni := wi + dl
					if ni < 0 || ni >= nwl {
						continue
					}
					for ds := -r; ds <= r; ds++ {
						nj := wj + ds
						if nj < 0 || nj >= nws {
							continue
						}
						pix := lines[ni]*ns + samps[nj]
						switch class[ni*nws+nj] {
						case land:
							landAOT += scene.AOT.Elements[pix]
							landEps += scene.Eps.Elements[pix]
							landN++
						case water:
							waterAOT += scene.AOT.Elements[pix]
							waterEps += scene.Eps.Elements[pix]
							waterN++
						}
					}
				}
				if landN > 0 {
					rp.aot = landAOT / float64(landN)
					rp.eps = landEps / float64(landN)
					break
				}
				if waterN > 0 {
					rp.aot = waterAOT / float64(waterN)
					rp.eps = waterEps / float64(waterN)
					break
				}
			}
			repairs = append(repairs, rp)
		}
	}

	for _, rp := range repairs {
		pix := lines[rp.wi]*ns + samps[rp.wj]
		scene.AOT.Elements[pix] = rp.aot
		scene.Eps.Elements[pix] = rp.eps
		if !scene.Fill[pix] {
			scene.IPFlag[pix] |= FlagClear
		}
	}
}

// interpolateAerosols expands the sparse per-window aerosol fields to
// full pixel resolution by bilinear interpolation between window
// centers, and propagates each pixel's nearest window classification
// into its QA flags. Fill pixels are never written. Interpolated
// values are staged in fresh arrays so concurrent rows never observe
// partially updated state.
func interpolateAerosols(scene *Scene, window, half int) error {
	ns := scene.NSamps
	lastCL := half + (scene.NLines-1-half)/window*window
	lastCS := half + (ns-1-half)/window*window

	anchor := func(i, last int) (c0, c1 int, f float64) {
		if i <= half {
			return half, half, 0
		}
		if i >= last {
			return last, last, 0
		}
		c0 = half + (i-half)/window*window
		c1 = c0 + window
		if c1 > last {
			c1 = last
		}
		if c1 == c0 {
			return c0, c1, 0
		}
		return c0, c1, float64(i-c0) / float64(c1-c0)
	}

	aotOut := make([]float64, len(scene.AOT.Elements))
	epsOut := make([]float64, len(scene.Eps.Elements))
	copy(aotOut, scene.AOT.Elements)
	copy(epsOut, scene.Eps.Elements)
	flagOut := make([]uint8, len(scene.IPFlag))
	copy(flagOut, scene.IPFlag)

	err := parallelFor(scene.NLines, func(i int) error {
		l0, l1, u := anchor(i, lastCL)
		for j := 0; j < ns; j++ {
			pix := i*ns + j
			if scene.Fill[pix] {
				continue
			}
			s0, s1, v := anchor(j, lastCS)
			p00 := l0*ns + s0
			p01 := l0*ns + s1
			p10 := l1*ns + s0
			p11 := l1*ns + s1

			aotOut[pix] = (1-u)*(1-v)*scene.AOT.Elements[p00] +
				(1-u)*v*scene.AOT.Elements[p01] +
				u*(1-v)*scene.AOT.Elements[p10] +
				u*v*scene.AOT.Elements[p11]
			epsOut[pix] = (1-u)*(1-v)*scene.Eps.Elements[p00] +
				(1-u)*v*scene.Eps.Elements[p01] +
				u*(1-v)*scene.Eps.Elements[p10] +
				u*v*scene.Eps.Elements[p11]

			// Classification comes from the heaviest-weighted window
			// that has one, so every non-fill pixel ends up with a
			// retrieval outcome.
			var cls uint8
			for _, p := range nearestFirst(u, v, p00, p01, p10, p11) {
				if c := scene.IPFlag[p] & (FlagClear | FlagWater); c != 0 {
					cls = c
					break
				}
			}
			if cls == 0 {
				cls = FlagClear
			}
			flagOut[pix] |= cls
		}
		return nil
	})
	if err != nil {
		return err
	}
	copy(scene.AOT.Elements, aotOut)
	copy(scene.Eps.Elements, epsOut)
	copy(scene.IPFlag, flagOut)
	return nil
}

// nearestFirst orders the four interpolation anchors by bilinear
// weight, heaviest first.
func nearestFirst(u, v float64, p00, p01, p10, p11 int) [4]int {
	w := [4]float64{(1 - u) * (1 - v), (1 - u) * v, u * (1 - v), u * v}
	p := [4]int{p00, p01, p10, p11}
	for a := 0; a < 3; a++ {
		for b := a + 1; b < 4; b++ {
			if w[b] > w[a] {
				w[a], w[b] = w[b], w[a]
				p[a], p[b] = p[b], p[a]
			}
		}
	}
	return p
}

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

import "math"

// Angstrom exponent trial values for the land retrieval, and the
// fixed exponent used for the water retrieval.
const (
	lowEps   = 1.0
	modEps   = 1.75
	highEps  = 2.5
	waterEps = 1.5
)

// diagnosticBands are the bands whose pre-correction TOA reflectance
// is retained for the aerosol inversion.
var diagnosticBands = []Band{Coastal, Blue, Red, NIR, SWIR2}

// RetrieveAOT searches the discrete AOT grid for the optical
// thickness that minimizes the residual between the observed TOA
// reflectances and the band ratio model, at a fixed Angstrom
// exponent. refBand is the reference band the ratios are relative
// to; erelc maps each participating band to its expected reflectance
// ratio and troatm to its observed TOA reflectance. The walk starts
// at grid index *start and stops at the first residual increase; a
// parabola through the bracketing grid points refines the minimum.
// On return *start is positioned just below the minimizing index so
// that a subsequent retrieval at a nearby exponent starts close to
// its own minimum.
func (c *Coefficients) RetrieveAOT(refBand Band, erelc, troatm map[Band]float64, eps float64, start *int) (raot, residual float64) {
	grid := c.AOT
	n := len(grid)

	// Summation follows the fixed band order so repeated runs add
	// the terms identically.
	resid := func(tau float64) float64 {
		rosRef := c.Correct(refBand, tau, eps, troatm[refBand])
		var sum float64
		var nb int
		for _, b := range diagnosticBands {
			rel, ok := erelc[b]
			if !ok {
				continue
			}
			nb++
			if b == refBand {
				continue
			}
			ros := c.Correct(b, tau, eps, troatm[b])
			d := ros - rosRef*rel
			sum += d * d
		}
		return math.Sqrt(sum) / float64(nb)
	}

	i := *start
	if i < 0 {
		i = 0
	} else if i > n-1 {
		i = n - 1
	}
	rPrev2 := math.Inf(1)
	rPrev := resid(grid[i])
	for i+1 < n {
		rNext := resid(grid[i+1])
		if rNext > rPrev {
			raot, residual = refineAOT(grid, i, rPrev2, rPrev, rNext, resid)
			*start = i - 1
			if *start < 0 {
				*start = 0
			}
			return raot, residual
		}
		rPrev2 = rPrev
		rPrev = rNext
		i++
	}
	// The residual was still decreasing at the top of the grid.
	*start = n - 2
	return grid[n-1], rPrev
}

// refineAOT fits a parabola through grid points i-1, i, i+1 (with
// residuals r0, r1, r2) and returns its vertex when it falls inside
// the bracket and is a true minimum; otherwise the grid point itself.
func refineAOT(grid []float64, i int, r0, r1, r2 float64, resid func(float64) float64) (float64, float64) {
	if i == 0 || math.IsInf(r0, 1) {
		return grid[i], r1
	}
	x0, x1, x2 := grid[i-1], grid[i], grid[i+1]
	d1 := (r1 - r0) / (x1 - x0)
	d2 := (r2 - r1) / (x2 - x1)
	a := (d2 - d1) / (x2 - x0)
	if a <= 0 {
		return x1, r1
	}
	v := (x0+x1)/2 - d1/(2*a)
	if v <= x0 || v >= x2 {
		return x1, r1
	}
	return v, resid(v)
}

// chooseEps fits a parabola r = a·eps² + b·eps + c to the three
// (exponent, residual) trial pairs and returns the exponent at its
// vertex. A vertex outside [lowEps, highEps], or a degenerate
// parabola (the vertex expression goes 0/0 when the three residuals
// are equal or collinear), yields the high boundary exponent.
func chooseEps(residual1, residual2, residual3 float64) float64 {
	xa := (residual1 - residual3) * (modEps - highEps)
	xb := (residual2 - residual3) * (lowEps - highEps)
	epsmin := 0.5 * (xa*(modEps+highEps) - xb*(lowEps+highEps)) / (xa - xb)
	switch {
	case epsmin >= lowEps && epsmin <= highEps:
		return epsmin
	case epsmin <= lowEps:
		return lowEps
	default:
		return highEps
	}
}

// windowResult records the outcome of one aerosol window retrieval.
// When retrieved is false the window had no usable pixel and stays
// flagged as fill.
type windowResult struct {
	aot, eps  float64
	flag      uint8
	retrieved bool
}

// retrieveWindow performs the aerosol retrieval for the window whose
// center pixel is (centerLine, centerSamp). When the center is fill,
// the nearest non-fill pixel within the half-window radius is
// substituted as the retrieval target; the result is still recorded
// at the center. The target and write-back locations are kept as
// separate values throughout; the iteration cursor is never
// redirected.
func (c *Corrector) retrieveWindow(scene *Scene, aerob map[Band][]float64, coef *Coefficients, centerLine, centerSamp int, xmus float64) (windowResult, error) {
	half := c.window() / 2
	targetLine, targetSamp := centerLine, centerSamp
	if scene.Fill[centerLine*scene.NSamps+centerSamp] {
		tl, ts, ok := findNonFill(scene.Fill, scene.NLines, scene.NSamps, centerLine, centerSamp, half)
		if !ok {
			return windowResult{}, nil
		}
		targetLine, targetSamp = tl, ts
	}
	pix := targetLine*scene.NSamps + targetSamp

	lat, lon, err := c.Geolocator.LatLon(float64(targetLine)-0.5, float64(targetSamp)+0.5)
	if err != nil {
		return windowResult{}, err
	}
	rs := c.Climatology.SampleRatios(lat, lon)

	// Water index from the first-pass NIR and SWIR2 reflectance,
	// clamped to the climatology bounds.
	b5 := scene.Refl[NIR].Elements[pix]
	b7 := scene.Refl[SWIR2].Elements[pix]
	xndwi := (b5 - b7*0.5) / (b5 + b7*0.5)
	if xndwi > rs.NDWIUpper {
		xndwi = rs.NDWIUpper
	}
	if xndwi < rs.NDWILower {
		xndwi = rs.NDWILower
	}

	erelc := map[Band]float64{
		Coastal: xndwi*rs.SlopeB1 + rs.InterceptB1,
		Blue:    xndwi*rs.SlopeB2 + rs.InterceptB2,
		Red:     1.0,
		SWIR2:   xndwi*rs.SlopeB7 + rs.InterceptB7,
	}
	troatm := map[Band]float64{
		Coastal: aerob[Coastal][pix],
		Blue:    aerob[Blue][pix],
		Red:     aerob[Red][pix],
		SWIR2:   aerob[SWIR2][pix],
	}

	iaots := 0
	sraot1, residual1 := coef.RetrieveAOT(Red, erelc, troatm, lowEps, &iaots)
	_, residual2 := coef.RetrieveAOT(Red, erelc, troatm, modEps, &iaots)
	sraot3, residual3 := coef.RetrieveAOT(Red, erelc, troatm, highEps, &iaots)

	eps := chooseEps(residual1, residual2, residual3)
	var raot, residual float64
	switch eps {
	case lowEps:
		raot, residual = sraot1, residual1
	case highEps:
		raot, residual = sraot3, residual3
	default:
		raot, residual = coef.RetrieveAOT(Red, erelc, troatm, eps, &iaots)
	}

	res := windowResult{aot: raot, eps: eps, retrieved: true}
	corf := raot / xmus

	// corf scales with aerosol impact; the threshold loosens with it
	// and with the SWIR2 brightness.
	if residual < 0.015+0.005*corf+0.10*troatm[SWIR2] {
		ros5 := coef.Correct(NIR, raot, eps, aerob[NIR][pix])
		ros4 := coef.Correct(Red, raot, eps, aerob[Red][pix])
		if ros5 > 0.1 && (ros5-ros4)/(ros5+ros4) > 0 {
			res.flag = FlagClear
		} else {
			res.flag = FlagWater
		}
	} else {
		res.flag = FlagWater
	}

	// Water windows are re-retrieved with a fixed exponent over a
	// water-appropriate band set, then either confirmed or demoted
	// to a failed retrieval.
	if res.flag&FlagWater != 0 {
		erelc = map[Band]float64{Coastal: 1, Red: 1, NIR: 1, SWIR2: 1}
		troatm = map[Band]float64{
			Coastal: aerob[Coastal][pix],
			Red:     aerob[Red][pix],
			NIR:     aerob[NIR][pix],
			SWIR2:   aerob[SWIR2][pix],
		}
		iaots = 0
		raot, residual = coef.RetrieveAOT(Red, erelc, troatm, waterEps, &iaots)
		res.aot = raot
		res.eps = waterEps
		corf = raot / xmus
		ros1 := coef.Correct(Coastal, raot, waterEps, aerob[Coastal][pix])
		if residual > 0.010+0.005*corf || ros1 < 0 {
			res.flag = 0
		} else {
			res.flag = FlagClear | FlagWater
		}
	}
	return res, nil
}

// findNonFill searches outward from (line, samp) in rings of growing
// Chebyshev distance, up to radius, and returns the first non-fill
// pixel found.
func findNonFill(fill []bool, nlines, nsamps, line, samp, radius int) (int, int, bool) {
	for r := 1; r <= radius; r++ {
		for dl := -r; dl <= r; dl++ {
			l := line + dl
			if l < 0 || l >= nlines {
				continue
			}
			for ds := -r; ds <= r; ds++ {
				if dl > -r && dl < r && ds > -r && ds < r {
					continue // interior of the ring
				}
				s := samp + ds
				if s < 0 || s >= nsamps {
					continue
				}
				if !fill[l*nsamps+s] {
					return l, s, true
				}
			}
		}
	}
	return 0, 0, false
}

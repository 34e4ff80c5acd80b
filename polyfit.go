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

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// nCoef is the number of coefficients in the cubic polynomial fits.
const nCoef = 4

// fitEpsilon is the minimum increase between successive intrinsic
// reflectance values for the fit truncation walk to continue.
const fitEpsilon = 1.0e-6

// fitEps is the Angstrom exponent the coefficient sweep is evaluated
// at, matching the exponent used for the climatology-based first-pass
// correction.
const fitEps = 2.5

// BandCoefficients holds the fitted polynomial representation of the
// atmospheric model for one band: cubic coefficients (in optical
// thickness) for the intrinsic reflectance, the total transmission,
// and the spherical albedo, along with the other-gas transmittance,
// the band's normalized extinction, and the AOT grid index beyond
// which the intrinsic reflectance fit is not trusted.
type BandCoefficients struct {
	Tgo     float64
	RoAtm   [nCoef]float64
	TtAtmG  [nCoef]float64
	SAtm    [nCoef]float64
	NormExt float64

	// MaxAOTIndex is the largest AOT grid index before the tabulated
	// intrinsic reflectance stops increasing monotonically. The
	// intrinsic reflectance polynomial is evaluated no further than
	// the grid value at this index.
	MaxAOTIndex int
}

// Coefficients holds the per-band polynomial coefficients for a
// scene. They are computed once per scene and are read-only
// afterward.
type Coefficients struct {
	Bands map[Band]*BandCoefficients
	AOT   []float64
}

// FitCoefficients evaluates the lookup tables across the full AOT
// grid at the scene-representative geometry and atmospheric state,
// and fits cubic polynomials in optical thickness to the intrinsic
// reflectance, total transmission, and spherical albedo of each
// reflective band. The intrinsic reflectance fit is truncated at the
// last grid index where the tabulated values are still monotonically
// increasing; the other two fits always use the full grid.
func FitCoefficients(t *Tables, g Geometry, atm Atmos) (*Coefficients, error) {
	c := &Coefficients{
		Bands: make(map[Band]*BandCoefficients, len(ReflBands)),
		AOT:   t.AOT,
	}
	n := len(t.AOT)
	roatm := make([]float64, n)
	ttatmg := make([]float64, n)
	satm := make([]float64, n)
	for _, b := range ReflBands {
		var terms AtmosTerms
		var err error
		for ia, aot := range t.AOT {
			terms, err = t.Evaluate(g, atm, aot, fitEps, b, 0)
			if err != nil {
				return nil, fmt.Errorf("lasrc: fitting band %s coefficients: %v", b, err)
			}
			roatm[ia] = terms.RoAtm
			ttatmg[ia] = terms.TtAtmG
			satm[ia] = terms.SAtm
		}

		// Walk the intrinsic reflectance values to the first
		// non-increasing step; the fit stops just before it.
		iaMax := 1
		for ia := 1; ia < n; ia++ {
			if ia == n-1 {
				iaMax = n - 1
			}
			if roatm[ia]-roatm[ia-1] > fitEpsilon {
				continue
			}
			iaMax = ia - 1
			break
		}

		nfit := iaMax
		if nfit < nCoef {
			nfit = nCoef
		}
		bc := &BandCoefficients{
			// Tgo does not vary with AOT; keep the last evaluation.
			Tgo:         terms.Tgo,
			NormExt:     t.NormExt.Get(int(b), 0, refAOTIndex),
			MaxAOTIndex: iaMax,
		}
		var err1, err2, err3 error
		bc.RoAtm, err1 = cubicFit(t.AOT[:nfit], roatm[:nfit])
		bc.TtAtmG, err2 = cubicFit(t.AOT, ttatmg)
		bc.SAtm, err3 = cubicFit(t.AOT, satm)
		for _, err := range []error{err1, err2, err3} {
			if err != nil {
				return nil, fmt.Errorf("lasrc: fitting band %s coefficients: %v", b, err)
			}
		}
		c.Bands[b] = bc
	}
	return c, nil
}

// cubicFit returns the least-squares cubic polynomial coefficients
// (constant term first) for y as a function of x.
func cubicFit(x, y []float64) ([nCoef]float64, error) {
	var coef [nCoef]float64
	a := mat.NewDense(len(x), nCoef, nil)
	for i, xi := range x {
		v := 1.0
		for j := 0; j < nCoef; j++ {
			a.Set(i, j, v)
			v *= xi
		}
	}
	rhs := mat.NewVecDense(len(y), y)
	var sol mat.VecDense
	if err := sol.SolveVec(a, rhs); err != nil {
		return coef, fmt.Errorf("solving cubic fit: %v", err)
	}
	for j := 0; j < nCoef; j++ {
		coef[j] = sol.AtVec(j)
	}
	return coef, nil
}

func polyval(c [nCoef]float64, x float64) float64 {
	return c[0] + x*(c[1]+x*(c[2]+x*c[3]))
}

// Correct applies the fitted analytic forward model to band b: it
// converts the 550 nm optical thickness to the band optical thickness
// using the Angstrom exponent, evaluates the fitted polynomials, and
// inverts the Lambertian coupling to return the surface reflectance
// implied by TOA reflectance rotoa. This is the fast path used once
// per pixel during the final correction.
func (c *Coefficients) Correct(b Band, aot550, eps, rotoa float64) float64 {
	bc := c.Bands[b]
	tau := aot550 * math.Pow(bc.NormExt, eps)

	// The intrinsic reflectance fit is not trusted beyond the
	// truncation index.
	tauRo := tau
	if max := c.AOT[bc.MaxAOTIndex]; tauRo > max {
		tauRo = max
	}
	roatm := polyval(bc.RoAtm, tauRo)
	ttatmg := polyval(bc.TtAtmG, tau)
	satm := polyval(bc.SAtm, tau)

	roslamb := rotoa/bc.Tgo - roatm
	roslamb /= ttatmg + satm*roslamb
	return roslamb
}

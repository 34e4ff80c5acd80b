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

import "testing"

// cubicFit must reproduce data that is exactly cubic.
func TestCubicFitExact(t *testing.T) {
	const testTolerance = 1e-8
	want := [nCoef]float64{0.3, -1.2, 0.05, 0.007}
	x := DefaultAOTGrid()
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = polyval(want, xi)
	}
	got, err := cubicFit(x, y)
	if err != nil {
		t.Fatal(err)
	}
	for j := range want {
		if absDifferent(got[j], want[j], testTolerance) {
			t.Errorf("coefficient %d = %g; want %g", j, got[j], want[j])
		}
	}
}

// With tables that are exactly cubic in optical thickness, the fast
// polynomial path must agree with the full table evaluation at the
// grid nodes. Between nodes the table path is piecewise linear, so
// the two paths are only compared where both are exact.
func TestFitCoefficientsMatchTables(t *testing.T) {
	const testTolerance = 1e-7
	tables := testTables()
	coef, err := FitCoefficients(tables, testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range ReflBands {
		for _, aot := range []float64{0.05, 0.60, 1.40, 3.50} {
			terms, err := tables.Evaluate(testGeom, testAtm, aot, fitEps, b, 0.25)
			if err != nil {
				t.Fatal(err)
			}
			got := coef.Correct(b, aot, fitEps, 0.25)
			if different(got, terms.RoLamb, testTolerance) {
				t.Errorf("band %s at AOT %g: fast path %g, table path %g", b, aot, got, terms.RoLamb)
			}
		}
	}
}

// The synthetic intrinsic reflectance increases over the whole grid,
// so the fit truncation index must be the last grid index.
func TestFitTruncationMonotone(t *testing.T) {
	coef, err := FitCoefficients(testTables(), testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}
	n := len(coef.AOT)
	for _, b := range ReflBands {
		if got := coef.Bands[b].MaxAOTIndex; got != n-1 {
			t.Errorf("band %s truncation index = %d; want %d", b, got, n-1)
		}
	}
}

// When the tabulated intrinsic reflectance flattens mid-grid, the fit
// must stop just before the first non-increasing step.
func TestFitTruncationFlattened(t *testing.T) {
	tables := testTables()
	nb, np, na, nz := len(ReflBands), len(tables.Pressure), len(tables.AOT), len(tables.Zenith)
	const flat = 8
	for ib := 0; ib < nb; ib++ {
		for ip := 0; ip < np; ip++ {
			for ia := flat; ia < na; ia++ {
				for iz := 0; iz < nz; iz++ {
					tables.IntrinsicRefl.Set(
						tables.IntrinsicRefl.Get(ib, ip, flat-1, iz),
						ib, ip, ia, iz)
				}
			}
		}
	}
	coef, err := FitCoefficients(tables, testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range ReflBands {
		if got := coef.Bands[b].MaxAOTIndex; got != flat-1 {
			t.Errorf("band %s truncation index = %d; want %d", b, got, flat-1)
		}
	}
}

// Beyond the truncation index the intrinsic reflectance polynomial
// must be evaluated at the truncation grid value, not extrapolated.
func TestCorrectClampsTruncated(t *testing.T) {
	tables := testTables()
	coef, err := FitCoefficients(tables, testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}
	// Force a low truncation index and compare a beyond-range
	// correction against one at the truncation value with the other
	// polynomials held fixed there.
	bc := coef.Bands[Red]
	bc.MaxAOTIndex = 5
	maxTau := coef.AOT[5]
	roAtTrunc := polyval(bc.RoAtm, maxTau)
	roBeyond := polyval(bc.RoAtm, 2.0)
	if !absDifferent(roAtTrunc, roBeyond, 1e-9) {
		t.Fatal("test polynomials do not distinguish the truncation point")
	}
	got := coef.Correct(Red, 2.0, fitEps, 0.25)
	want := 0.25/bc.Tgo - roAtTrunc
	want /= polyval(bc.TtAtmG, 2.0) + polyval(bc.SAtm, 2.0)*want
	if different(got, want, 1e-9) {
		t.Errorf("truncated correction = %g; want %g", got, want)
	}
}

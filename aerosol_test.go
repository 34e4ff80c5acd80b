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
	"math"
	"testing"
)

// Synthesize TOA reflectances consistent with the band ratio model at
// a known optical thickness; the retrieval must find an optical
// thickness near it with a near-zero residual.
func TestRetrieveAOT(t *testing.T) {
	coef, err := FitCoefficients(testTables(), testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}

	const trueAOT = 0.5
	erelc := map[Band]float64{Coastal: 0.45, Blue: 0.70, Red: 1.0, SWIR2: 0.50}
	troatm := make(map[Band]float64)
	for b, rel := range erelc {
		troatm[b] = forwardTOA(coef, b, 0.10*rel, trueAOT, fitEps)
	}

	start := 0
	raot, residual := coef.RetrieveAOT(Red, erelc, troatm, fitEps, &start)
	if absDifferent(raot, trueAOT, 0.15) {
		t.Errorf("retrieved AOT = %g; want about %g", raot, trueAOT)
	}
	if residual > 0.01 {
		t.Errorf("residual at the minimum = %g; want near zero", residual)
	}
	if start < 0 || start >= len(coef.AOT) {
		t.Errorf("start cursor left at %d", start)
	}

	// Repeated retrievals over the same inputs must agree to the bit.
	for i := 0; i < 100; i++ {
		s := 0
		r, res := coef.RetrieveAOT(Red, erelc, troatm, fitEps, &s)
		if r != raot || res != residual {
			t.Fatalf("repeat %d retrieved (%g, %g); want (%g, %g)", i, r, res, raot, residual)
		}
	}
}

// When the residual keeps falling to the top of the grid, the
// retrieval must return the last grid value instead of running off
// the end.
func TestRetrieveAOTMonotoneResidual(t *testing.T) {
	coef, err := FitCoefficients(testTables(), testGeom, testAtm)
	if err != nil {
		t.Fatal(err)
	}
	erelc := map[Band]float64{Coastal: 0.45, Blue: 0.70, Red: 1.0, SWIR2: 0.50}
	troatm := make(map[Band]float64)
	for b, rel := range erelc {
		troatm[b] = forwardTOA(coef, b, 0.10*rel, 8.0, fitEps)
	}
	start := 0
	raot, _ := coef.RetrieveAOT(Red, erelc, troatm, fitEps, &start)
	grid := coef.AOT
	if raot > grid[len(grid)-1] || raot < grid[len(grid)-2] {
		t.Errorf("retrieved AOT = %g; want within the top grid interval", raot)
	}
}

// A flat residual gives a degenerate parabola; the refinement must
// fall back to the bracketing grid point.
func TestRefineAOTDegenerate(t *testing.T) {
	grid := DefaultAOTGrid()
	resid := func(float64) float64 { return 0.5 }
	v, r := refineAOT(grid, 5, 0.5, 0.5, 0.5, resid)
	if v != grid[5] || r != 0.5 {
		t.Errorf("degenerate refinement = (%g, %g); want (%g, 0.5)", v, r, grid[5])
	}

	// The first grid point has no left bracket.
	v, r = refineAOT(grid, 0, math.Inf(1), 0.3, 0.4, resid)
	if v != grid[0] || r != 0.3 {
		t.Errorf("edge refinement = (%g, %g); want (%g, 0.3)", v, r, grid[0])
	}
}

// A well-formed bracket refines to the parabola vertex inside it.
func TestRefineAOTVertex(t *testing.T) {
	grid := []float64{0, 1, 2, 3}
	f := func(x float64) float64 { return (x - 1.25) * (x - 1.25) }
	v, r := refineAOT(grid, 1, f(0), f(1), f(2), f)
	if absDifferent(v, 1.25, 1e-9) {
		t.Errorf("vertex = %g; want 1.25", v)
	}
	if absDifferent(r, 0, 1e-9) {
		t.Errorf("residual at vertex = %g; want 0", r)
	}
}

// Three equal trial residuals make the exponent parabola degenerate
// (its vertex expression is 0/0); the high boundary must be chosen.
func TestChooseEpsDegenerate(t *testing.T) {
	if got := chooseEps(0.02, 0.02, 0.02); got != highEps {
		t.Errorf("exponent for equal residuals = %g; want %g", got, highEps)
	}

	// Collinear residuals degenerate the same way.
	if got := chooseEps(0.03, 0.02, 0.01); got != highEps {
		t.Errorf("exponent for collinear residuals = %g; want %g", got, highEps)
	}
}

// A symmetric residual dip at the middle trial puts the vertex there.
func TestChooseEpsVertex(t *testing.T) {
	if got := chooseEps(0.03, 0.01, 0.03); absDifferent(got, modEps, 1e-9) {
		t.Errorf("exponent = %g; want %g", got, modEps)
	}
}

func TestFindNonFill(t *testing.T) {
	const nlines, nsamps = 10, 10
	fill := make([]bool, nlines*nsamps)
	for i := range fill {
		fill[i] = true
	}
	fill[7*nsamps+4] = false

	l, s, ok := findNonFill(fill, nlines, nsamps, 5, 5, 4)
	if !ok || l != 7 || s != 4 {
		t.Errorf("found (%d, %d, %v); want (7, 4, true)", l, s, ok)
	}

	// Out of radius.
	if _, _, ok := findNonFill(fill, nlines, nsamps, 0, 0, 4); ok {
		t.Error("found a pixel outside the search radius")
	}
}

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

	"github.com/ctessum/sparse"
)

func TestClimatologyValidate(t *testing.T) {
	if err := testClimatology().Validate(); err != nil {
		t.Fatal(err)
	}
	c := testClimatology()
	c.Ozone = nil
	if err := c.Validate(); err == nil {
		t.Error("missing ozone grid not detected")
	}
	c = testClimatology()
	c.DEM = sparse.ZerosDense(18, 72)
	if err := c.Validate(); err == nil {
		t.Error("grid shape mismatch not detected")
	}
}

// A cell whose mean band ratio falls outside [0.1, 1.0] is
// unreliable: its slopes must come back zero and its intercepts must
// be the fixed defaults, regardless of the stored model.
func TestSampleRatiosUnreliableCell(t *testing.T) {
	const testTolerance = 1e-9
	c := testClimatology()
	for i := range c.RatioB2.Elements {
		c.RatioB2.Elements[i] = 1500 // ratio 1.5, out of range
		c.SlopeB1.Elements[i] = 900
		c.SlopeB2.Elements[i] = 900
		c.SlopeB7.Elements[i] = 900
	}
	rs := c.SampleRatios(40, -100)
	if absDifferent(rs.SlopeB1, 0, testTolerance) ||
		absDifferent(rs.SlopeB2, 0, testTolerance) ||
		absDifferent(rs.SlopeB7, 0, testTolerance) {
		t.Errorf("unreliable cell slopes = (%g, %g, %g); want zero",
			rs.SlopeB1, rs.SlopeB2, rs.SlopeB7)
	}
	if absDifferent(rs.InterceptB1, 0.55, testTolerance) ||
		absDifferent(rs.InterceptB2, 0.60, testTolerance) ||
		absDifferent(rs.InterceptB7, 2.00, testTolerance) {
		t.Errorf("unreliable cell intercepts = (%g, %g, %g); want (0.55, 0.60, 2.00)",
			rs.InterceptB1, rs.InterceptB2, rs.InterceptB7)
	}
}

// A cell with too little NDWI variability keeps its mean ratios as
// constant intercepts.
func TestSampleRatiosLowVariabilityCell(t *testing.T) {
	const testTolerance = 1e-9
	c := testClimatology()
	for i := range c.NDWIStd.Elements {
		c.NDWIStd.Elements[i] = 100 // below the floor
		c.SlopeB2.Elements[i] = 900
	}
	rs := c.SampleRatios(40, -100)
	if absDifferent(rs.SlopeB2, 0, testTolerance) {
		t.Errorf("low variability slope = %g; want zero", rs.SlopeB2)
	}
	if absDifferent(rs.InterceptB2, 0.70, testTolerance) {
		t.Errorf("low variability intercept = %g; want the mean ratio 0.70", rs.InterceptB2)
	}
}

// The sanitization must not modify the stored grids; concurrent
// samples of neighboring locations depend on that.
func TestSampleRatiosDoesNotMutate(t *testing.T) {
	c := testClimatology()
	for i := range c.RatioB1.Elements {
		c.RatioB1.Elements[i] = 1500
	}
	c.SampleRatios(40, -100)
	for i, v := range c.RatioB1.Elements {
		if v != 1500 {
			t.Fatalf("ratio grid element %d changed to %g", i, v)
		}
	}
	for i, v := range c.SlopeB1.Elements {
		if v != 0 {
			t.Fatalf("slope grid element %d changed to %g", i, v)
		}
	}
}

// Longitudes at the date line interpolate with the wrapped first
// column, and latitudes at the poles repeat the edge row instead of
// indexing out of range.
func TestCellEdges(t *testing.T) {
	c := testClimatology()
	_, s, _, s1, _, _ := c.cell(0, 179.99)
	if s != c.DEM.Shape[1]-1 || s1 != 0 {
		t.Errorf("date line columns = (%d, %d); want (%d, 0)", s, s1, c.DEM.Shape[1]-1)
	}
	l, _, l1, _, _, _ := c.cell(-89.99, 0)
	if l != c.DEM.Shape[0]-1 || l1 != l {
		t.Errorf("south pole rows = (%d, %d); want repeated edge row", l, l1)
	}
	l, s, _, _, _, _ = c.cell(95, -200)
	if l != 0 || s != 0 {
		t.Errorf("out of range position clamped to (%d, %d); want (0, 0)", l, s)
	}
}

func TestSurfacePressure(t *testing.T) {
	const testTolerance = 1e-6
	c := testClimatology()
	if p := c.SurfacePressure(40, -100); absDifferent(p, 1013, testTolerance) {
		t.Errorf("sea level pressure = %g; want 1013", p)
	}

	for i := range c.DEM.Elements {
		c.DEM.Elements[i] = 1700
	}
	want := 1013 * math.Exp(-1700/pressureScaleHeight)
	if p := c.SurfacePressure(40, -100); different(p, want, testTolerance) {
		t.Errorf("pressure at 1700 m = %g; want %g", p, want)
	}

	// Ocean fill elevations behave as sea level.
	for i := range c.DEM.Elements {
		c.DEM.Elements[i] = -9999
	}
	if p := c.SurfacePressure(40, -100); absDifferent(p, 1013, testTolerance) {
		t.Errorf("ocean fill pressure = %g; want 1013", p)
	}
}

func TestAtmosphere(t *testing.T) {
	const testTolerance = 1e-9
	c := testClimatology()
	oz, wv := c.Atmosphere(40, -100)
	if absDifferent(oz, 0.3, testTolerance) {
		t.Errorf("ozone = %g atm-cm; want 0.3", oz)
	}
	if absDifferent(wv, 1.0, testTolerance) {
		t.Errorf("water vapor = %g g/cm²; want 1.0", wv)
	}
}

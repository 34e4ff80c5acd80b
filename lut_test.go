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

func TestGridLocate(t *testing.T) {
	grid := []float64{0, 1, 2, 4}
	cases := []struct {
		v    float64
		i    int
		f    float64
	}{
		{-1, 0, 0},   // below the grid clamps to the low edge
		{0, 0, 0},
		{0.5, 0, 0.5},
		{1, 1, 0},
		{3, 2, 0.5},
		{4, 2, 1},
		{9, 2, 1},    // above the grid clamps to the high edge
	}
	for _, c := range cases {
		i, f := gridLocate(grid, c.v)
		if i != c.i || absDifferent(f, c.f, 1e-12) {
			t.Errorf("gridLocate(%g) = (%d, %g); want (%d, %g)", c.v, i, f, c.i, c.f)
		}
	}
}

func TestPressureLocate(t *testing.T) {
	grid := []float64{1050, 1013, 900}
	cases := []struct {
		v float64
		i int
		f float64
	}{
		{1100, 0, 0},
		{1050, 0, 0},
		{1013, 1, 0},
		{956.5, 1, 0.5},
		{900, 1, 1},
		{500, 1, 1},
	}
	for _, c := range cases {
		i, f := pressureLocate(grid, c.v)
		if i != c.i || absDifferent(f, c.f, 1e-12) {
			t.Errorf("pressureLocate(%g) = (%d, %g); want (%d, %g)", c.v, i, f, c.i, c.f)
		}
	}
}

func TestGasTransmission(t *testing.T) {
	tables := testTables()
	m := 1/math.Cos(30*deg2rad) + 1 // sun at 30 degrees, nadir view
	for _, b := range ReflBands {
		tgoz, tgwv, tgog := tables.gasTransmission(b, m, testAtm)
		for _, v := range []struct {
			name string
			v    float64
		}{{"ozone", tgoz}, {"water vapor", tgwv}, {"other gas", tgog}} {
			if v.v <= 0 || v.v > 1.001 {
				t.Errorf("band %s %s transmission = %g; want (0, 1]", b, v.name, v.v)
			}
		}
	}

	// The remaining gases are weak absorbers: at sea-level pressure
	// their transmittance stays near unity in every band and must not
	// collapse toward zero.
	for _, b := range ReflBands {
		_, _, tgog := tables.gasTransmission(b, m, testAtm)
		if tgog < 0.9 {
			t.Errorf("band %s other gas transmission = %g; want >= 0.9", b, tgog)
		}
	}

	// Higher surface pressure means a longer absorbing path.
	high := testAtm
	high.Pressure = 1050
	low := testAtm
	low.Pressure = 900
	_, _, highOg := tables.gasTransmission(SWIR2, m, high)
	_, _, lowOg := tables.gasTransmission(SWIR2, m, low)
	if highOg >= lowOg {
		t.Errorf("SWIR2 other gas transmission %g at 1050 hPa not below %g at 900 hPa", highOg, lowOg)
	}

	// More water vapor must absorb more in the water-sensitive bands.
	wet := testAtm
	wet.WaterVapor = 3.0
	_, dryWv, _ := tables.gasTransmission(SWIR2, m, testAtm)
	_, wetWv, _ := tables.gasTransmission(SWIR2, m, wet)
	if wetWv >= dryWv {
		t.Errorf("SWIR2 water vapor transmission %g at 3 g/cm² not below %g at 1 g/cm²", wetWv, dryWv)
	}
}

func TestTablesValidate(t *testing.T) {
	if err := testTables().Validate(); err != nil {
		t.Fatal(err)
	}

	missing := testTables()
	missing.SphericalAlbedo = nil
	if err := missing.Validate(); err == nil {
		t.Error("missing spherical albedo table not detected")
	}

	short := testTables()
	short.AOT = short.AOT[:10]
	if err := short.Validate(); err == nil {
		t.Error("AOT axis mismatch not detected")
	}

	noGas := testTables()
	noGas.Gas = nil
	if err := noGas.Validate(); err == nil {
		t.Error("missing gas coefficients not detected")
	}
}

// The Lambertian inversion in Evaluate must invert the forward
// coupling: reconstructing TOA reflectance from a known surface
// reflectance and evaluating it must return that surface reflectance.
func TestEvaluateRoundTrip(t *testing.T) {
	const testTolerance = 1e-9
	tables := testTables()
	for _, b := range ReflBands {
		for _, ros := range []float64{0.02, 0.1, 0.4} {
			terms, err := tables.Evaluate(testGeom, testAtm, 0.3, fitEps, b, 0)
			if err != nil {
				t.Fatal(err)
			}
			rotoa := (ros*terms.TtAtmG/(1-terms.SAtm*ros) + terms.RoAtm) * terms.Tgo
			got, err := tables.Evaluate(testGeom, testAtm, 0.3, fitEps, b, rotoa)
			if err != nil {
				t.Fatal(err)
			}
			if different(got.RoLamb, ros, testTolerance) {
				t.Errorf("band %s: round trip of %g returned %g", b, ros, got.RoLamb)
			}
		}
	}
}

// Optical thickness beyond the tabulated grid must clamp to the grid
// edge rather than extrapolate.
func TestEvaluateClampsAOT(t *testing.T) {
	tables := testTables()
	edge, err := tables.Evaluate(testGeom, testAtm, 5.0, fitEps, Red, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	beyond, err := tables.Evaluate(testGeom, testAtm, 8.0, fitEps, Red, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if different(edge.RoAtm, beyond.RoAtm, 1e-12) {
		t.Errorf("intrinsic reflectance extrapolated beyond the AOT grid: %g != %g", beyond.RoAtm, edge.RoAtm)
	}
}

func TestScatterAngle(t *testing.T) {
	tables := testTables()
	// Sun and view both at nadir scatter straight back.
	got := tables.scatterAngle(Geometry{})
	if absDifferent(got, 180, 1e-9) {
		t.Errorf("nadir scattering angle = %g; want 180", got)
	}
}

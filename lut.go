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

	"github.com/ctessum/sparse"
)

const deg2rad = math.Pi / 180

// stdPressure is standard sea-level pressure in hPa, used to
// normalize surface pressure in the closed-form transmittance
// models and the Rayleigh optical depth.
const stdPressure = 1013.0

// Geometry holds the sun and view angles for a scene, in degrees.
type Geometry struct {
	SolarZenith     float64
	ViewZenith      float64
	RelativeAzimuth float64 // azimuthal difference between sun and view
}

func (g Geometry) cosines() (xmus, xmuv, cosxfi float64) {
	xmus = math.Cos(g.SolarZenith * deg2rad)
	xmuv = math.Cos(g.ViewZenith * deg2rad)
	cosxfi = math.Cos(g.RelativeAzimuth * deg2rad)
	return
}

// Atmos holds the scene-representative atmospheric state: surface
// pressure [hPa], total column ozone [atm-cm], and total column water
// vapor [g/cm²].
type Atmos struct {
	Pressure   float64
	Ozone      float64
	WaterVapor float64
}

// AtmosTerms holds the radiative transfer quantities produced by one
// evaluation of the lookup tables: the intrinsic atmospheric
// reflectance (RoAtm), the total atmospheric transmission including
// water vapor (TtAtmG), the atmosphere spherical albedo (SAtm), the
// other-gas transmittance (Tgo, the product of the ozone and
// remaining-gas terms), and the molecular scattering reflectance
// (RoRay). RoLamb is the Lambertian surface reflectance implied by
// the TOA reflectance the evaluation was given.
type AtmosTerms struct {
	RoLamb float64
	Tgo    float64
	RoAtm  float64
	TtAtmG float64
	SAtm   float64
	RoRay  float64
}

// Tables holds the precomputed radiative transfer lookup tables,
// tabulated per reflective band over surface pressure, aerosol
// optical thickness, and zenith angle. The tables are immutable once
// loaded and may be shared across goroutines without locking.
type Tables struct {
	// IntrinsicRefl is the intrinsic atmospheric reflectance,
	// dimensioned [band, pressure, AOT, zenith angle].
	IntrinsicRefl *sparse.DenseArray

	// Transmission is the one-way atmospheric transmission,
	// dimensioned [band, pressure, AOT, zenith angle].
	Transmission *sparse.DenseArray

	// SphericalAlbedo is the atmosphere spherical albedo,
	// dimensioned [band, pressure, AOT].
	SphericalAlbedo *sparse.DenseArray

	// NormExt is the aerosol extinction coefficient at the band
	// wavelength, normalized to 550 nm, dimensioned
	// [band, pressure, AOT].
	NormExt *sparse.DenseArray

	// ScatterMax and ScatterMin bound the scattering angle [degrees]
	// covered by the tables, dimensioned [view zenith, sun zenith].
	ScatterMax *sparse.DenseArray
	ScatterMin *sparse.DenseArray

	// Zenith is the zenith-angle grid [degrees] for the last axis of
	// IntrinsicRefl and Transmission.
	Zenith []float64

	// ViewZenith is the view-angle grid [degrees] for the scattering
	// angle bound tables.
	ViewZenith []float64

	// AOT is the aerosol optical thickness grid (at 550 nm).
	AOT []float64

	// Pressure is the surface pressure grid [hPa], highest first.
	Pressure []float64

	// Gas holds the closed-form gas transmission coefficients.
	Gas *GasCoefficients
}

// refAOTIndex is the AOT grid index whose normalized extinction value
// represents the band's reference extinction when converting a 550 nm
// optical thickness to a band optical thickness.
const refAOTIndex = 3

// Validate checks that the tables are present and mutually
// consistent. A nil or zero-sized table is a configuration error.
func (t *Tables) Validate() error {
	if t.Gas == nil {
		return fmt.Errorf("lasrc: gas coefficients are missing")
	}
	nb, np, na, nz := len(ReflBands), len(t.Pressure), len(t.AOT), len(t.Zenith)
	if np == 0 || na == 0 || nz == 0 {
		return fmt.Errorf("lasrc: empty table axis: %d pressure, %d AOT, %d zenith values", np, na, nz)
	}
	check := func(name string, a *sparse.DenseArray, shape ...int) error {
		if a == nil || len(a.Elements) == 0 {
			return fmt.Errorf("lasrc: %s table is missing or empty", name)
		}
		if len(a.Shape) != len(shape) {
			return fmt.Errorf("lasrc: %s table has %d dimensions; want %d", name, len(a.Shape), len(shape))
		}
		for i, s := range shape {
			if a.Shape[i] != s {
				return fmt.Errorf("lasrc: %s table dimension %d is %d; want %d", name, i, a.Shape[i], s)
			}
		}
		return nil
	}
	if err := check("intrinsic reflectance", t.IntrinsicRefl, nb, np, na, nz); err != nil {
		return err
	}
	if err := check("transmission", t.Transmission, nb, np, na, nz); err != nil {
		return err
	}
	if err := check("spherical albedo", t.SphericalAlbedo, nb, np, na); err != nil {
		return err
	}
	if err := check("normalized extinction", t.NormExt, nb, np, na); err != nil {
		return err
	}
	if t.ScatterMax != nil || t.ScatterMin != nil {
		nv := len(t.ViewZenith)
		if err := check("maximum scattering angle", t.ScatterMax, nv, nz); err != nil {
			return err
		}
		if err := check("minimum scattering angle", t.ScatterMin, nv, nz); err != nil {
			return err
		}
	}
	for _, b := range ReflBands {
		for _, m := range []map[Band]float64{t.Gas.Tauray, t.Gas.OzTransA,
			t.Gas.WvTransA, t.Gas.WvTransB, t.Gas.OgTransA1,
			t.Gas.OgTransB0, t.Gas.OgTransB1} {
			if _, ok := m[b]; !ok {
				return fmt.Errorf("lasrc: gas coefficients are missing band %s", b)
			}
		}
	}
	return nil
}

// gridLocate returns the lower index and the fractional offset of v
// in the ascending grid, clamping out-of-range values to the edges.
func gridLocate(grid []float64, v float64) (int, float64) {
	n := len(grid)
	if v <= grid[0] {
		return 0, 0
	}
	if v >= grid[n-1] {
		return n - 2, 1
	}
	i := 0
	for i < n-2 && v >= grid[i+1] {
		i++
	}
	return i, (v - grid[i]) / (grid[i+1] - grid[i])
}

// pressureLocate is gridLocate for the descending pressure grid.
func pressureLocate(grid []float64, v float64) (int, float64) {
	n := len(grid)
	if v >= grid[0] {
		return 0, 0
	}
	if v <= grid[n-1] {
		return n - 2, 1
	}
	i := 0
	for i < n-2 && v <= grid[i+1] {
		i++
	}
	return i, (grid[i] - v) / (grid[i] - grid[i+1])
}

// bandAOT converts an optical thickness at 550 nm to the optical
// thickness at band b's wavelength for Angstrom exponent eps, using
// the band's normalized extinction coefficient.
func (t *Tables) bandAOT(b Band, aot550, eps float64) float64 {
	next := t.NormExt.Get(int(b), 0, refAOTIndex)
	return aot550 * math.Pow(next, eps)
}

// gasTransmission evaluates the closed-form ozone, water vapor, and
// other-gas transmittance models for band b at air mass m.
func (t *Tables) gasTransmission(b Band, m float64, atm Atmos) (tgoz, tgwv, tgog float64) {
	g := t.Gas
	tgoz = math.Exp(g.OzTransA[b] * m * atm.Ozone)
	tgwv = math.Exp(-g.WvTransA[b] * math.Pow(m*atm.WaterVapor, g.WvTransB[b]))
	pres := atm.Pressure / stdPressure
	tgog = math.Exp(-g.OgTransA1[b] * pres *
		math.Pow(m, g.OgTransB0[b]+g.OgTransB1[b]*pres))
	return
}

// trilinear interpolates table a at band b over fractional pressure,
// AOT, and zenith-angle positions.
func trilinear(a *sparse.DenseArray, b Band, ip int, fp float64, ia int, fa float64, iz int, fz float64) float64 {
	var v float64
	for dp := 0; dp < 2; dp++ {
		wp := 1 - fp
		if dp == 1 {
			wp = fp
		}
		for da := 0; da < 2; da++ {
			wa := 1 - fa
			if da == 1 {
				wa = fa
			}
			for dz := 0; dz < 2; dz++ {
				wz := 1 - fz
				if dz == 1 {
					wz = fz
				}
				v += wp * wa * wz * a.Get(int(b), ip+dp, ia+da, iz+dz)
			}
		}
	}
	return v
}

// bilinear interpolates table a at band b over fractional pressure
// and AOT positions.
func bilinear(a *sparse.DenseArray, b Band, ip int, fp float64, ia int, fa float64) float64 {
	return (1-fp)*(1-fa)*a.Get(int(b), ip, ia) +
		(1-fp)*fa*a.Get(int(b), ip, ia+1) +
		fp*(1-fa)*a.Get(int(b), ip+1, ia) +
		fp*fa*a.Get(int(b), ip+1, ia+1)
}

// scatterAngle returns the scattering angle [degrees] for the given
// geometry, clamped to the table's scattering-angle bounds when they
// are available.
func (t *Tables) scatterAngle(g Geometry) float64 {
	xmus, xmuv, cosxfi := g.cosines()
	cosScat := -xmus*xmuv - math.Sqrt(1-xmus*xmus)*math.Sqrt(1-xmuv*xmuv)*cosxfi
	if cosScat < -1 {
		cosScat = -1
	} else if cosScat > 1 {
		cosScat = 1
	}
	scat := math.Acos(cosScat) / deg2rad
	if t.ScatterMax == nil || t.ScatterMin == nil {
		return scat
	}
	iv, fv := gridLocate(t.ViewZenith, g.ViewZenith)
	is, fs := gridLocate(t.Zenith, g.SolarZenith)
	interp := func(a *sparse.DenseArray) float64 {
		return (1-fv)*(1-fs)*a.Get(iv, is) + (1-fv)*fs*a.Get(iv, is+1) +
			fv*(1-fs)*a.Get(iv+1, is) + fv*fs*a.Get(iv+1, is+1)
	}
	if max := interp(t.ScatterMax); scat > max {
		scat = max
	}
	if min := interp(t.ScatterMin); scat < min {
		scat = min
	}
	return scat
}

// Evaluate performs one full (table-interpolating) evaluation of the
// atmospheric model for band b: given the sun/view geometry, the
// atmospheric state, an aerosol optical thickness at 550 nm, and an
// Angstrom exponent, it returns the radiative transfer terms and the
// Lambertian surface reflectance implied by TOA reflectance rotoa.
// Geometry, pressure, and optical thickness values outside the table
// domain are clamped to the nearest grid edge. This is the slow path;
// per-pixel corrections use the fitted polynomial path instead
// (Coefficients.Correct).
func (t *Tables) Evaluate(g Geometry, atm Atmos, aot550, eps float64, b Band, rotoa float64) (AtmosTerms, error) {
	if int(b) < 0 || int(b) >= t.IntrinsicRefl.Shape[0] {
		return AtmosTerms{}, fmt.Errorf("lasrc: band %s is outside the lookup tables", b)
	}
	xmus, xmuv, _ := g.cosines()
	m := 1/xmus + 1/xmuv

	tau := t.bandAOT(b, aot550, eps)
	ip, fp := pressureLocate(t.Pressure, atm.Pressure)
	ia, fa := gridLocate(t.AOT, tau)
	is, fs := gridLocate(t.Zenith, g.SolarZenith)
	iv, fv := gridLocate(t.Zenith, g.ViewZenith)

	roatm := trilinear(t.IntrinsicRefl, b, ip, fp, ia, fa, is, fs)
	tsun := trilinear(t.Transmission, b, ip, fp, ia, fa, is, fs)
	tview := trilinear(t.Transmission, b, ip, fp, ia, fa, iv, fv)
	satm := bilinear(t.SphericalAlbedo, b, ip, fp, ia, fa)

	tgoz, tgwv, tgog := t.gasTransmission(b, m, atm)
	tgo := tgog * tgoz
	ttatmg := tsun * tview * tgwv

	// Molecular scattering reflectance from the single-scattering
	// phase function at the (bounded) scattering angle.
	scat := t.scatterAngle(g)
	cosScat := math.Cos(scat * deg2rad)
	taur := t.Gas.Tauray[b] * atm.Pressure / stdPressure
	roray := taur * 0.75 * (1 + cosScat*cosScat) / (4 * xmus * xmuv)

	roslamb := rotoa/tgo - roatm
	roslamb /= ttatmg + satm*roslamb

	return AtmosTerms{
		RoLamb: roslamb,
		Tgo:    tgo,
		RoAtm:  roatm,
		TtAtmG: ttatmg,
		SAtm:   satm,
		RoRay:  roray,
	}, nil
}

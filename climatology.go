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

// Climatology holds the coarse global auxiliary grids used to
// constrain the aerosol retrieval: DEM elevation, NDWI statistics,
// band ratio slope/intercept, ozone, and water vapor. All grids span
// -90..90 latitude and -180..180 longitude at the same resolution
// (0.05° for the standard products) and are sampled by bilinear
// interpolation. The grids are read-only after loading.
//
// The NDWI and band ratio grids store values scaled by 1000, as
// delivered in the auxiliary products.
type Climatology struct {
	// DEM is the surface elevation [m]; values below -500 are ocean
	// fill.
	DEM *sparse.DenseArray

	// NDWIAvg and NDWIStd are the mean and standard deviation of the
	// normalized difference water index (scaled by 1000).
	NDWIAvg *sparse.DenseArray
	NDWIStd *sparse.DenseArray

	// RatioB1, RatioB2, and RatioB7 are mean band ratios relative to
	// the red band (scaled by 1000).
	RatioB1 *sparse.DenseArray
	RatioB2 *sparse.DenseArray
	RatioB7 *sparse.DenseArray

	// Slope and intercept of the NDWI-dependent band ratio model
	// (scaled by 1000).
	SlopeB1     *sparse.DenseArray
	SlopeB2     *sparse.DenseArray
	SlopeB7     *sparse.DenseArray
	InterceptB1 *sparse.DenseArray
	InterceptB2 *sparse.DenseArray
	InterceptB7 *sparse.DenseArray

	// WaterVapor is total column water vapor (scaled; divide by 200
	// for g/cm²). Ozone is total column ozone (scaled; divide by 400
	// for atm-cm).
	WaterVapor *sparse.DenseArray
	Ozone      *sparse.DenseArray
}

// Fixed fallback intercepts (scaled by 1000) used when a ratio cell
// is judged unreliable.
const (
	defaultInterceptB1 = 550
	defaultInterceptB2 = 600
	defaultInterceptB7 = 2000
)

// ndwiStdFloor is the NDWI standard deviation (scaled) below which a
// cell's ratio slope is not trusted.
const ndwiStdFloor = 200

// pressureScaleHeight converts DEM elevation to surface pressure.
const pressureScaleHeight = 8500.0 // m

// Validate checks that all grids are present and share one shape.
func (c *Climatology) Validate() error {
	grids := []struct {
		name string
		a    *sparse.DenseArray
	}{
		{"DEM", c.DEM}, {"NDWI average", c.NDWIAvg}, {"NDWI standard deviation", c.NDWIStd},
		{"band 1 ratio", c.RatioB1}, {"band 2 ratio", c.RatioB2}, {"band 7 ratio", c.RatioB7},
		{"band 1 slope", c.SlopeB1}, {"band 2 slope", c.SlopeB2}, {"band 7 slope", c.SlopeB7},
		{"band 1 intercept", c.InterceptB1}, {"band 2 intercept", c.InterceptB2},
		{"band 7 intercept", c.InterceptB7},
		{"water vapor", c.WaterVapor}, {"ozone", c.Ozone},
	}
	var nlat, nlon int
	for _, g := range grids {
		if g.a == nil || len(g.a.Elements) == 0 {
			return fmt.Errorf("lasrc: climatology %s grid is missing or empty", g.name)
		}
		if len(g.a.Shape) != 2 {
			return fmt.Errorf("lasrc: climatology %s grid has %d dimensions; want 2", g.name, len(g.a.Shape))
		}
		if nlat == 0 {
			nlat, nlon = g.a.Shape[0], g.a.Shape[1]
		} else if g.a.Shape[0] != nlat || g.a.Shape[1] != nlon {
			return fmt.Errorf("lasrc: climatology %s grid is %d×%d; want %d×%d",
				g.name, g.a.Shape[0], g.a.Shape[1], nlat, nlon)
		}
	}
	return nil
}

// cell maps a lat/lon to the fractional grid coordinates: the lower
// row/column, the next row/column (wrapping the column at the date
// line and repeating the row at the pole), and the fractional
// offsets. Out-of-range positions clamp to the grid edges. Index
// truncation is deliberate; the interpolation neighbors are defined
// relative to the truncated cell.
func (c *Climatology) cell(lat, lon float64) (l, s, l1, s1 int, u, v float64) {
	nlat, nlon := c.DEM.Shape[0], c.DEM.Shape[1]
	perDeg := float64(nlat) / 180

	y := (90-lat)*perDeg - 0.5
	x := (180+lon)*perDeg - 0.5
	l = int(y)
	s = int(x)

	if l < 0 {
		l = 0
	} else if l >= nlat {
		l = nlat - 1
	}
	if s < 0 {
		s = 0
	} else if s >= nlon {
		s = nlon - 1
	}

	// The next column wraps around the date line; the next row at
	// the pole repeats the last row.
	if s >= nlon-1 {
		s1 = 0
	} else {
		s1 = s + 1
	}
	if l >= nlat-1 {
		l1 = l
	} else {
		l1 = l + 1
	}

	u = y - float64(l)
	v = x - float64(s)
	if u < 0 {
		u = 0
	} else if u > 1 {
		u = 1
	}
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return
}

// RatioSample holds the band ratio model sampled at one location:
// per-band slope and intercept (unscaled), and the NDWI bounds the
// water index is clamped to before applying the model.
type RatioSample struct {
	SlopeB1, InterceptB1 float64
	SlopeB2, InterceptB2 float64
	SlopeB7, InterceptB7 float64
	NDWIUpper, NDWILower float64
}

// ratioCell holds one sanitized ratio cell (still scaled by 1000).
type ratioCell struct {
	slp1, int1, slp2, int2, slp7, int7 float64
}

// sanitizedCell returns the ratio model values for a single grid
// cell, overriding unreliable cells: cells whose band 1 or band 2
// ratio lies outside [0.1, 1.0] get zero slopes and fixed default
// intercepts, and cells with an NDWI standard deviation below the
// floor get zero slopes with their mean ratios as intercepts.
func (c *Climatology) sanitizedCell(l, s int) ratioCell {
	rb1 := c.RatioB1.Get(l, s) * 0.001
	rb2 := c.RatioB2.Get(l, s) * 0.001
	if rb2 > 1.0 || rb1 > 1.0 || rb2 < 0.1 || rb1 < 0.1 {
		return ratioCell{
			int1: defaultInterceptB1,
			int2: defaultInterceptB2,
			int7: defaultInterceptB7,
		}
	}
	if c.NDWIStd.Get(l, s) < ndwiStdFloor {
		return ratioCell{
			int1: c.RatioB1.Get(l, s),
			int2: c.RatioB2.Get(l, s),
			int7: c.RatioB7.Get(l, s),
		}
	}
	return ratioCell{
		slp1: c.SlopeB1.Get(l, s), int1: c.InterceptB1.Get(l, s),
		slp2: c.SlopeB2.Get(l, s), int2: c.InterceptB2.Get(l, s),
		slp7: c.SlopeB7.Get(l, s), int7: c.InterceptB7.Get(l, s),
	}
}

// SampleRatios bilinearly interpolates the sanitized band ratio model
// at lat/lon.
func (c *Climatology) SampleRatios(lat, lon float64) RatioSample {
	l, s, l1, s1, u, v := c.cell(lat, lon)

	c11 := c.sanitizedCell(l, s)
	c12 := c.sanitizedCell(l, s1)
	c21 := c.sanitizedCell(l1, s)
	c22 := c.sanitizedCell(l1, s1)

	w11 := (1 - u) * (1 - v)
	w12 := (1 - u) * v
	w21 := u * (1 - v)
	w22 := u * v

	interp := func(f func(ratioCell) float64) float64 {
		return 0.001 * (w11*f(c11) + w12*f(c12) + w21*f(c21) + w22*f(c22))
	}

	// The NDWI clamp bounds come from the containing cell.
	avg := c.NDWIAvg.Get(l, s)
	std := c.NDWIStd.Get(l, s)

	return RatioSample{
		SlopeB1:     interp(func(r ratioCell) float64 { return r.slp1 }),
		InterceptB1: interp(func(r ratioCell) float64 { return r.int1 }),
		SlopeB2:     interp(func(r ratioCell) float64 { return r.slp2 }),
		InterceptB2: interp(func(r ratioCell) float64 { return r.int2 }),
		SlopeB7:     interp(func(r ratioCell) float64 { return r.slp7 }),
		InterceptB7: interp(func(r ratioCell) float64 { return r.int7 }),
		NDWIUpper:   (avg + 2*std) * 0.001,
		NDWILower:   (avg - 2*std) * 0.001,
	}
}

// SurfacePressure returns the surface pressure [hPa] at lat/lon,
// derived from the bilinearly interpolated DEM elevation. Ocean fill
// cells yield sea-level pressure.
func (c *Climatology) SurfacePressure(lat, lon float64) float64 {
	l, s, l1, s1, u, v := c.cell(lat, lon)
	h := (1-u)*(1-v)*c.DEM.Get(l, s) + (1-u)*v*c.DEM.Get(l, s1) +
		u*(1-v)*c.DEM.Get(l1, s) + u*v*c.DEM.Get(l1, s1)
	if h < -500 {
		return stdPressure
	}
	return stdPressure * math.Exp(-h/pressureScaleHeight)
}

// Atmosphere returns the total column ozone [atm-cm] and water vapor
// [g/cm²] at lat/lon.
func (c *Climatology) Atmosphere(lat, lon float64) (ozone, waterVapor float64) {
	l, s, l1, s1, u, v := c.cell(lat, lon)
	interp := func(a *sparse.DenseArray) float64 {
		return (1-u)*(1-v)*a.Get(l, s) + (1-u)*v*a.Get(l, s1) +
			u*(1-v)*a.Get(l1, s) + u*v*a.Get(l1, s1)
	}
	return interp(c.Ozone) / 400.0, interp(c.WaterVapor) / 200.0
}

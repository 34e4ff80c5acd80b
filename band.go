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

// Package lasrc corrects calibrated Landsat 8/9 top-of-atmosphere
// reflectance to surface reflectance by estimating and removing the
// atmospheric contribution (aerosol scattering, gas absorption,
// Rayleigh scattering) on a per-pixel basis.
package lasrc

import "fmt"

// Version is the processor version reported in output metadata.
const Version = "3.0.1"

// Band identifies one spectral band of the OLI/TIRS instruments.
// The panchromatic and cirrus bands are not processed and have no
// identifier here.
type Band int

// The spectral bands, in wavelength order.
const (
	Coastal Band = iota // OLI band 1, 443 nm
	Blue                // OLI band 2, 482 nm
	Green               // OLI band 3, 562 nm
	Red                 // OLI band 4, 655 nm
	NIR                 // OLI band 5, 865 nm
	SWIR1               // OLI band 6, 1610 nm
	SWIR2               // OLI band 7, 2200 nm
	Thermal1            // TIRS band 10
	Thermal2            // TIRS band 11
)

var bandNames = map[Band]string{
	Coastal:  "coastal",
	Blue:     "blue",
	Green:    "green",
	Red:      "red",
	NIR:      "nir",
	SWIR1:    "swir1",
	SWIR2:    "swir2",
	Thermal1: "thermal1",
	Thermal2: "thermal2",
}

func (b Band) String() string {
	if s, ok := bandNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// ParseBand returns the band with the given name, which must match
// the output of Band.String.
func ParseBand(name string) (Band, error) {
	for b, s := range bandNames {
		if s == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("lasrc: unknown band %q", name)
}

// ReflBands lists the reflective bands that receive atmospheric
// correction, in wavelength order.
var ReflBands = []Band{Coastal, Blue, Green, Red, NIR, SWIR1, SWIR2}

// ThermalBands lists the TIRS bands, which are calibrated to
// brightness temperature but not atmospherically corrected.
var ThermalBands = []Band{Thermal1, Thermal2}

// Satellite identifies the Landsat platform a scene was acquired by.
type Satellite int

// The supported platforms.
const (
	Landsat8 Satellite = 8
	Landsat9 Satellite = 9
)

// Per-pixel aerosol QA flags. FlagFill marks level-1 fill; FlagClear
// marks a valid aerosol retrieval; FlagWater marks water. FlagAero1
// and FlagAero2 encode the aerosol impact level (low, average, or,
// with both set, high) and are assigned during the final correction.
const (
	FlagFill  uint8 = 1 << 0
	FlagClear uint8 = 1 << 1
	FlagWater uint8 = 1 << 2
	FlagAero1 uint8 = 1 << 6
	FlagAero2 uint8 = 1 << 7
)

// Valid data ranges and the fill sentinel for unscaled values.
const (
	FillValue    = -9999.0
	MinValidRefl = -0.01
	MaxValidRefl = 1.6
	MinValidTemp = 150.0 // Kelvin
	MaxValidTemp = 373.0 // Kelvin
)

// Output scaling for the int16-encoded surface reflectance product.
const (
	ReflScale  = 0.0000275
	ReflOffset = -0.2
	OutputFill = 0
)

// GasCoefficients holds the per-band gas-transmission and molecular
// optical thickness coefficients used by the closed-form parts of the
// radiative transfer evaluation. The default values were produced by
// running the 6S radiative transfer code; they are held in an explicit
// configuration structure so they can be recalibrated without touching
// algorithm code.
type GasCoefficients struct {
	// Tauray is the molecular (Rayleigh) optical thickness at
	// standard pressure.
	Tauray map[Band]float64

	// OzTransA is the ozone transmission coefficient.
	OzTransA map[Band]float64

	// WvTransA and WvTransB are the water vapor transmission
	// coefficients.
	WvTransA map[Band]float64
	WvTransB map[Band]float64

	// OgTransA1, OgTransB0 and OgTransB1 are the transmission
	// coefficients for the remaining gases.
	OgTransA1 map[Band]float64
	OgTransB0 map[Band]float64
	OgTransB1 map[Band]float64
}

// DefaultGasCoefficients returns the 6S-derived gas transmission
// coefficients for the OLI reflective bands.
func DefaultGasCoefficients() *GasCoefficients {
	return &GasCoefficients{
		Tauray: map[Band]float64{
			Coastal: 0.23638, Blue: 0.16933, Green: 0.09070,
			Red: 0.04827, NIR: 0.01563, SWIR1: 0.00129, SWIR2: 0.00037,
		},
		OzTransA: map[Band]float64{
			Coastal: -0.00255649, Blue: -0.0177861, Green: -0.0969872,
			Red: -0.0611428, NIR: 0.0001, SWIR1: 0.0001, SWIR2: 0.0001,
		},
		WvTransA: map[Band]float64{
			Coastal: 2.29849e-27, Blue: 2.29849e-27, Green: 0.00194772,
			Red: 0.00404159, NIR: 0.000729136, SWIR1: 0.00067324,
			SWIR2: 0.0177533,
		},
		WvTransB: map[Band]float64{
			Coastal: 0.999742, Blue: 0.999742, Green: 0.775024,
			Red: 0.774482, NIR: 0.893085, SWIR1: 0.939669, SWIR2: 0.65094,
		},
		OgTransA1: map[Band]float64{
			Coastal: 4.91586e-20, Blue: 4.91586e-20, Green: 4.91586e-20,
			Red: 1.04801e-05, NIR: 1.35216e-05, SWIR1: 0.0205425,
			SWIR2: 0.0256526,
		},
		OgTransB0: map[Band]float64{
			Coastal: 0.000197019, Blue: 0.000197019, Green: 0.000197019,
			Red: 0.640215, NIR: -0.195998, SWIR1: 0.326577, SWIR2: 0.243961,
		},
		OgTransB1: map[Band]float64{
			Coastal: 9.57011e-16, Blue: 9.57011e-16, Green: 9.57011e-16,
			Red: -0.348785, NIR: 0.275239, SWIR1: 0.0117192, SWIR2: 0.0616101,
		},
	}
}

// DefaultAOTGrid returns the discrete grid of aerosol optical
// thickness values at 550 nm that the lookup tables are tabulated on.
func DefaultAOTGrid() []float64 {
	return []float64{0.01, 0.05, 0.10, 0.15, 0.20, 0.30, 0.40, 0.60,
		0.80, 1.00, 1.20, 1.40, 1.60, 1.80, 2.00, 2.30, 2.60, 3.00,
		3.50, 4.00, 4.50, 5.00}
}

// DefaultPressureGrid returns the surface pressure levels [hPa] that
// the lookup tables are tabulated on, from highest to lowest pressure.
func DefaultPressureGrid() []float64 {
	return []float64{1050.0, 1013.0, 900.0, 800.0, 700.0, 600.0, 500.0}
}

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

// Calibration holds the level-1 radiometric calibration constants
// from the scene metadata: reflectance gain/bias for the reflective
// bands, radiance gain/bias plus the K1/K2 Planck constants for the
// thermal bands, and the scaling of the per-pixel solar zenith band.
type Calibration struct {
	Gain map[Band]float64
	Bias map[Band]float64

	ThermalGain map[Band]float64
	ThermalBias map[Band]float64
	K1          map[Band]float64
	K2          map[Band]float64

	// GainSZA and BiasSZA unscale the per-pixel solar zenith angle
	// band to degrees.
	GainSZA float64
	BiasSZA float64
}

// CalibrateTOA computes TOA reflectance for the reflective bands and
// brightness temperature for the thermal bands from level-1 digital
// numbers, writing the results into the scene's rasters. sza is the
// scaled per-pixel solar zenith band; a nil sza applies the scene
// center angle everywhere. Thermal bands absent from dn
// (for example on OLI-only scenes) are skipped. Fill pixels receive
// the fill sentinel.
func CalibrateTOA(scene *Scene, dn map[Band][]uint16, sza []int16, cal *Calibration) error {
	n := scene.NLines * scene.NSamps
	if sza != nil && len(sza) != n {
		return fmt.Errorf("lasrc: solar zenith band has %d pixels; scene has %d", len(sza), n)
	}
	sceneXmus := math.Cos(scene.SolarZenith * deg2rad)

	for _, b := range ReflBands {
		uband, ok := dn[b]
		if !ok {
			return fmt.Errorf("lasrc: missing digital numbers for band %s", b)
		}
		if len(uband) != n {
			return fmt.Errorf("lasrc: band %s has %d pixels; scene has %d", b, len(uband), n)
		}
		gain, ok := cal.Gain[b]
		if !ok {
			return fmt.Errorf("lasrc: missing calibration gain for band %s", b)
		}
		bias := cal.Bias[b]
		refl := scene.Refl[b].Elements
		err := parallelFor(scene.NLines, func(i int) error {
			for j := 0; j < scene.NSamps; j++ {
				pix := i*scene.NSamps + j
				if scene.Fill[pix] {
					refl[pix] = FillValue
					continue
				}
				// Correct for the per-pixel sun angle, falling back
				// to the scene center angle without an angle band.
				xmus := sceneXmus
				if sza != nil {
					xmus = math.Cos((float64(sza[pix])*cal.GainSZA + cal.BiasSZA) * deg2rad)
				}
				rotoa := (float64(uband[pix])*gain + bias) / xmus
				if rotoa < MinValidRefl {
					rotoa = MinValidRefl
				} else if rotoa > MaxValidRefl {
					rotoa = MaxValidRefl
				}
				refl[pix] = rotoa
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, b := range ThermalBands {
		uband, ok := dn[b]
		if !ok {
			continue
		}
		if len(uband) != n {
			return fmt.Errorf("lasrc: band %s has %d pixels; scene has %d", b, len(uband), n)
		}
		xcals, ok := cal.ThermalGain[b]
		if !ok {
			return fmt.Errorf("lasrc: missing thermal calibration for band %s", b)
		}
		xcalo := cal.ThermalBias[b]
		k1, ok := cal.K1[b]
		if !ok {
			return fmt.Errorf("lasrc: missing K constants for band %s", b)
		}
		k2 := cal.K2[b]
		if scene.Refl[b] == nil {
			scene.Refl[b] = sparse.ZerosDense(scene.NLines, scene.NSamps)
		}
		bt := scene.Refl[b].Elements
		err := parallelFor(scene.NLines, func(i int) error {
			for j := 0; j < scene.NSamps; j++ {
				pix := i*scene.NSamps + j
				if scene.Fill[pix] {
					bt[pix] = FillValue
					continue
				}
				// Radiance, then brightness temperature [K].
				rad := xcals*float64(uband[pix]) + xcalo
				tmpf := k2 / math.Log(k1/rad+1.0)
				if tmpf < MinValidTemp {
					tmpf = MinValidTemp
				} else if tmpf > MaxValidTemp {
					tmpf = MaxValidTemp
				}
				bt[pix] = tmpf
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

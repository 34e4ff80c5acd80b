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
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// DefaultAerosolWindow is the default aerosol window size [pixels].
const DefaultAerosolWindow = 9

// firstPassAOTIndex selects the AOT grid value used for the
// climatology-based first-pass correction.
const firstPassAOTIndex = 1

// Aerosol QA thresholds on the magnitude of the coastal band
// adjustment made by the final correction.
const (
	lowAeroThresh = 0.01
	avgAeroThresh = 0.05
)

// Scene holds the per-pixel state of one Landsat scene as it moves
// through the correction pipeline. Refl carries TOA reflectance on
// input and surface reflectance on output, unscaled, indexed
// row-major as line*NSamps+samp. The caller owns the arrays; the
// pipeline mutates them in place.
type Scene struct {
	Sat            Satellite
	NLines, NSamps int

	// SolarZenith is the scene-center solar zenith angle [degrees].
	SolarZenith float64

	// Refl holds one raster per band: the reflective bands in
	// reflectance units, the thermal bands in Kelvin.
	Refl map[Band]*sparse.DenseArray

	// Fill marks level-1 fill pixels.
	Fill []bool

	// IPFlag receives the per-pixel aerosol QA flags.
	IPFlag []uint8

	// AOT and Eps receive the per-pixel aerosol optical thickness
	// and Angstrom exponent diagnostics.
	AOT *sparse.DenseArray
	Eps *sparse.DenseArray
}

// NewScene allocates a scene of the given dimensions with empty
// rasters for the reflective bands.
func NewScene(sat Satellite, nlines, nsamps int) *Scene {
	s := &Scene{
		Sat:    sat,
		NLines: nlines,
		NSamps: nsamps,
		Refl:   make(map[Band]*sparse.DenseArray),
		Fill:   make([]bool, nlines*nsamps),
	}
	for _, b := range ReflBands {
		s.Refl[b] = sparse.ZerosDense(nlines, nsamps)
	}
	return s
}

func (s *Scene) validate() error {
	if s.NLines <= 0 || s.NSamps <= 0 {
		return fmt.Errorf("lasrc: scene is %d×%d pixels", s.NLines, s.NSamps)
	}
	n := s.NLines * s.NSamps
	if len(s.Fill) != n {
		return fmt.Errorf("lasrc: fill mask has %d pixels; scene has %d", len(s.Fill), n)
	}
	for _, b := range ReflBands {
		r, ok := s.Refl[b]
		if !ok || len(r.Elements) != n {
			return fmt.Errorf("lasrc: scene is missing band %s", b)
		}
	}
	return nil
}

// firstPassTerms holds the scene-constant atmospheric terms the
// first-pass correction applied to one band, needed later to
// reconstruct TOA reflectance.
type firstPassTerms struct {
	tgo, roatm, ttatmg, satm float64
}

// Corrector corrects TOA reflectance to surface reflectance for one
// or more scenes. The lookup tables, climatology, and geolocator are
// shared read-only state; a single Corrector may process scenes
// sequentially but each Run call owns its scene exclusively.
type Corrector struct {
	Tables      *Tables
	Climatology *Climatology
	Geolocator  Geolocator

	// Window is the aerosol window size [pixels]; zero selects
	// DefaultAerosolWindow.
	Window int

	// Log receives stage progress; nil selects the standard logger.
	Log logrus.FieldLogger
}

func (c *Corrector) window() int {
	if c.Window <= 0 {
		return DefaultAerosolWindow
	}
	return c.Window
}

func (c *Corrector) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Run corrects the scene's TOA reflectance to surface reflectance in
// place, retrieving aerosols on a window grid, interpolating them to
// pixel resolution, and setting the per-pixel aerosol QA flags. Any
// failure aborts the run without emitting partially corrected
// output; the scene contents are then undefined.
func (c *Corrector) Run(scene *Scene) error {
	if err := scene.validate(); err != nil {
		return err
	}
	if c.Tables == nil || c.Climatology == nil || c.Geolocator == nil {
		return fmt.Errorf("lasrc: corrector is missing tables, climatology, or a geolocator")
	}
	if err := c.Tables.Validate(); err != nil {
		return err
	}
	if err := c.Climatology.Validate(); err != nil {
		return err
	}

	n := scene.NLines * scene.NSamps
	scene.IPFlag = make([]uint8, n)
	scene.AOT = sparse.ZerosDense(scene.NLines, scene.NSamps)
	scene.Eps = sparse.ZerosDense(scene.NLines, scene.NSamps)
	for i, f := range scene.Fill {
		if f {
			scene.IPFlag[i] = FlagFill
		}
	}

	geom := Geometry{SolarZenith: scene.SolarZenith}
	xmus := math.Cos(scene.SolarZenith * deg2rad)

	// Atmospheric state at the scene center.
	lat, lon, err := c.Geolocator.LatLon(float64(scene.NLines)/2, float64(scene.NSamps)/2)
	if err != nil {
		return err
	}
	uoz, uwv := c.Climatology.Atmosphere(lat, lon)
	atm := Atmos{
		Pressure:   c.Climatology.SurfacePressure(lat, lon),
		Ozone:      uoz,
		WaterVapor: uwv,
	}

	start := time.Now()
	aerob, fp, err := c.firstPass(scene, geom, atm)
	if err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"stage":    "first-pass correction",
		"pressure": atm.Pressure,
		"elapsed":  time.Since(start),
	}).Info("lasrc: climatology-based atmospheric correction complete")

	start = time.Now()
	coef, err := FitCoefficients(c.Tables, geom, atm)
	if err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"stage":   "coefficient fit",
		"elapsed": time.Since(start),
	}).Info("lasrc: per-band correction coefficients fitted")

	start = time.Now()
	if err := c.retrieveAerosols(scene, aerob, coef, xmus); err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"stage":   "aerosol retrieval",
		"window":  c.window(),
		"elapsed": time.Since(start),
	}).Info("lasrc: window aerosol inversion complete")

	start = time.Now()
	gapFillAerosols(scene, c.window(), c.window()/2)
	if err := interpolateAerosols(scene, c.window(), c.window()/2); err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"stage":   "aerosol interpolation",
		"elapsed": time.Since(start),
	}).Info("lasrc: aerosol gap fill and interpolation complete")

	start = time.Now()
	if err := c.finalPass(scene, coef, fp); err != nil {
		return err
	}
	c.log().WithFields(logrus.Fields{
		"stage":   "final correction",
		"elapsed": time.Since(start),
	}).Info("lasrc: surface reflectance correction complete")
	return nil
}

// firstPass applies the climatology-based correction to every
// reflective band at the default optical thickness, returning the
// pre-correction TOA reflectance of the diagnostic bands and the
// per-band terms needed to invert this pass later.
func (c *Corrector) firstPass(scene *Scene, geom Geometry, atm Atmos) (map[Band][]float64, map[Band]firstPassTerms, error) {
	aerob := make(map[Band][]float64, len(diagnosticBands))
	for _, b := range diagnosticBands {
		aerob[b] = make([]float64, scene.NLines*scene.NSamps)
	}
	fp := make(map[Band]firstPassTerms, len(ReflBands))

	for _, b := range ReflBands {
		terms, err := c.Tables.Evaluate(geom, atm, c.Tables.AOT[firstPassAOTIndex], highEps, b, 0)
		if err != nil {
			return nil, nil, err
		}
		fp[b] = firstPassTerms{tgo: terms.Tgo, roatm: terms.RoAtm, ttatmg: terms.TtAtmG, satm: terms.SAtm}
		tgoRoatm := terms.Tgo * terms.RoAtm
		tgoTtatmg := terms.Tgo * terms.TtAtmG
		satm := terms.SAtm

		refl := scene.Refl[b].Elements
		stash := aerob[b] // nil for non-diagnostic bands
		err = parallelFor(scene.NLines, func(i int) error {
			for j := 0; j < scene.NSamps; j++ {
				pix := i*scene.NSamps + j
				if scene.Fill[pix] {
					refl[pix] = FillValue
					continue
				}
				if stash != nil {
					stash[pix] = refl[pix]
				}
				roslamb := refl[pix] - tgoRoatm
				roslamb /= tgoTtatmg + satm*roslamb
				refl[pix] = clampRefl(roslamb)
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return aerob, fp, nil
}

// retrieveAerosols runs the window aerosol retrieval over the scene.
// Window rows are independent and run in parallel; each iteration
// writes only its own window's center pixel.
func (c *Corrector) retrieveAerosols(scene *Scene, aerob map[Band][]float64, coef *Coefficients, xmus float64) error {
	window := c.window()
	half := window / 2
	var centerLines []int
	for i := half; i < scene.NLines; i += window {
		centerLines = append(centerLines, i)
	}
	return parallelFor(len(centerLines), func(wi int) error {
		i := centerLines[wi]
		for j := half; j < scene.NSamps; j += window {
			res, err := c.retrieveWindow(scene, aerob, coef, i, j, xmus)
			if err != nil {
				return err
			}
			if !res.retrieved {
				continue
			}
			pix := i*scene.NSamps + j
			scene.AOT.Elements[pix] = res.aot
			scene.Eps.Elements[pix] = res.eps
			if !scene.Fill[pix] {
				scene.IPFlag[pix] |= res.flag
			}
		}
		return nil
	})
}

// finalPass reconstructs each pixel's TOA reflectance from the
// first-pass output and re-corrects it with the pixel's interpolated
// aerosol state. The coastal band's adjustment magnitude sets the
// aerosol impact QA bits.
func (c *Corrector) finalPass(scene *Scene, coef *Coefficients, fp map[Band]firstPassTerms) error {
	for _, b := range ReflBands {
		b := b
		t := fp[b]
		refl := scene.Refl[b].Elements
		err := parallelFor(scene.NLines, func(i int) error {
			for j := 0; j < scene.NSamps; j++ {
				pix := i*scene.NSamps + j
				if scene.Fill[pix] {
					continue
				}
				rsurf := refl[pix]
				rotoa := (rsurf*t.ttatmg/(1-t.satm*rsurf) + t.roatm) * t.tgo
				roslamb := coef.Correct(b, scene.AOT.Elements[pix], scene.Eps.Elements[pix], rotoa)

				if b == Coastal {
					adj := math.Abs(rsurf - roslamb)
					switch {
					case adj <= lowAeroThresh:
						scene.IPFlag[pix] |= FlagAero1
					case adj < avgAeroThresh:
						scene.IPFlag[pix] |= FlagAero2
					default:
						scene.IPFlag[pix] |= FlagAero1 | FlagAero2
					}
				}
				refl[pix] = clampRefl(roslamb)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func clampRefl(v float64) float64 {
	if math.IsNaN(v) || v < MinValidRefl {
		return MinValidRefl
	}
	if v > MaxValidRefl {
		return MaxValidRefl
	}
	return v
}

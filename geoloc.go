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

	"github.com/ctessum/geom/proj"
)

// Geolocator maps image line/sample coordinates to geographic
// coordinates. Implementations must be safe for concurrent use. A
// mapping failure is fatal to the whole correction run; there is no
// policy for skipping an aerosol window whose location is unknown.
type Geolocator interface {
	// LatLon returns the latitude and longitude [degrees] of the
	// given (possibly fractional) line and sample.
	LatLon(line, samp float64) (lat, lon float64, err error)
}

// ProjGeolocator maps line/sample to lat/lon through a projected
// coordinate system described by a proj4 string, an upper-left map
// coordinate, and a pixel size [map units].
type ProjGeolocator struct {
	inverse   proj.Transformer
	ulx, uly  float64
	pixelSize float64
}

// NewProjGeolocator creates a Geolocator for a scene in the given
// projection. ulx and uly are the map coordinates of the upper-left
// corner of the upper-left pixel.
func NewProjGeolocator(projString string, ulx, uly, pixelSize float64) (*ProjGeolocator, error) {
	sr, err := proj.Parse(projString)
	if err != nil {
		return nil, fmt.Errorf("lasrc: parsing scene projection: %v", err)
	}
	longlat, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, fmt.Errorf("lasrc: parsing geographic projection: %v", err)
	}
	inverse, err := sr.NewTransform(longlat)
	if err != nil {
		return nil, fmt.Errorf("lasrc: creating geolocation transform: %v", err)
	}
	return &ProjGeolocator{
		inverse:   inverse,
		ulx:       ulx,
		uly:       uly,
		pixelSize: pixelSize,
	}, nil
}

// LatLon implements Geolocator.
func (p *ProjGeolocator) LatLon(line, samp float64) (lat, lon float64, err error) {
	x := p.ulx + samp*p.pixelSize
	y := p.uly - line*p.pixelSize
	lon, lat, err = p.inverse(x, y)
	if err != nil {
		return 0, 0, fmt.Errorf("lasrc: mapping line/sample (%g, %g) to geographic coordinates: %v", line, samp, err)
	}
	return lat, lon, nil
}

// LatLonGrid is a Geolocator for scenes already on a regular
// geographic grid: the upper-left pixel center location plus a
// per-pixel step in degrees.
type LatLonGrid struct {
	ULLat, ULLon float64
	DLat, DLon   float64 // degrees per line and per sample; DLat > 0 means latitude decreases southward
}

// LatLon implements Geolocator.
func (g LatLonGrid) LatLon(line, samp float64) (lat, lon float64, err error) {
	return g.ULLat - line*g.DLat, g.ULLon + samp*g.DLon, nil
}

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
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// readVar reads one variable from a NetCDF file into a dense array.
func readVar(ff *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("lasrc: variable %s not in file", name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("lasrc: reading variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	switch v := buf.(type) {
	case []float32:
		for i, val := range v {
			data.Elements[i] = float64(val)
		}
	case []float64:
		copy(data.Elements, v)
	case []int32:
		for i, val := range v {
			data.Elements[i] = float64(val)
		}
	case []int16:
		for i, val := range v {
			data.Elements[i] = float64(val)
		}
	case []uint8:
		for i, val := range v {
			data.Elements[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("lasrc: variable %s has unsupported type %T", name, buf)
	}
	return data, nil
}

// readCoord reads a one-dimensional coordinate variable.
func readCoord(ff *cdf.File, name string) ([]float64, error) {
	a, err := readVar(ff, name)
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 1 {
		return nil, fmt.Errorf("lasrc: coordinate %s has %d dimensions; want 1", name, len(a.Shape))
	}
	return a.Elements, nil
}

// ReadTables loads the radiative transfer lookup tables from a
// NetCDF file. A malformed or missing table is a configuration
// error, detected here before any pixel processing.
func ReadTables(filename string, gas *GasCoefficients) (*Tables, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("lasrc: opening lookup tables: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("lasrc: reading lookup tables %s: %v", filename, err)
	}

	t := &Tables{Gas: gas}
	if t.IntrinsicRefl, err = readVar(ff, "intrinsic_reflectance"); err != nil {
		return nil, err
	}
	if t.Transmission, err = readVar(ff, "transmission"); err != nil {
		return nil, err
	}
	if t.SphericalAlbedo, err = readVar(ff, "spherical_albedo"); err != nil {
		return nil, err
	}
	if t.NormExt, err = readVar(ff, "normalized_extinction"); err != nil {
		return nil, err
	}
	if t.Zenith, err = readCoord(ff, "zenith"); err != nil {
		return nil, err
	}
	if t.AOT, err = readCoord(ff, "aot550"); err != nil {
		return nil, err
	}
	if t.Pressure, err = readCoord(ff, "pressure"); err != nil {
		return nil, err
	}
	// The scattering angle bound tables are optional.
	if max, err := readVar(ff, "scatter_angle_max"); err == nil {
		t.ScatterMax = max
		if t.ScatterMin, err = readVar(ff, "scatter_angle_min"); err != nil {
			return nil, err
		}
		if t.ViewZenith, err = readCoord(ff, "view_zenith"); err != nil {
			return nil, err
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadClimatology loads the auxiliary climatology grids from a
// NetCDF file.
func ReadClimatology(filename string) (*Climatology, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("lasrc: opening climatology: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("lasrc: reading climatology %s: %v", filename, err)
	}

	c := new(Climatology)
	for _, v := range []struct {
		name string
		dst  **sparse.DenseArray
	}{
		{"dem", &c.DEM},
		{"ndwi_avg", &c.NDWIAvg},
		{"ndwi_std", &c.NDWIStd},
		{"ratio_b1", &c.RatioB1},
		{"ratio_b2", &c.RatioB2},
		{"ratio_b7", &c.RatioB7},
		{"slope_b1", &c.SlopeB1},
		{"slope_b2", &c.SlopeB2},
		{"slope_b7", &c.SlopeB7},
		{"intercept_b1", &c.InterceptB1},
		{"intercept_b2", &c.InterceptB2},
		{"intercept_b7", &c.InterceptB7},
		{"water_vapor", &c.WaterVapor},
		{"ozone", &c.Ozone},
	} {
		if *v.dst, err = readVar(ff, v.name); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadDNBand reads a flat little-endian uint16 raster of n pixels.
func ReadDNBand(filename string, n int) ([]uint16, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("lasrc: opening band file: %v", err)
	}
	defer f.Close()
	data := make([]uint16, n)
	if err := binary.Read(f, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("lasrc: reading band file %s: %v", filename, err)
	}
	return data, nil
}

// ReadAngleBand reads a flat little-endian int16 raster of n pixels,
// as produced by the Landsat angle generation tool.
func ReadAngleBand(filename string, n int) ([]int16, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("lasrc: opening angle file: %v", err)
	}
	defer f.Close()
	data := make([]int16, n)
	if err := binary.Read(f, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("lasrc: reading angle file %s: %v", filename, err)
	}
	return data, nil
}

// WriteReflBand writes a reflectance raster as a flat little-endian
// uint16 raster with the standard product scaling, alongside an ENVI
// header. Fill pixels receive the output fill value.
func WriteReflBand(filename string, data *sparse.DenseArray, fill []bool) error {
	nlines, nsamps := data.Shape[0], data.Shape[1]
	out := make([]uint16, len(data.Elements))
	for i, v := range data.Elements {
		if fill[i] {
			out[i] = OutputFill
			continue
		}
		scaled := (v-ReflOffset)/ReflScale + 0.5
		if scaled < 1 {
			scaled = 1
		} else if scaled > 65535 {
			scaled = 65535
		}
		out[i] = uint16(scaled)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("lasrc: creating output band: %v", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, out); err != nil {
		return fmt.Errorf("lasrc: writing output band %s: %v", filename, err)
	}
	return writeENVIHeader(filename, nlines, nsamps, 12)
}

// WriteQABand writes the aerosol QA raster alongside an ENVI header.
func WriteQABand(filename string, ipflag []uint8, nlines, nsamps int) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("lasrc: creating QA band: %v", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, ipflag); err != nil {
		return fmt.Errorf("lasrc: writing QA band %s: %v", filename, err)
	}
	return writeENVIHeader(filename, nlines, nsamps, 1)
}

// writeENVIHeader writes a minimal ENVI header next to bandFile.
// dtype is the ENVI data type code (1 for uint8, 12 for uint16).
func writeENVIHeader(bandFile string, nlines, nsamps, dtype int) error {
	name := bandFile
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	f, err := os.Create(name + ".hdr")
	if err != nil {
		return fmt.Errorf("lasrc: creating ENVI header: %v", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "ENVI\nsamples = %d\nlines = %d\nbands = 1\n"+
		"header offset = 0\nfile type = ENVI Standard\ndata type = %d\n"+
		"interleave = bsq\nbyte order = 0\n", nsamps, nlines, dtype)
	if err != nil {
		return fmt.Errorf("lasrc: writing ENVI header: %v", err)
	}
	return nil
}

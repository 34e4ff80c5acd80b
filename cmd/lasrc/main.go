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

// Command lasrc is a command-line interface for the lasrc
// surface reflectance processor.
package main

import (
	"fmt"
	"os"

	"github.com/floriandeboissieu/espa-surface-reflectance"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cfg holds configuration information.
var cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to lasrc.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{root.PersistentFlags()},
		},
		{
			name: "LUTFile",
			usage: `
              LUTFile is the path to the NetCDF file holding the
              radiative transfer lookup tables.`,
			defaultVal: "lasrc_lut.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Climatology",
			usage: `
              Climatology is the path to the NetCDF file holding the
              auxiliary climatology grids (DEM, band ratios, NDWI
              statistics, water vapor, and ozone).`,
			defaultVal: "lasrc_climatology.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the surface reflectance bands
              and the aerosol QA band are written to.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.Satellite",
			usage: `
              Scene.Satellite is the Landsat platform number, 8 or 9.`,
			defaultVal: 8,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.Lines",
			usage: `
              Scene.Lines is the number of lines in the scene rasters.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.Samples",
			usage: `
              Scene.Samples is the number of samples per line in the
              scene rasters.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.Projection",
			usage: `
              Scene.Projection gives the scene map projection in Proj4
              format.`,
			defaultVal: "+proj=utm +zone=10 +datum=WGS84 +units=m +no_defs",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.ULX",
			usage: `
              Scene.ULX is the X projection coordinate of the upper
              left corner of the upper left pixel.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.ULY",
			usage: `
              Scene.ULY is the Y projection coordinate of the upper
              left corner of the upper left pixel.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.PixelSize",
			usage: `
              Scene.PixelSize is the pixel edge length in projection
              units.`,
			defaultVal: 30.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.SolarZenith",
			usage: `
              Scene.SolarZenith is the scene center solar zenith angle
              in degrees.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.ViewZenith",
			usage: `
              Scene.ViewZenith is the scene center view zenith angle in
              degrees.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.RelativeAzimuth",
			usage: `
              Scene.RelativeAzimuth is the scene center relative
              azimuth angle in degrees.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.BandFiles",
			usage: `
              Scene.BandFiles maps band names (coastal, blue, green,
              red, nir, swir1, swir2, thermal1, thermal2) to the flat
              little-endian uint16 level-1 digital number rasters.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Scene.SolarZenithFile",
			usage: `
              Scene.SolarZenithFile is the flat little-endian int16
              per-pixel solar zenith angle raster produced by the
              Landsat angle tool.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.Gain",
			usage: `
              Calibration.Gain maps reflective band names to the
              reflectance calibration multiplier from the level-1
              metadata.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.Bias",
			usage: `
              Calibration.Bias maps reflective band names to the
              reflectance calibration offset from the level-1
              metadata.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.ThermalGain",
			usage: `
              Calibration.ThermalGain maps thermal band names to the
              radiance calibration multiplier.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.ThermalBias",
			usage: `
              Calibration.ThermalBias maps thermal band names to the
              radiance calibration offset.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.K1",
			usage: `
              Calibration.K1 maps thermal band names to the K1 Planck
              calibration constant.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.K2",
			usage: `
              Calibration.K2 maps thermal band names to the K2 Planck
              calibration constant.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.GainSZA",
			usage: `
              Calibration.GainSZA is the multiplier that unscales the
              per-pixel solar zenith band to degrees.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Calibration.BiasSZA",
			usage: `
              Calibration.BiasSZA is the offset that unscales the
              per-pixel solar zenith band to degrees.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AerosolWindow",
			usage: `
              AerosolWindow is the edge length in pixels of the windows
              aerosols are retrieved on. Zero selects the default.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	cfg = viper.New()

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("LASRC")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, v, option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, v, option.usage)
				}
			case map[string]string:
				set.StringToString(option.name, v, option.usage)
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	root.AddCommand(versionCmd)
	root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is
// one.
func setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("lasrc: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// root is the main command.
var root = &cobra.Command{
	Use:   "lasrc",
	Short: "A Landsat 8/9 surface reflectance processor.",
	Long: `lasrc corrects Landsat 8/9 Collection 2 level-1 imagery for
atmospheric effects, producing surface reflectance and an aerosol QA band.
Use the subcommands specified below to access the processor functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'LASRC_var' where 'var' is
the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of lasrc.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("lasrc v%s\n", lasrc.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd corrects one scene.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Correct a scene to surface reflectance.",
	Long: `run calibrates the level-1 digital numbers of one scene to
top of atmosphere reflectance, corrects them to surface reflectance, and
writes the output bands and the aerosol QA band to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.StandardLogger()

		nlines := cfg.GetInt("Scene.Lines")
		nsamps := cfg.GetInt("Scene.Samples")
		if nlines <= 0 || nsamps <= 0 {
			return fmt.Errorf("lasrc: Scene.Lines and Scene.Samples must be set")
		}
		sat := lasrc.Satellite(cfg.GetInt("Scene.Satellite"))
		if sat != lasrc.Landsat8 && sat != lasrc.Landsat9 {
			return fmt.Errorf("lasrc: unsupported satellite %d", int(sat))
		}

		log.WithFields(logrus.Fields{
			"lut":         cfg.GetString("LUTFile"),
			"climatology": cfg.GetString("Climatology"),
		}).Info("loading auxiliary data")
		tables, err := lasrc.ReadTables(os.ExpandEnv(cfg.GetString("LUTFile")),
			lasrc.DefaultGasCoefficients())
		if err != nil {
			return err
		}
		clim, err := lasrc.ReadClimatology(os.ExpandEnv(cfg.GetString("Climatology")))
		if err != nil {
			return err
		}
		geo, err := lasrc.NewProjGeolocator(cfg.GetString("Scene.Projection"),
			cfg.GetFloat64("Scene.ULX"), cfg.GetFloat64("Scene.ULY"),
			cfg.GetFloat64("Scene.PixelSize"))
		if err != nil {
			return err
		}

		scene := lasrc.NewScene(sat, nlines, nsamps)
		scene.SolarZenith = cfg.GetFloat64("Scene.SolarZenith")

		dn, err := readDNBands(nlines * nsamps)
		if err != nil {
			return err
		}
		cal, err := readCalibration()
		if err != nil {
			return err
		}
		var sza []int16
		if f := cfg.GetString("Scene.SolarZenithFile"); f != "" {
			if sza, err = lasrc.ReadAngleBand(os.ExpandEnv(f), nlines*nsamps); err != nil {
				return err
			}
		}
		log.Info("calibrating to TOA reflectance")
		if err := lasrc.CalibrateTOA(scene, dn, sza, cal); err != nil {
			return err
		}

		c := &lasrc.Corrector{
			Tables:      tables,
			Climatology: clim,
			Geolocator:  geo,
			Window:      cfg.GetInt("AerosolWindow"),
			Log:         log,
		}
		if err := c.Run(scene); err != nil {
			return err
		}

		return writeOutputs(scene, os.ExpandEnv(cfg.GetString("OutputDir")))
	},
	DisableAutoGenTag: true,
}

// readDNBands loads the level-1 digital number rasters named in the
// configuration.
func readDNBands(n int) (map[lasrc.Band][]uint16, error) {
	files := cfg.GetStringMapString("Scene.BandFiles")
	if len(files) == 0 {
		return nil, fmt.Errorf("lasrc: Scene.BandFiles must name the input bands")
	}
	dn := make(map[lasrc.Band][]uint16)
	for name, file := range files {
		b, err := lasrc.ParseBand(name)
		if err != nil {
			return nil, err
		}
		if dn[b], err = lasrc.ReadDNBand(os.ExpandEnv(file), n); err != nil {
			return nil, err
		}
	}
	return dn, nil
}

// readCalibration assembles the calibration constants from the
// configuration.
func readCalibration() (*lasrc.Calibration, error) {
	cal := &lasrc.Calibration{
		GainSZA: cfg.GetFloat64("Calibration.GainSZA"),
		BiasSZA: cfg.GetFloat64("Calibration.BiasSZA"),
	}
	for _, m := range []struct {
		key string
		dst *map[lasrc.Band]float64
	}{
		{"Calibration.Gain", &cal.Gain},
		{"Calibration.Bias", &cal.Bias},
		{"Calibration.ThermalGain", &cal.ThermalGain},
		{"Calibration.ThermalBias", &cal.ThermalBias},
		{"Calibration.K1", &cal.K1},
		{"Calibration.K2", &cal.K2},
	} {
		*m.dst = make(map[lasrc.Band]float64)
		for name, s := range cfg.GetStringMapString(m.key) {
			b, err := lasrc.ParseBand(name)
			if err != nil {
				return nil, err
			}
			v, err := cast.ToFloat64E(s)
			if err != nil {
				return nil, fmt.Errorf("lasrc: reading %s for band %s: %v", m.key, name, err)
			}
			(*m.dst)[b] = v
		}
	}
	return cal, nil
}

// writeOutputs writes the corrected bands and the aerosol QA band.
func writeOutputs(scene *lasrc.Scene, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("lasrc: creating output directory: %v", err)
	}
	for _, b := range lasrc.ReflBands {
		file := fmt.Sprintf("%s/sr_%s.img", dir, b)
		if err := lasrc.WriteReflBand(file, scene.Refl[b], scene.Fill); err != nil {
			return err
		}
	}
	return lasrc.WriteQABand(fmt.Sprintf("%s/aerosol_qa.img", dir),
		scene.IPFlag, scene.NLines, scene.NSamps)
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

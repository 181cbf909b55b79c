// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package config parses the command-line flags and optional INI config
// file of spec.md §6.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// Config holds every --flag named in spec.md §6.
type Config struct {
	OSMPBF        string
	SkipElevation bool
	SRTM          bool
	GMTED         bool
	Interpolate   bool
	RemoveTag     string

	GeoTiffFolders []string
	CacheLimit     int64
	Threshold      float64

	AreaMapping                string
	AreaMappingIDCol           int
	AreaMappingGeoCol          int
	AreaMappingGeoType         string
	AreaMappingHasHeader       bool
	AreaMappingProcessedPrefix string

	ConfigFile string
	IndexType  string
	DebugMode  bool

	Version bool
	Help    bool
}

const (
	DefaultCacheLimit = 1 << 30 // 1,073,741,824 bytes
	DefaultThreshold  = 0.5
	DefaultIndexType  = "flex_mem"
)

func defaults() Config {
	return Config{
		GeoTiffFolders: []string{"tiffs", "srtmdata", "gmteddata"},
		CacheLimit:     DefaultCacheLimit,
		Threshold:      DefaultThreshold,
		IndexType:      DefaultIndexType,
	}
}

type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprint([]string(*l))
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Parse parses args (normally os.Args[1:]) into a Config, applying any
// --config_file / -f INI file first and letting explicitly-given CLI
// flags override it: the decided precedence for spec.md §6's otherwise
// silent config_file/flag interaction.
func Parse(args []string) (*Config, error) {
	cfg := defaults()
	fs := flag.NewFlagSet("osm-transform", flag.ContinueOnError)

	var folders stringList

	fs.StringVar(&cfg.OSMPBF, "osm_pbf", "", "input OSM PBF file")
	fs.StringVar(&cfg.OSMPBF, "p", "", "shorthand for --osm_pbf")
	fs.BoolVar(&cfg.SkipElevation, "skip_elevation", false, "disable elevation enrichment")
	fs.BoolVar(&cfg.SkipElevation, "e", false, "shorthand for --skip_elevation")
	fs.BoolVar(&cfg.SRTM, "srtm", false, "download SRTM tiles and exit")
	fs.BoolVar(&cfg.GMTED, "gmted", false, "download GMTED tiles and exit")
	fs.BoolVar(&cfg.Interpolate, "interpolate", false, "enable edge subdivision with synthetic nodes")
	fs.BoolVar(&cfg.Interpolate, "i", false, "shorthand for --interpolate")
	fs.StringVar(&cfg.RemoveTag, "remove_tag", "", "override the default tag removal regex")
	fs.StringVar(&cfg.RemoveTag, "T", "", "shorthand for --remove_tag")
	fs.Var(&folders, "geo_tiff_folders", "raster directory to index (repeatable)")
	fs.Var(&folders, "F", "shorthand for --geo_tiff_folders")
	fs.Int64Var(&cfg.CacheLimit, "cache_limit", DefaultCacheLimit, "raster cache byte budget")
	fs.Int64Var(&cfg.CacheLimit, "S", DefaultCacheLimit, "shorthand for --cache_limit")
	fs.Float64Var(&cfg.Threshold, "threshold", DefaultThreshold, "interpolation elevation threshold in metres")
	fs.Float64Var(&cfg.Threshold, "t", DefaultThreshold, "shorthand for --threshold")
	fs.StringVar(&cfg.AreaMapping, "area_mapping", "", "CSV file mapping polygons to area ids")
	fs.StringVar(&cfg.AreaMapping, "a", "", "shorthand for --area_mapping")
	fs.IntVar(&cfg.AreaMappingIDCol, "area_mapping_id_col", 0, "column index of the area id/name")
	fs.IntVar(&cfg.AreaMappingGeoCol, "area_mapping_geo_col", 1, "column index of the geometry field")
	fs.StringVar(&cfg.AreaMappingGeoType, "area_mapping_geo_type", "wkt", "geometry encoding: wkt or geojson")
	fs.BoolVar(&cfg.AreaMappingHasHeader, "area_mapping_has_header", false, "area mapping CSV has a header row")
	fs.StringVar(&cfg.AreaMappingProcessedPrefix, "area_mapping_processed_file_prefix", "", "path prefix for the processed area cache files")
	fs.StringVar(&cfg.ConfigFile, "config_file", "", "INI file with the same options as the command line")
	fs.StringVar(&cfg.ConfigFile, "f", "", "shorthand for --config_file")
	fs.StringVar(&cfg.IndexType, "index_type", DefaultIndexType, "node-location index backend")
	fs.BoolVar(&cfg.DebugMode, "debug_mode", false, "verbose diagnostics")
	fs.BoolVar(&cfg.DebugMode, "d", false, "shorthand for --debug_mode")
	fs.BoolVar(&cfg.Version, "version", false, "print the version and exit")
	fs.BoolVar(&cfg.Version, "v", false, "shorthand for --version")
	fs.BoolVar(&cfg.Help, "help", false, "print usage and exit")
	fs.BoolVar(&cfg.Help, "h", false, "shorthand for --help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(folders) > 0 {
		cfg.GeoTiffFolders = []string(folders)
	}

	// Shorthand flags alias the same Config field as their long form, so a
	// CLI-given shorthand must count as "given" for the long name too when
	// deciding whether the config file is allowed to fill it in.
	shortToLong := map[string]string{
		"p": "osm_pbf",
		"e": "skip_elevation",
		"i": "interpolate",
		"T": "remove_tag",
		"F": "geo_tiff_folders",
		"S": "cache_limit",
		"t": "threshold",
		"a": "area_mapping",
		"f": "config_file",
		"d": "debug_mode",
		"v": "version",
		"h": "help",
	}
	given := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		given[f.Name] = true
		if long, ok := shortToLong[f.Name]; ok {
			given[long] = true
		}
	})

	if cfg.ConfigFile != "" {
		if err := applyConfigFile(&cfg, cfg.ConfigFile, given); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// applyConfigFile loads section-less INI keys matching the long flag names
// and assigns them to cfg, skipping any field whose flag was explicitly
// given on the command line (CLI always wins).
func applyConfigFile(cfg *Config, path string, given map[string]bool) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	sec := f.Section("")

	setString := func(key string, dst *string) {
		if given[key] || !sec.HasKey(key) {
			return
		}
		*dst = sec.Key(key).String()
	}
	setBool := func(key string, dst *bool) {
		if given[key] || !sec.HasKey(key) {
			return
		}
		*dst = sec.Key(key).MustBool(*dst)
	}
	setInt := func(key string, dst *int) {
		if given[key] || !sec.HasKey(key) {
			return
		}
		*dst = sec.Key(key).MustInt(*dst)
	}
	setInt64 := func(key string, dst *int64) {
		if given[key] || !sec.HasKey(key) {
			return
		}
		*dst = sec.Key(key).MustInt64(*dst)
	}
	setFloat := func(key string, dst *float64) {
		if given[key] || !sec.HasKey(key) {
			return
		}
		*dst = sec.Key(key).MustFloat64(*dst)
	}

	setString("osm_pbf", &cfg.OSMPBF)
	setBool("skip_elevation", &cfg.SkipElevation)
	setBool("srtm", &cfg.SRTM)
	setBool("gmted", &cfg.GMTED)
	setBool("interpolate", &cfg.Interpolate)
	setString("remove_tag", &cfg.RemoveTag)
	setInt64("cache_limit", &cfg.CacheLimit)
	setFloat("threshold", &cfg.Threshold)
	setString("area_mapping", &cfg.AreaMapping)
	setInt("area_mapping_id_col", &cfg.AreaMappingIDCol)
	setInt("area_mapping_geo_col", &cfg.AreaMappingGeoCol)
	setString("area_mapping_geo_type", &cfg.AreaMappingGeoType)
	setBool("area_mapping_has_header", &cfg.AreaMappingHasHeader)
	setString("area_mapping_processed_file_prefix", &cfg.AreaMappingProcessedPrefix)
	setString("index_type", &cfg.IndexType)
	setBool("debug_mode", &cfg.DebugMode)

	if !given["geo_tiff_folders"] && sec.HasKey("geo_tiff_folders") {
		cfg.GeoTiffFolders = sec.Key("geo_tiff_folders").Strings(",")
	}

	return nil
}

// Validate checks the cross-field requirements of spec.md §6: an input
// PBF is required unless a download or help/version action was requested.
func (c *Config) Validate() error {
	if c.Version || c.Help || c.SRTM || c.GMTED {
		return nil
	}
	if c.OSMPBF == "" {
		return fmt.Errorf("config: --osm_pbf is required")
	}
	if _, err := os.Stat(c.OSMPBF); err != nil {
		return fmt.Errorf("config: input file %s: %w", c.OSMPBF, err)
	}
	switch c.AreaMappingGeoType {
	case "wkt", "geojson":
	default:
		return fmt.Errorf("config: area_mapping_geo_type must be wkt or geojson, got %q", c.AreaMappingGeoType)
	}
	return nil
}

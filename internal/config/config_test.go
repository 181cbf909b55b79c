// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"-p", "planet.osm.pbf"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OSMPBF != "planet.osm.pbf" {
		t.Errorf("OSMPBF = %q, want planet.osm.pbf", cfg.OSMPBF)
	}
	if cfg.CacheLimit != DefaultCacheLimit {
		t.Errorf("CacheLimit = %d, want %d", cfg.CacheLimit, DefaultCacheLimit)
	}
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %v, want %v", cfg.Threshold, DefaultThreshold)
	}
	if cfg.IndexType != DefaultIndexType {
		t.Errorf("IndexType = %q, want %q", cfg.IndexType, DefaultIndexType)
	}
	if len(cfg.GeoTiffFolders) != 3 {
		t.Errorf("GeoTiffFolders = %v, want 3 defaults", cfg.GeoTiffFolders)
	}
}

func TestParse_LongAndShortFlagsAgree(t *testing.T) {
	cfg, err := Parse([]string{"--osm_pbf", "a.pbf", "--interpolate", "--threshold", "1.5"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OSMPBF != "a.pbf" || !cfg.Interpolate || cfg.Threshold != 1.5 {
		t.Errorf("cfg = %+v, unexpected values", cfg)
	}

	short, err := Parse([]string{"-p", "a.pbf", "-i", "-t", "1.5"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if short.OSMPBF != cfg.OSMPBF || short.Interpolate != cfg.Interpolate || short.Threshold != cfg.Threshold {
		t.Errorf("short-form cfg = %+v, want the same values as the long form %+v", short, cfg)
	}
}

func TestParse_ConfigFileFilledWhenFlagAbsent(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "config.ini")
	iniContent := "osm_pbf = from-config.pbf\nthreshold = 2.0\ninterpolate = true\n"
	if err := os.WriteFile(iniPath, []byte(iniContent), 0o644); err != nil {
		t.Fatalf("writing ini: %v", err)
	}

	cfg, err := Parse([]string{"--config_file", iniPath})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.OSMPBF != "from-config.pbf" {
		t.Errorf("OSMPBF = %q, want from-config.pbf", cfg.OSMPBF)
	}
	if cfg.Threshold != 2.0 {
		t.Errorf("Threshold = %v, want 2.0", cfg.Threshold)
	}
	if !cfg.Interpolate {
		t.Error("Interpolate = false, want true from config file")
	}
}

func TestParse_CLIOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(iniPath, []byte("threshold = 2.0\n"), 0o644); err != nil {
		t.Fatalf("writing ini: %v", err)
	}

	cfg, err := Parse([]string{"--config_file", iniPath, "--threshold", "9.0"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Threshold != 9.0 {
		t.Errorf("Threshold = %v, want 9.0 (CLI must win over config file)", cfg.Threshold)
	}
}

func TestValidate_RequiresOSMPBFUnlessDownloadOrInfo(t *testing.T) {
	cfg, _ := Parse([]string{"--srtm"})
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with --srtm = %v, want nil", err)
	}

	cfg, _ = Parse([]string{"--version"})
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with --version = %v, want nil", err)
	}

	cfg, _ = Parse(nil)
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with no --osm_pbf and no download/info flag = nil, want error")
	}
}

func TestValidate_RejectsUnknownGeoType(t *testing.T) {
	dir := t.TempDir()
	pbfPath := filepath.Join(dir, "in.pbf")
	if err := os.WriteFile(pbfPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing pbf stub: %v", err)
	}
	cfg, _ := Parse([]string{"-p", pbfPath, "--area_mapping_geo_type", "shapefile"})
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with bad geo_type = nil, want error")
	}
}

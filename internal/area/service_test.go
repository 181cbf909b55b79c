// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package area

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// belgiumWKT is a rough bounding polygon for Belgium, large enough to cover
// the Eupen-area sample point used in the scenario test below.
const belgiumWKT = "POLYGON((2.5 49.4,6.5 49.4,6.5 51.6,2.5 51.6,2.5 49.4))"

func newTestService(t *testing.T, csv string) *Service {
	t.Helper()
	dir := t.TempDir()
	path := writeCSV(t, dir, "areas.csv", csv)
	svc := NewService(Config{
		IDCol:     0,
		GeoCol:    1,
		GeoType:   GeoTypeWKT,
		HasHeader: true,
	}, nil)
	if err := svc.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return svc
}

func TestService_SingleCountryHit(t *testing.T) {
	csv := "name;geometry\n" + "BEL;" + belgiumWKT + "\n"
	svc := newTestService(t, csv)

	// Eupen, Belgium (spec.md §8 scenario 3).
	got := svc.GetArea(6.0902180, 50.7220057)
	if len(got) != 1 || got[0] != "BEL" {
		t.Errorf("GetArea() = %v, want [BEL]", got)
	}
}

func TestService_NoCountryHit(t *testing.T) {
	csv := "name;geometry\n" + "BEL;" + belgiumWKT + "\n"
	svc := newTestService(t, csv)

	// Middle of the Atlantic, far from any polygon.
	got := svc.GetArea(-40.0, 30.0)
	if len(got) != 0 {
		t.Errorf("GetArea() = %v, want empty", got)
	}
}

func TestService_MultipleCountriesHit(t *testing.T) {
	// Two overlapping rectangles sharing the region around (1,1).
	a := "POLYGON((0 0,2 0,2 2,0 2,0 0))"
	b := "POLYGON((1 1,3 1,3 3,1 3,1 1))"
	csv := "name;geometry\n" + "A;" + a + "\n" + "B;" + b + "\n"
	svc := newTestService(t, csv)

	got := svc.GetArea(1.5, 1.5)
	if len(got) != 2 {
		t.Fatalf("GetArea() = %v, want 2 countries", got)
	}
	seen := map[string]bool{}
	for _, name := range got {
		seen[name] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("GetArea() = %v, want both A and B", got)
	}
}

func TestService_InvalidRowStillAdvancesID(t *testing.T) {
	// The malformed first data row ("not-a-polygon") must still consume an
	// area id, so the second row's id doesn't collide with it.
	csv := "name;geometry\n" +
		"BAD;not-a-polygon\n" +
		"BEL;" + belgiumWKT + "\n"
	svc := newTestService(t, csv)

	if name, ok := svc.areaName[1]; ok {
		t.Errorf("areaName[1] = %q, want unset (row 1 was invalid)", name)
	}
	if svc.areaName[2] != "BEL" {
		t.Errorf("areaName[2] = %q, want BEL", svc.areaName[2])
	}
}

func TestService_NotInitializedReturnsEmpty(t *testing.T) {
	svc := NewService(Config{GeoType: GeoTypeWKT}, nil)
	if got := svc.GetArea(6.09, 50.72); got != nil {
		t.Errorf("GetArea() on unloaded service = %v, want nil", got)
	}
}

func TestService_ProcessedCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	csv := "name;geometry\n" + "BEL;" + belgiumWKT + "\n"
	srcPath := writeCSV(t, dir, "areas.csv", csv)
	prefix := filepath.Join(dir, "processed_")

	svc := NewService(Config{
		IDCol:           0,
		GeoCol:          1,
		GeoType:         GeoTypeWKT,
		HasHeader:       true,
		ProcessedPrefix: prefix,
	}, nil)
	if err := svc.Load(srcPath); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, suffix := range []string{"id.csv", "index.csv", "area.csv"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			t.Errorf("processed cache file %s not written: %v", suffix, err)
		}
	}

	// Reloading from the same prefix (with a now-deleted source file) must
	// use the processed cache rather than fail.
	if err := os.Remove(srcPath); err != nil {
		t.Fatalf("removing source: %v", err)
	}
	reloaded := NewService(Config{
		GeoType:         GeoTypeWKT,
		ProcessedPrefix: prefix,
	}, nil)
	if err := reloaded.Load(srcPath); err != nil {
		t.Fatalf("Load from processed cache: %v", err)
	}
	got := reloaded.GetArea(6.0902180, 50.7220057)
	if len(got) != 1 || got[0] != "BEL" {
		t.Errorf("GetArea() after cache reload = %v, want [BEL]", got)
	}
}

func TestStats_Bump(t *testing.T) {
	var s Stats
	s.Bump(nil)
	s.Bump([]string{"BEL"})
	s.Bump([]string{"BEL", "NLD"})
	if s.NoCountry != 1 || s.SingleCountry != 1 || s.MultipleCountries != 1 {
		t.Errorf("Stats = %+v, want {1,1,1}", s)
	}
}

func TestService_GetArea_AccumulatesStats(t *testing.T) {
	a := "POLYGON((0 0,2 0,2 2,0 2,0 0))"
	b := "POLYGON((1 1,3 1,3 3,1 3,1 1))"
	csv := "name;geometry\n" + "A;" + a + "\n" + "B;" + b + "\n"
	svc := newTestService(t, csv)

	svc.GetArea(-40.0, 30.0) // no country
	svc.GetArea(0.5, 0.5)    // A only
	svc.GetArea(1.5, 1.5)    // A and B

	got := svc.Stats()
	want := Stats{NoCountry: 1, SingleCountry: 1, MultipleCountries: 1}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

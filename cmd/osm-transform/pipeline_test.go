// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brawer/osm-transform/internal/area"
	"github.com/brawer/osm-transform/internal/elevation"
	"github.com/brawer/osm-transform/internal/rewrite"
)

func TestConcatenateAndCleanUp(t *testing.T) {
	dir := t.TempDir()
	nodePath := filepath.Join(dir, "n.pbf")
	wrPath := filepath.Join(dir, "wr.pbf")
	outPath := filepath.Join(dir, "out.pbf")

	if err := os.WriteFile(nodePath, []byte("NODES"), 0o644); err != nil {
		t.Fatalf("writing node part: %v", err)
	}
	if err := os.WriteFile(wrPath, []byte("WAYSRELS"), 0o644); err != nil {
		t.Fatalf("writing wr part: %v", err)
	}

	if err := concatenateAndCleanUp(nodePath, wrPath, outPath); err != nil {
		t.Fatalf("concatenateAndCleanUp: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "NODESWAYSRELS" {
		t.Errorf("output = %q, want %q", data, "NODESWAYSRELS")
	}

	if _, err := os.Stat(nodePath); !os.IsNotExist(err) {
		t.Error("node temp file should have been removed")
	}
	if _, err := os.Stat(wrPath); !os.IsNotExist(err) {
		t.Error("wr temp file should have been removed")
	}
}

func TestAreaAdapter_DelegatesToService(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "areas.csv")
	content := "name;geometry\nBEL;POLYGON((2.5 49.4,6.5 49.4,6.5 51.6,2.5 51.6,2.5 49.4))\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing area csv: %v", err)
	}

	svc := area.NewService(area.Config{
		IDCol:     0,
		GeoCol:    1,
		GeoType:   area.GeoTypeWKT,
		HasHeader: true,
	}, nil)
	if err := svc.Load(csvPath); err != nil {
		t.Fatalf("Load: %v", err)
	}

	adapter := areaAdapter{svc: svc}
	if !adapter.Initialized() {
		t.Fatal("Initialized() = false, want true")
	}
	got := adapter.GetArea(rewrite.Location{Lon: 6.0902180, Lat: 50.7220057})
	if len(got) != 1 || got[0] != "BEL" {
		t.Errorf("GetArea() = %v, want [BEL]", got)
	}
}

func TestElevationAdapter_Uninitialized(t *testing.T) {
	svc, err := elevation.NewService(0, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	adapter := elevationAdapter{svc: svc}
	if adapter.Initialized() {
		t.Error("Initialized() = true before Load, want false")
	}
}

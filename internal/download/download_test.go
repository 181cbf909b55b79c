// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package download

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestReadTileList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiles.csv")
	content := "N50E006.tif,https://example.test/N50E006.tif\nN51E006.tif,https://example.test/N51E006.tif\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing tile list: %v", err)
	}

	tiles, err := ReadTileList(path)
	if err != nil {
		t.Fatalf("ReadTileList: %v", err)
	}
	if len(tiles) != 2 {
		t.Fatalf("len(tiles) = %d, want 2", len(tiles))
	}
	if tiles[0].Filename != "N50E006.tif" || tiles[0].URL != "https://example.test/N50E006.tif" {
		t.Errorf("tiles[0] = %+v", tiles[0])
	}
}

func makeZip(t *testing.T, memberName string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(memberName)
	if err != nil {
		t.Fatalf("zip.Create: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}

func TestFetch_SRTMUnzipsToTiff(t *testing.T) {
	tiffBytes := []byte("fake-tiff-data")
	zipBytes := makeZip(t, "N50E006.tif", tiffBytes)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	tiles := []Tile{{Filename: "N50E006.zip", URL: srv.URL + "/N50E006.zip"}}
	result, err := Fetch(context.Background(), SourceSRTM, tiles, destDir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Fetched != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want {Fetched:1}", result)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "N50E006.tif"))
	if err != nil {
		t.Fatalf("reading extracted tif: %v", err)
	}
	if !bytes.Equal(data, tiffBytes) {
		t.Errorf("extracted content = %q, want %q", data, tiffBytes)
	}
}

func TestFetch_GMTEDWritesPlainFile(t *testing.T) {
	content := []byte("plain-gmted-tiff")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	tiles := []Tile{{Filename: "30N000E.tif", URL: srv.URL + "/30N000E.tif"}}
	result, err := Fetch(context.Background(), SourceGMTED, tiles, destDir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Fetched != 1 {
		t.Errorf("result = %+v, want Fetched=1", result)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "30N000E.tif"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content = %q, want %q", data, content)
	}
}

func TestFetch_SkipsAlreadyPresent(t *testing.T) {
	destDir := t.TempDir()
	existing := filepath.Join(destDir, "30N000E.tif")
	if err := os.WriteFile(existing, []byte("already here"), 0o644); err != nil {
		t.Fatalf("seeding existing file: %v", err)
	}

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("should not be fetched"))
	}))
	defer srv.Close()

	tiles := []Tile{{Filename: "30N000E.tif", URL: srv.URL + "/30N000E.tif"}}
	result, err := Fetch(context.Background(), SourceGMTED, tiles, destDir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Skipped != 1 || result.Fetched != 0 {
		t.Errorf("result = %+v, want {Skipped:1}", result)
	}
	if called {
		t.Error("server was hit even though the destination file already existed")
	}
}

func TestFetch_RecordsFailuresWithoutAborting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	tiles := []Tile{{Filename: "missing.tif", URL: srv.URL + "/missing.tif"}}
	result, err := Fetch(context.Background(), SourceGMTED, tiles, destDir, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("result = %+v, want Failed=1", result)
	}
}

// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package download fetches the SRTM/GMTED elevation tile bundles named in
// spec.md §6 (--srtm, --gmted) into a local raster directory.
package download

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source names the tile bundle being fetched; SRTM tiles arrive zipped,
// GMTED tiles arrive as plain GeoTIFFs (spec.md §6 step 2).
type Source string

const (
	SourceSRTM  Source = "srtm"
	SourceGMTED Source = "gmted"
)

// Tile is one row of a tiles_srtm.csv / tiles_gmted.csv list.
type Tile struct {
	Filename string
	URL      string
}

// Result reports how many tiles were fetched versus already present.
type Result struct {
	Fetched int
	Skipped int
	Failed  int
}

// ReadTileList parses a bundled tile-list CSV of (filename,url) rows.
func ReadTileList(path string) ([]Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("download: opening tile list %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("download: parsing tile list %s: %w", path, err)
	}

	tiles := make([]Tile, 0, len(records))
	for _, rec := range records {
		tiles = append(tiles, Tile{Filename: rec[0], URL: rec[1]})
	}
	return tiles, nil
}

// Fetch downloads every tile in the list into destDir, unzipping SRTM
// archives into their contained .tif, mirroring the teacher's
// buildSiteFiles worker-channel pattern: a bounded pool of goroutines
// drains a task channel. A tile that fails is counted in Result.Failed and
// logged; it does not stop the other tiles. Only cancellation of ctx ends
// the run early and is returned as an error.
func Fetch(ctx context.Context, source Source, tiles []Tile, destDir string, logger *log.Logger) (Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("download: creating %s: %w", destDir, err)
	}

	tasks := make(chan Tile, len(tiles))
	group, groupCtx := errgroup.WithContext(ctx)

	var result Result
	results := make(chan error, len(tiles))

	workers := runtime.NumCPU()
	if workers > len(tiles) && len(tiles) > 0 {
		workers = len(tiles)
	}
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case t, more := <-tasks:
					if !more {
						return nil
					}
					results <- fetchOne(groupCtx, source, t, destDir, logger)
				}
			}
		})
	}

	for _, t := range tiles {
		tasks <- t
	}
	close(tasks)

	if err := group.Wait(); err != nil {
		return result, err
	}
	close(results)

	for err := range results {
		switch {
		case err == nil:
			result.Fetched++
		case err == errSkipped:
			result.Skipped++
		default:
			result.Failed++
			if logger != nil {
				logger.Printf("download: %v", err)
			}
		}
	}
	return result, nil
}

var errSkipped = fmt.Errorf("download: already present")

func fetchOne(ctx context.Context, source Source, t Tile, destDir string, logger *log.Logger) error {
	destPath := filepath.Join(destDir, tiffName(t.Filename))
	if _, err := os.Stat(destPath); err == nil {
		return errSkipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", t.URL, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", t.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %s", t.URL, resp.Status)
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(strings.ToLower(t.URL), ".zst") {
		zr, err := decompressZstd(resp.Body)
		if err != nil {
			return err
		}
		defer zr.Close()
		body = zr
	}

	switch source {
	case SourceSRTM:
		return extractZippedTiff(body, destPath)
	default:
		return writeFile(body, destPath)
	}
}

// writeFile streams src into a temp file and renames it into place, the
// atomic-write idiom used throughout the teacher's own output writers.
func writeFile(src io.Reader, destPath string) error {
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// extractZippedTiff unzips body (an SRTM .zip archive) and writes its
// first .tif/.tiff member to destPath.
func extractZippedTiff(body io.Reader, destPath string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading zip body: %w", err)
	}
	zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}

	for _, zf := range zr.File {
		lower := strings.ToLower(zf.Name)
		if !strings.HasSuffix(lower, ".tif") && !strings.HasSuffix(lower, ".tiff") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening %s in zip: %w", zf.Name, err)
		}
		err = writeFile(rc, destPath)
		rc.Close()
		return err
	}
	return fmt.Errorf("zip archive has no .tif member")
}

func tiffName(filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return filename[:len(filename)-4] + ".tif"
	}
	return filename
}

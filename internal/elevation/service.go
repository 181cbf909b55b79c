// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package elevation

import (
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// tileExtensions lists the file extensions recognized by Load, matched
// case-insensitively (spec.md §4.2).
var tileExtensions = map[string]bool{".tif": true, ".tiff": true, ".gtiff": true}

// Location is a WGS84 coordinate pair in degrees. Mirrors
// internal/rewrite.Location so the two packages don't need to import each
// other; callers convert at the boundary.
type Location struct {
	Lon, Lat float64
}

// ElevationPoint is one sample produced by Interpolate.
type ElevationPoint struct {
	Location Location
	Ele      float64
}

// Stats is the elevation-hit breakdown reported at driver exit
// (spec.md §7).
type Stats struct {
	FoundCustom int
	FoundSRTM   int
	FoundGMTED  int
	NotFound    int
}

// Service is the elevation service of spec.md §4.2: an R-tree index of
// GeoTIFF rasters with an LRU, byte-budgeted cache of opened rasters.
type Service struct {
	index       *tileIndex
	cache       *tileCache
	initialized bool
	logger      *log.Logger
	stats       Stats
}

// NewService constructs an elevation Service with the given raster cache
// budget in bytes (spec.md §6 --cache_limit). A nil logger discards
// warnings.
func NewService(cacheLimitBytes int64, logger *log.Logger) (*Service, error) {
	cache, err := newTileCache(cacheLimitBytes)
	if err != nil {
		return nil, err
	}
	return &Service{index: newTileIndex(), cache: cache, logger: logger}, nil
}

func (s *Service) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Load indexes every GeoTIFF found under paths (spec.md §4.2 load). A path
// that is itself a regular file is used directly; directories are walked
// recursively. Failures opening an individual tile are logged and do not
// abort the walk.
func (s *Service) Load(paths []string) error {
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			s.warnf("elevation: cannot stat %s: %v", root, err)
			continue
		}
		if !info.IsDir() {
			s.loadFile(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.warnf("elevation: cannot read %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if tileExtensions[strings.ToLower(filepath.Ext(path))] {
				s.loadFile(path)
			}
			return nil
		})
		if err != nil {
			s.warnf("elevation: walking %s: %v", root, err)
		}
	}
	s.initialized = true
	return nil
}

// loadFile opens a single tile, indexes its bbox and priority, then closes
// it again (spec.md §4.2: "Close the tile handle at end of load").
func (s *Service) loadFile(path string) {
	tile, err := Open(path)
	if err != nil {
		s.warnf("elevation: skipping %s: %v", path, err)
		return
	}
	defer tile.Close()

	minLon, minLat, maxLon, maxLat := tile.Bounds()
	s.index.insert(minLon, minLat, maxLon, maxLat, tile.Priority(), path)
}

// Initialized reports whether Load has run.
func (s *Service) Initialized() bool {
	return s.initialized
}

// Stats returns the elevation-hit breakdown accumulated by Elevation calls
// made with count=true.
func (s *Service) Stats() Stats {
	return s.stats
}

// Elevation implements spec.md §4.2's elevation(location, count) query.
func (s *Service) Elevation(loc Location, count bool) float64 {
	matches := s.index.queryPoint(loc.Lon, loc.Lat)
	if len(matches) == 0 {
		if count {
			s.stats.NotFound++
		}
		return NoData
	}

	filename := matches[0].filename
	tile, err := s.loadTiff(filename)
	if err != nil || tile == nil {
		if count {
			s.stats.NotFound++
		}
		return NoData
	}

	ele := tile.Sample(loc.Lon, loc.Lat)
	if count {
		if ele == NoData {
			s.stats.NotFound++
		} else {
			s.bumpSourceCounter(filename)
		}
	}
	return ele
}

func (s *Service) bumpSourceCounter(filename string) {
	base := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.HasPrefix(base, "srtm"):
		s.stats.FoundSRTM++
	case strings.Contains(base, "gmted"):
		s.stats.FoundGMTED++
	default:
		s.stats.FoundCustom++
	}
}

// Interpolate implements spec.md §4.2's interpolate(from, to) query. The
// step count is intentionally computed from dx/sx, not from segment
// length over step, per spec.md §9's note that this formula must be
// reproduced bit-identically for matching output.
func (s *Service) Interpolate(from, to Location) []ElevationPoint {
	minLon, maxLon := from.Lon, to.Lon
	if minLon > maxLon {
		minLon, maxLon = maxLon, minLon
	}
	minLat, maxLat := from.Lat, to.Lat
	if minLat > maxLat {
		minLat, maxLat = maxLat, minLat
	}

	matches := s.index.queryBBox(minLon, minLat, maxLon, maxLat)
	if len(matches) == 0 {
		return nil
	}
	step := matches[0].priority

	dx := to.Lon - from.Lon
	dy := to.Lat - from.Lat
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		return []ElevationPoint{{Location: to, Ele: s.Elevation(to, false)}}
	}
	nx, ny := dx/length, dy/length
	sx, sy := step*nx, step*ny

	var steps int
	if sx != 0 {
		steps = int(math.Floor(dx / sx))
	}

	var points []ElevationPoint
	for st := 0; st <= steps; st++ {
		loc := Location{Lon: from.Lon + float64(st)*sx, Lat: from.Lat + float64(st)*sy}
		points = append(points, ElevationPoint{Location: loc, Ele: s.Elevation(loc, false)})
	}
	points = append(points, ElevationPoint{Location: to, Ele: s.Elevation(to, false)})
	return points
}

// loadTiff implements spec.md §4.2's cache-discipline contract.
func (s *Service) loadTiff(filename string) (*RasterTile, error) {
	if tile, ok := s.cache.Get(filename); ok {
		return tile, nil
	}

	tile, err := Open(filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filename)
	var size int64
	if err == nil {
		size = info.Size()
	}

	s.cache.Put(filename, tile, size)
	return tile, nil
}

// Close releases every cached raster handle.
func (s *Service) Close() {
	s.cache.Close()
}

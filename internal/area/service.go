// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package area

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// AreaID is spec.md §3's AreaId: 0 means "no area", 65535 means "multiple
// areas overlap this cell".
type AreaID = uint16

const (
	NoArea        AreaID = 0
	MultipleAreas AreaID = 65535
)

// Config bundles the area-mapping CSV schema options of spec.md §6.
type Config struct {
	IDCol           int
	GeoCol          int
	GeoType         GeoType
	HasHeader       bool
	ProcessedPrefix string
}

type overlapEntry struct {
	areaID AreaID
	polys  []orb.Polygon
}

// Stats is the area-hit breakdown reported at driver exit (spec.md §4.3
// "Counters").
type Stats struct {
	NoCountry         int
	SingleCountry     int
	MultipleCountries int
}

// Service is the area service of spec.md §4.3.
type Service struct {
	grid         []orb.Polygon
	cellIndex    [GridSize]AreaID
	cellOverlaps map[int][]overlapEntry
	areaName     map[AreaID]string
	cfg          Config
	initialized  bool
	logger       *log.Logger
	stats        Stats
}

// NewService constructs an unloaded area Service.
func NewService(cfg Config, logger *log.Logger) *Service {
	return &Service{
		grid:         buildGrid(),
		cellOverlaps: make(map[int][]overlapEntry),
		areaName:     make(map[AreaID]string),
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *Service) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Initialized reports whether Load has run.
func (s *Service) Initialized() bool {
	return s.initialized
}

// Load implements spec.md §4.3's load algorithm: use the processed cache
// files if present, otherwise stream the source CSV and persist the cache
// afterwards.
func (s *Service) Load(sourcePath string) error {
	if s.cfg.ProcessedPrefix != "" && s.processedCacheExists() {
		if err := s.loadProcessed(); err == nil {
			s.initialized = true
			return nil
		} else {
			s.warnf("area: processed cache corrupt, reloading from source: %v", err)
		}
	}

	if err := s.loadSource(sourcePath); err != nil {
		return err
	}
	s.initialized = true

	if s.cfg.ProcessedPrefix != "" {
		if err := s.saveProcessed(); err != nil {
			s.warnf("area: failed to persist processed cache: %v", err)
		}
	}
	return nil
}

func (s *Service) processedCacheExists() bool {
	for _, suffix := range []string{"area.csv", "index.csv", "id.csv"} {
		if _, err := os.Stat(s.cfg.ProcessedPrefix + suffix); err != nil {
			return false
		}
	}
	return true
}

// loadSource streams the area-mapping CSV and adds each valid row's
// polygon to the grid (spec.md §4.3 load step 2).
func (s *Service) loadSource(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("area: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	rowNum := 0
	nextID := AreaID(1)
	maxCol := s.cfg.IDCol
	if s.cfg.GeoCol > maxCol {
		maxCol = s.cfg.GeoCol
	}

	for scanner.Scan() {
		rowNum++
		if rowNum == 1 && s.cfg.HasHeader {
			continue
		}
		fields := parseRow(scanner.Text())
		if len(fields) <= maxCol {
			continue
		}

		geo := fields[s.cfg.GeoCol]
		if !validateGeoField(s.cfg.GeoType, geo) {
			s.warnf("area: row %d has invalid geometry, skipping but advancing id", rowNum)
			nextID++
			if nextID == MultipleAreas {
				return fmt.Errorf("area: area id overflow at row %d", rowNum)
			}
			continue
		}

		id := nextID
		nextID++
		if nextID == MultipleAreas {
			return fmt.Errorf("area: area id overflow at row %d", rowNum)
		}

		s.areaName[id] = normalizeAreaName(fields[s.cfg.IDCol])
		if err := s.addArea(id, geo); err != nil {
			s.warnf("area: row %d: %v", rowNum, err)
		}
	}
	return scanner.Err()
}

// addArea implements spec.md §4.3's add_area: classify every grid cell
// that the polygon overlaps as either single-owner or multi-owner.
func (s *Service) addArea(id AreaID, geoField string) error {
	polys, err := parseGeometry(s.cfg.GeoType, geoField)
	if err != nil {
		return err
	}

	for cell, poly := range s.grid {
		if !polygonsIntersectCell(polys, poly) {
			continue
		}
		prev := s.cellIndex[cell]
		if prev == NoArea && polygonsContainCell(polys, poly) {
			s.cellIndex[cell] = id
			continue
		}
		if prev != NoArea && prev != MultipleAreas {
			// The previous sole owner covers the whole cell, so the cell
			// square is its overlap with the cell.
			s.cellOverlaps[cell] = append(s.cellOverlaps[cell], overlapEntry{areaID: prev, polys: []orb.Polygon{poly}})
		}
		s.cellIndex[cell] = MultipleAreas
		s.cellOverlaps[cell] = append(s.cellOverlaps[cell], overlapEntry{areaID: id, polys: polys})
	}
	return nil
}

// GetArea implements spec.md §4.3's get_area(location). It takes a plain
// (lon, lat) pair rather than internal/rewrite's Location type to keep this
// package free of a dependency on internal/rewrite; cmd/osm-transform wires
// it behind a one-line adapter that satisfies rewrite.AreaService.
func (s *Service) GetArea(lon, lat float64) []string {
	if !s.initialized {
		return nil
	}
	var names []string
	cell := CellIndex(lon, lat)
	switch id := s.cellIndex[cell]; id {
	case NoArea:
		// names stays nil
	case MultipleAreas:
		pt := orb.Point{lon, lat}
		for _, entry := range s.cellOverlaps[cell] {
			if polygonsContainPoint(entry.polys, pt) {
				names = append(names, s.areaName[entry.areaID])
			}
		}
	default:
		names = []string{s.areaName[id]}
	}
	s.stats.Bump(names)
	return names
}

// Stats returns the no/single/multiple area-hit breakdown accumulated by
// GetArea calls so far.
func (s *Service) Stats() Stats {
	return s.stats
}

// Bump updates the no/single/multiple counters for one node's area lookup
// result (spec.md §4.3 "Counters").
func (s *Stats) Bump(countries []string) {
	switch len(countries) {
	case 0:
		s.NoCountry++
	case 1:
		s.SingleCountry++
	default:
		s.MultipleCountries++
	}
}

// loadProcessed loads the three processed-cache files directly
// (spec.md §4.3 load step 1).
func (s *Service) loadProcessed() error {
	if err := s.loadIDFile(); err != nil {
		return err
	}
	if err := s.loadIndexFile(); err != nil {
		return err
	}
	return s.loadOverlapFile()
}

func (s *Service) loadIDFile() error {
	lines, err := readLines(s.cfg.ProcessedPrefix + "id.csv")
	if err != nil {
		return err
	}
	for _, line := range lines {
		fields := strings.SplitN(line, ";", 2)
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			continue
		}
		s.areaName[AreaID(id)] = fields[1]
	}
	return nil
}

func (s *Service) loadIndexFile() error {
	lines, err := readLines(s.cfg.ProcessedPrefix + "index.csv")
	if err != nil {
		return err
	}
	for _, line := range lines {
		fields := strings.SplitN(line, ";", 2)
		if len(fields) != 2 {
			continue
		}
		cell, err1 := strconv.Atoi(fields[0])
		id, err2 := strconv.ParseUint(fields[1], 10, 16)
		if err1 != nil || err2 != nil || cell < 0 || cell >= GridSize {
			continue
		}
		s.cellIndex[cell] = AreaID(id)
	}
	return nil
}

func (s *Service) loadOverlapFile() error {
	lines, err := readLines(s.cfg.ProcessedPrefix + "area.csv")
	if err != nil {
		return err
	}
	for _, line := range lines {
		fields := strings.SplitN(line, ";", 3)
		if len(fields) != 3 {
			continue
		}
		cell, err1 := strconv.Atoi(fields[0])
		id, err2 := strconv.ParseUint(fields[1], 10, 16)
		if err1 != nil || err2 != nil || cell < 0 || cell >= GridSize {
			continue
		}
		geom, err := wkt.Unmarshal(fields[2])
		if err != nil {
			s.warnf("area: processed cache row has bad WKT, skipping: %v", err)
			continue
		}
		var polys []orb.Polygon
		switch g := geom.(type) {
		case orb.Polygon:
			polys = []orb.Polygon{g}
		case orb.MultiPolygon:
			polys = []orb.Polygon(g)
		}
		s.cellOverlaps[cell] = append(s.cellOverlaps[cell], overlapEntry{areaID: AreaID(id), polys: polys})
	}
	return nil
}

// saveProcessed persists the three processed-cache files (spec.md §4.3
// load step 3).
func (s *Service) saveProcessed() error {
	if err := s.saveIDFile(); err != nil {
		return err
	}
	if err := s.saveIndexFile(); err != nil {
		return err
	}
	return s.saveOverlapFile()
}

func (s *Service) saveIDFile() error {
	var sb strings.Builder
	for id, name := range s.areaName {
		fmt.Fprintf(&sb, "%d;%s\n", id, name)
	}
	return os.WriteFile(s.cfg.ProcessedPrefix+"id.csv", []byte(sb.String()), 0o644)
}

func (s *Service) saveIndexFile() error {
	var sb strings.Builder
	for cell, id := range s.cellIndex {
		if id == NoArea {
			continue
		}
		fmt.Fprintf(&sb, "%d;%d\n", cell, id)
	}
	return os.WriteFile(s.cfg.ProcessedPrefix+"index.csv", []byte(sb.String()), 0o644)
}

func (s *Service) saveOverlapFile() error {
	var sb strings.Builder
	for cell, entries := range s.cellOverlaps {
		for _, e := range entries {
			for _, poly := range e.polys {
				fmt.Fprintf(&sb, "%d;%d;%s\n", cell, e.areaID, wkt.Marshal(poly))
			}
		}
	}
	return os.WriteFile(s.cfg.ProcessedPrefix+"area.csv", []byte(sb.String()), 0o644)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

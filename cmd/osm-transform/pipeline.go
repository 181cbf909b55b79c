// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/brawer/osm-transform/internal/area"
	"github.com/brawer/osm-transform/internal/config"
	"github.com/brawer/osm-transform/internal/elevation"
	"github.com/brawer/osm-transform/internal/osmfilter"
	"github.com/brawer/osm-transform/internal/pbfio"
	"github.com/brawer/osm-transform/internal/rewrite"
	"github.com/brawer/osm-transform/internal/stats"
)

// elevationAdapter satisfies rewrite.ElevationService by translating
// between rewrite.Location and internal/elevation.Location, the boundary
// conversion named in internal/elevation's own Location doc comment.
type elevationAdapter struct{ svc *elevation.Service }

func (a elevationAdapter) Initialized() bool { return a.svc.Initialized() }

func (a elevationAdapter) Elevation(loc rewrite.Location, count bool) float64 {
	return a.svc.Elevation(elevation.Location{Lon: loc.Lon, Lat: loc.Lat}, count)
}

func (a elevationAdapter) Interpolate(from, to rewrite.Location) []rewrite.ElevationPoint {
	samples := a.svc.Interpolate(
		elevation.Location{Lon: from.Lon, Lat: from.Lat},
		elevation.Location{Lon: to.Lon, Lat: to.Lat},
	)
	out := make([]rewrite.ElevationPoint, len(samples))
	for i, s := range samples {
		out[i] = rewrite.ElevationPoint{
			Location: rewrite.Location{Lon: s.Location.Lon, Lat: s.Location.Lat},
			Ele:      s.Ele,
		}
	}
	return out
}

// areaAdapter satisfies rewrite.AreaService over internal/area.Service's
// plain (lon, lat) API.
type areaAdapter struct{ svc *area.Service }

func (a areaAdapter) Initialized() bool { return a.svc.Initialized() }

func (a areaAdapter) GetArea(loc rewrite.Location) []string {
	return a.svc.GetArea(loc.Lon, loc.Lat)
}

// runPipeline implements spec.md §4.6 steps 3-10: the two-pass filter and
// rewrite pipeline, plus elevation/area service loading.
func runPipeline(ctx context.Context, cfg *config.Config) error {
	summary := stats.New()

	filterHandler, err := osmfilter.NewHandler(cfg.RemoveTag)
	if err != nil {
		return fmt.Errorf("building removal regex: %w", err)
	}

	if err := runFilterPass(ctx, cfg.OSMPBF, filterHandler); err != nil {
		return err
	}
	summary.WaysRead = int64(filterHandler.WaysSeen)
	summary.RelationsRead = int64(filterHandler.RelsSeen)
	summary.ReferencedNodes = int64(filterHandler.ValidIDs.Nodes.Size())
	logger.Printf("filter pass: ways kept %d/%d, relations kept %d/%d",
		filterHandler.WaysKept, filterHandler.WaysSeen,
		filterHandler.RelsKept, filterHandler.RelsSeen)

	var eleSvc *elevation.Service
	if !cfg.SkipElevation {
		eleSvc, err = elevation.NewService(cfg.CacheLimit, logger)
		if err != nil {
			return fmt.Errorf("building elevation service: %w", err)
		}
		if err := eleSvc.Load(cfg.GeoTiffFolders); err != nil {
			return fmt.Errorf("loading elevation rasters: %w", err)
		}
		defer eleSvc.Close()
	}

	var areaSvc *area.Service
	if cfg.AreaMapping != "" {
		areaSvc = area.NewService(area.Config{
			IDCol:           cfg.AreaMappingIDCol,
			GeoCol:          cfg.AreaMappingGeoCol,
			GeoType:         area.GeoType(cfg.AreaMappingGeoType),
			HasHeader:       cfg.AreaMappingHasHeader,
			ProcessedPrefix: cfg.AreaMappingProcessedPrefix,
		}, logger)
		if err := areaSvc.Load(cfg.AreaMapping); err != nil {
			return fmt.Errorf("loading area mapping: %w", err)
		}
	}

	var elevationService rewrite.ElevationService
	if eleSvc != nil {
		elevationService = elevationAdapter{svc: eleSvc}
	}
	var areaService rewrite.AreaService
	if areaSvc != nil {
		areaService = areaAdapter{svc: areaSvc}
	}

	counters, err := runRewritePass(ctx, cfg, filterHandler.ValidIDs, filterHandler.NoElevation, elevationService, areaService)
	if err != nil {
		return err
	}

	summary.NodesWritten = int64(counters.NodesWritten)
	summary.SyntheticNodesWritten = int64(counters.SyntheticNodesWritten)
	summary.WaysWritten = int64(counters.WaysWritten)
	summary.RelationsWritten = int64(counters.RelationsWritten)
	summary.NodesWithElevation = int64(counters.NodesWithElevation)
	summary.NodesWithElevationNotFound = int64(counters.NodesWithElevationNotFound)
	summary.NodesWithNoCountry = int64(counters.NodesWithNoCountry)
	summary.NodesWithSingleCountry = int64(counters.NodesWithSingleCountry)
	summary.NodesWithMultipleCountries = int64(counters.NodesWithMultipleCountries)
	if eleSvc != nil {
		s := eleSvc.Stats()
		summary.ElevationSourceHits["custom"] = int64(s.FoundCustom)
		summary.ElevationSourceHits["srtm"] = int64(s.FoundSRTM)
		summary.ElevationSourceHits["gmted"] = int64(s.FoundGMTED)
	}

	summary.Print(os.Stdout)
	if err := summary.WriteTextfile("osm-transform.prom"); err != nil {
		logger.Printf("writing metrics textfile: %v", err)
	}
	return nil
}

// runFilterPass implements spec.md §4.6 step 5: a ways|relations-only read
// that builds the transitive valid-id and no-elevation sets.
func runFilterPass(ctx context.Context, path string, h *osmfilter.Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r, err := pbfio.OpenReader(ctx, f, pbfio.ScopeWaysRelations)
	if err != nil {
		return fmt.Errorf("opening PBF for filter pass: %w", err)
	}
	defer r.Close()

	pv := newProgressVisitor(os.Stderr, "filter pass", h)
	err = pbfio.Drive(r, pv)
	pv.done()
	return err
}

// runRewritePass implements spec.md §4.6 steps 8-10: the full nodes|ways|
// relations read, node-location index allocation, and (when interpolation
// is enabled) the split-then-concatenate temp-file dance.
func runRewritePass(
	ctx context.Context,
	cfg *config.Config,
	validIDs osmfilter.IDSets,
	noElevation osmfilter.NoElevationIDs,
	eleSvc rewrite.ElevationService,
	areaSvc rewrite.AreaService,
) (rewrite.Counters, error) {
	in, err := os.Open(cfg.OSMPBF)
	if err != nil {
		return rewrite.Counters{}, fmt.Errorf("opening %s: %w", cfg.OSMPBF, err)
	}
	defer in.Close()

	r, err := pbfio.OpenReader(ctx, in, pbfio.ScopeAll)
	if err != nil {
		return rewrite.Counters{}, fmt.Errorf("opening PBF for rewrite pass: %w", err)
	}
	defer r.Close()

	hdr := r.Header()
	hdr.WritingProgram = "osm-transform " + version

	outPath := cfg.OSMPBF + ".out.pbf"
	var nodePath, wrPath string

	var nodeFile, wrFile *os.File
	if cfg.Interpolate {
		nodePath = outPath + ".n.pbf"
		wrPath = outPath + ".wr.pbf"
		nodeFile, err = os.Create(nodePath)
		if err != nil {
			return rewrite.Counters{}, err
		}
		defer nodeFile.Close()
		wrFile, err = os.Create(wrPath)
		if err != nil {
			return rewrite.Counters{}, err
		}
		defer wrFile.Close()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return rewrite.Counters{}, err
		}
		defer f.Close()
		nodeFile, wrFile = f, f
	}

	nodeWriter, err := pbfio.NewWriter(nodeFile, hdr)
	if err != nil {
		return rewrite.Counters{}, err
	}
	var wrWriter *pbfio.Writer
	if cfg.Interpolate {
		wrWriter, err = pbfio.NewWriter(wrFile, hdr)
		if err != nil {
			return rewrite.Counters{}, err
		}
	} else {
		wrWriter = nodeWriter
	}

	index := rewrite.NewIndex(cfg.IndexType)
	h, err := rewrite.NewHandler(nodeWriter, wrWriter, index, eleSvc, areaSvc, validIDs, noElevation, rewrite.Config{
		RemoveTagPattern: cfg.RemoveTag,
		AddElevation:     !cfg.SkipElevation,
		Interpolate:      cfg.Interpolate,
		Threshold:        cfg.Threshold,
	})
	if err != nil {
		return rewrite.Counters{}, err
	}

	pv := newProgressVisitor(os.Stderr, "rewrite pass", h)
	err = pbfio.Drive(r, pv)
	pv.done()
	if err != nil {
		return h.Counters, err
	}

	if err := nodeWriter.Close(); err != nil {
		return h.Counters, err
	}
	if cfg.Interpolate {
		if err := wrWriter.Close(); err != nil {
			return h.Counters, err
		}
		if err := concatenateAndCleanUp(nodePath, wrPath, outPath); err != nil {
			return h.Counters, err
		}
	}

	return h.Counters, nil
}

// concatenateAndCleanUp implements spec.md §4.6 step 10's final assembly:
// nodes.pbf then ways_relations.pbf, concatenated into outPath, with both
// temp files removed afterwards.
func concatenateAndCleanUp(nodePath, wrPath, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}

	for _, part := range []string{nodePath, wrPath} {
		if err := copyFile(out, part); err != nil {
			out.Close()
			return err
		}
	}

	if err := out.Close(); err != nil {
		return err
	}
	os.Remove(nodePath)
	os.Remove(wrPath)
	return nil
}

func copyFile(dst io.Writer, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package stats accumulates run-wide counters for both passes of the
// pipeline and reports them as a human-readable summary and, optionally,
// as a Prometheus textfile for batch-job scraping.
package stats

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Summary is the final reduction named in spec.md §7: node/way/relation
// counts, elevation-hit breakdown and area-hit breakdown.
type Summary struct {
	NodesRead     int64
	WaysRead      int64
	RelationsRead int64

	NodesWritten          int64
	SyntheticNodesWritten int64
	WaysWritten           int64
	RelationsWritten      int64

	NodesWithElevation         int64
	NodesWithElevationNotFound int64
	ElevationSourceHits        map[string]int64

	NodesWithNoCountry         int64
	NodesWithSingleCountry     int64
	NodesWithMultipleCountries int64

	// ReferencedNodes is the number of distinct node ids the filter pass
	// found referenced by a kept way or relation. Comparing it against
	// NodesWritten detects dangling references (spec.md §7 "a note when
	// reference counts imply extract-style truncation").
	ReferencedNodes int64

	reg            *prometheus.Registry
	nodesReadG     prometheus.Gauge
	waysReadG      prometheus.Gauge
	relsReadG      prometheus.Gauge
	nodesWrittenG  prometheus.Gauge
	synthNodesG    prometheus.Gauge
	waysWrittenG   prometheus.Gauge
	relsWrittenG   prometheus.Gauge
	eleFoundG      prometheus.Gauge
	eleNotFoundG   prometheus.Gauge
	noCountryG     prometheus.Gauge
	singleCountryG prometheus.Gauge
	multiCountryG  prometheus.Gauge
	sourceHitsVec  *prometheus.GaugeVec
}

// New returns an empty Summary with its Prometheus gauges registered.
func New() *Summary {
	s := &Summary{
		ElevationSourceHits: make(map[string]int64),
		reg:                 prometheus.NewRegistry(),
	}

	newGauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osm_transform",
			Name:      name,
			Help:      help,
		})
		s.reg.MustRegister(g)
		return g
	}

	s.nodesReadG = newGauge("nodes_read_total", "Nodes read in the filter pass.")
	s.waysReadG = newGauge("ways_read_total", "Ways read in the filter pass.")
	s.relsReadG = newGauge("relations_read_total", "Relations read in the filter pass.")
	s.nodesWrittenG = newGauge("nodes_written_total", "Nodes written in the rewrite pass.")
	s.synthNodesG = newGauge("synthetic_nodes_written_total", "Synthetic interpolation nodes written.")
	s.waysWrittenG = newGauge("ways_written_total", "Ways written in the rewrite pass.")
	s.relsWrittenG = newGauge("relations_written_total", "Relations written in the rewrite pass.")
	s.eleFoundG = newGauge("nodes_with_elevation", "Nodes that received an elevation tag.")
	s.eleNotFoundG = newGauge("nodes_with_elevation_not_found", "Nodes with no matching raster coverage.")
	s.noCountryG = newGauge("nodes_with_no_country", "Nodes that matched zero areas.")
	s.singleCountryG = newGauge("nodes_with_single_country", "Nodes that matched exactly one area.")
	s.multiCountryG = newGauge("nodes_with_multiple_countries", "Nodes that matched more than one area.")
	s.sourceHitsVec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "osm_transform",
		Name:      "elevation_source_hits",
		Help:      "Elevation samples served per raster source.",
	}, []string{"source"})
	s.reg.MustRegister(s.sourceHitsVec)

	return s
}

// BumpElevationSource records one elevation sample served by the named
// raster source (e.g. "srtm", "gmted", "custom").
func (s *Summary) BumpElevationSource(source string) {
	s.ElevationSourceHits[source]++
}

// sync copies the plain counter fields into their Prometheus gauges,
// called just before rendering or writing a textfile.
func (s *Summary) sync() {
	s.nodesReadG.Set(float64(s.NodesRead))
	s.waysReadG.Set(float64(s.WaysRead))
	s.relsReadG.Set(float64(s.RelationsRead))
	s.nodesWrittenG.Set(float64(s.NodesWritten))
	s.synthNodesG.Set(float64(s.SyntheticNodesWritten))
	s.waysWrittenG.Set(float64(s.WaysWritten))
	s.relsWrittenG.Set(float64(s.RelationsWritten))
	s.eleFoundG.Set(float64(s.NodesWithElevation))
	s.eleNotFoundG.Set(float64(s.NodesWithElevationNotFound))
	s.noCountryG.Set(float64(s.NodesWithNoCountry))
	s.singleCountryG.Set(float64(s.NodesWithSingleCountry))
	s.multiCountryG.Set(float64(s.NodesWithMultipleCountries))
	for source, n := range s.ElevationSourceHits {
		s.sourceHitsVec.WithLabelValues(source).Set(float64(n))
	}
}

// Print writes the human-readable summary to w, in the teacher's
// plain key/value reporting style.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "nodes read:               %d\n", s.NodesRead)
	fmt.Fprintf(w, "ways read:                %d\n", s.WaysRead)
	fmt.Fprintf(w, "relations read:           %d\n", s.RelationsRead)
	fmt.Fprintf(w, "nodes written:            %d\n", s.NodesWritten)
	fmt.Fprintf(w, "synthetic nodes written:  %d\n", s.SyntheticNodesWritten)
	fmt.Fprintf(w, "ways written:             %d\n", s.WaysWritten)
	fmt.Fprintf(w, "relations written:        %d\n", s.RelationsWritten)
	fmt.Fprintf(w, "nodes with elevation:     %d\n", s.NodesWithElevation)
	fmt.Fprintf(w, "nodes without elevation:  %d\n", s.NodesWithElevationNotFound)
	fmt.Fprintf(w, "nodes with no country:        %d\n", s.NodesWithNoCountry)
	fmt.Fprintf(w, "nodes with one country:       %d\n", s.NodesWithSingleCountry)
	fmt.Fprintf(w, "nodes with multiple countries: %d\n", s.NodesWithMultipleCountries)

	if len(s.ElevationSourceHits) > 0 {
		fmt.Fprintln(w, "elevation source hits:")
		sources := make([]string, 0, len(s.ElevationSourceHits))
		for src := range s.ElevationSourceHits {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			fmt.Fprintf(w, "  %-10s %d\n", src, s.ElevationSourceHits[src])
		}
	}

	if s.ReferencedNodes > s.NodesWritten {
		fmt.Fprintf(w, "note: %d node id(s) referenced by kept ways/relations were never found in the input; the source PBF looks like a clipped extract\n",
			s.ReferencedNodes-s.NodesWritten)
	}
}

// WriteTextfile atomically writes a Prometheus textfile-collector-format
// dump of s to path, for batch-job scraping the way a long-running
// planet-extract job would be monitored.
func (s *Summary) WriteTextfile(path string) error {
	s.sync()

	mfs, err := s.reg.Gather()
	if err != nil {
		return fmt.Errorf("stats: gathering metrics: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("stats: creating %s: %w", tmpPath, err)
	}

	for _, mf := range mfs {
		if _, err := fmt.Fprintf(f, "# HELP %s %s\n", mf.GetName(), mf.GetHelp()); err != nil {
			f.Close()
			return err
		}
		if _, err := fmt.Fprintf(f, "# TYPE %s gauge\n", mf.GetName()); err != nil {
			f.Close()
			return err
		}
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				if labels != "" {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			if labels != "" {
				labels = "{" + labels + "}"
			}
			if _, err := fmt.Fprintf(f, "%s%s %v\n", mf.GetName(), labels, m.GetGauge().GetValue()); err != nil {
				f.Close()
				return err
			}
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

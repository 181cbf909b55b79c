// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package rewrite implements the second streaming pass of spec.md §4.5: it
// emits a new PBF, copying filtered elements with pruned tags, attaching
// elevation and area tags to nodes, and inserting interpolated nodes along
// ways whose elevation curvature exceeds a threshold.
package rewrite

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brawer/osm-transform/internal/osmfilter"
	"github.com/brawer/osm-transform/internal/pbfio"
)

// NoData is the elevation sentinel of spec.md §4.1 step 3 and the GLOSSARY.
const NoData = -32768.0

// ElevationPoint is one sample along an interpolated segment.
type ElevationPoint struct {
	Location Location
	Ele      float64
}

// ElevationService is the subset of internal/elevation.Service the rewrite
// handler depends on. Declaring it here (rather than importing the
// concrete type) keeps the "lent for the duration of the pass" borrow of
// spec.md §9 explicit and acyclic.
type ElevationService interface {
	Initialized() bool
	Elevation(loc Location, count bool) float64
	Interpolate(from, to Location) []ElevationPoint
}

// AreaService is the subset of internal/area.Service the rewrite handler
// depends on.
type AreaService interface {
	Initialized() bool
	GetArea(loc Location) []string
}

// Counters accumulates the per-run statistics named in spec.md §7/§8.
type Counters struct {
	NodesWritten                int
	SyntheticNodesWritten       int
	WaysWritten                 int
	RelationsWritten            int
	NodesWithElevation          int
	NodesWithElevationNotFound  int
	NodesWithNoCountry          int
	NodesWithSingleCountry      int
	NodesWithMultipleCountries  int
}

// Handler is the rewrite-pass visitor. Construct with NewHandler, feed it
// nodes, then ways, then relations in the reader's natural block order. It
// writes nodes to the node writer and ways/relations to the way/relation
// writer given to NewHandler as it runs.
type Handler struct {
	nodeWriter *pbfio.Writer
	wrWriter   *pbfio.Writer

	nextSyntheticID int64
	nodeIndex       NodeLocationIndex
	elevation       ElevationService
	area            AreaService
	removeTag       *regexp.Regexp
	validIDs        osmfilter.IDSets
	noElevation     osmfilter.NoElevationIDs

	addElevation bool
	interpolate  bool
	threshold    float64

	Counters Counters
}

// Config bundles the construction-time parameters of spec.md §4.5.
type Config struct {
	SyntheticNodeStart int64
	RemoveTagPattern   string
	AddElevation       bool
	Interpolate        bool
	Threshold          float64
}

// NewHandler constructs a rewrite Handler. nodeWriter receives node
// entities (including synthetic interpolation nodes); wrWriter receives
// ways and relations. When interpolation is disabled the driver may pass
// the same *pbfio.Writer for both (spec.md §4.5 "Buffering").
func NewHandler(
	nodeWriter, wrWriter *pbfio.Writer,
	nodeIndex NodeLocationIndex,
	elevation ElevationService,
	area AreaService,
	validIDs osmfilter.IDSets,
	noElevation osmfilter.NoElevationIDs,
	cfg Config,
) (*Handler, error) {
	pattern := cfg.RemoveTagPattern
	if pattern == "" {
		pattern = osmfilter.DefaultRemoveTagPattern
	}
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	start := cfg.SyntheticNodeStart
	if start == 0 {
		start = 1_000_000_000
	}
	return &Handler{
		nodeWriter:      nodeWriter,
		wrWriter:        wrWriter,
		nextSyntheticID: start,
		nodeIndex:       nodeIndex,
		elevation:       elevation,
		area:            area,
		removeTag:       re,
		validIDs:        validIDs,
		noElevation:     noElevation,
		addElevation:    cfg.AddElevation,
		interpolate:     cfg.Interpolate,
		threshold:       cfg.Threshold,
	}, nil
}

// copyTags implements spec.md §4.5's copy_tags rule: drop removal-matched
// keys and any prior "country"/"ele" that is about to be overwritten, then
// append the freshly computed values. A pre-existing "ele" tag is only
// dropped when elevation enrichment is active; with enrichment disabled,
// a source "ele" tag survives untouched (spec.md §8: "both are absent
// when enrichment is disabled and no source value existed").
func (h *Handler) copyTags(tags pbfio.Tags, ele float64, countries []string) pbfio.Tags {
	out := make(pbfio.Tags, 0, len(tags)+2)
	for _, tag := range tags {
		if h.removeTag.MatchString(tag.Key) {
			continue
		}
		if tag.Key == "country" {
			continue
		}
		if tag.Key == "ele" && h.addElevation {
			continue
		}
		out = append(out, tag)
	}
	if ele > NoData {
		out = append(out, pbfio.Tag{Key: "ele", Value: formatElevation(ele)})
	}
	if len(countries) > 0 {
		out = append(out, pbfio.Tag{Key: "country", Value: strings.Join(countries, ",")})
	}
	return out
}

// formatElevation serializes an elevation value as the shortest
// round-trippable decimal in plain notation (e.g. "123.4"), not the fixed
// six-decimal form of a C++ to_string(double) ("123.400000"); spec.md §9
// "Numeric formatting" allows either.
func formatElevation(ele float64) string {
	return strconv.FormatFloat(ele, 'f', -1, 64)
}

// VisitNode rewrites one retained node: copies its location, attaches
// elevation and area tags, and (when interpolation is enabled) records its
// location in the node index for later way processing (spec.md §4.5).
func (h *Handler) VisitNode(n *pbfio.Node) error {
	if n.ID < 0 || !h.validIDs.Nodes.Get(n.ID) {
		return nil
	}

	loc := Location{Lon: n.Lon, Lat: n.Lat}

	ele := NoData
	if h.addElevation && h.elevation != nil && h.elevation.Initialized() {
		ele = h.elevation.Elevation(loc, true)
		if ele != NoData {
			h.Counters.NodesWithElevation++
		} else {
			h.Counters.NodesWithElevationNotFound++
		}
	}

	var countries []string
	if h.area != nil {
		countries = h.area.GetArea(loc)
	}
	switch len(countries) {
	case 0:
		h.Counters.NodesWithNoCountry++
	case 1:
		h.Counters.NodesWithSingleCountry++
	default:
		h.Counters.NodesWithMultipleCountries++
	}

	tags := h.copyTags(n.Tags, ele, countries)
	b := h.nodeWriter.BeginNode(n.ID, n.Lon, n.Lat)
	for _, tag := range tags {
		b.Tag(tag.Key, tag.Value)
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("rewrite: writing node %d: %w", n.ID, err)
	}
	h.Counters.NodesWritten++

	if h.interpolate {
		h.nodeIndex.Set(n.ID, loc)
	}
	return nil
}

// wayPruneTags drops only removal-matched keys, country, and (when
// elevation enrichment is on) ele, leaving everything else untouched (ways
// never gain ele/country overrides).
func (h *Handler) wayPruneTags(tags pbfio.Tags) pbfio.Tags {
	return h.copyTags(tags, NoData, nil)
}

// VisitWay rewrites one retained way, inserting synthetic interpolation
// nodes where elevation curvature exceeds the configured threshold
// (spec.md §4.5).
func (h *Handler) VisitWay(w *pbfio.Way) error {
	if w.ID < 0 || !h.validIDs.Ways.Get(w.ID) {
		return nil
	}

	tags := h.wayPruneTags(w.Tags)
	b := h.wrWriter.BeginWay(w.ID)
	for _, tag := range tags {
		b.Tag(tag.Key, tag.Value)
	}

	refs, err := h.wayRefs(w)
	if err != nil {
		return fmt.Errorf("rewrite: building node refs for way %d: %w", w.ID, err)
	}
	for _, ref := range refs {
		b.Ref(ref)
	}

	if err := b.Commit(); err != nil {
		return fmt.Errorf("rewrite: writing way %d: %w", w.ID, err)
	}
	h.Counters.WaysWritten++
	return nil
}

// wayRefs produces the node-reference list for w, applying the
// interpolation subroutine of spec.md §4.5 unless interpolation is
// disabled, the elevation service isn't initialized, or w is flagged
// no-elevation.
func (h *Handler) wayRefs(w *pbfio.Way) ([]int64, error) {
	if !h.interpolate || h.elevation == nil || !h.elevation.Initialized() || h.noElevation.Ways.Get(w.ID) {
		return append([]int64(nil), w.Nodes...), nil
	}

	refs := make([]int64, 0, len(w.Nodes))
	if len(w.Nodes) == 0 {
		return refs, nil
	}

	from := w.Nodes[0]
	for i := 1; i < len(w.Nodes); i++ {
		to := w.Nodes[i]

		fromLoc, ok1 := h.nodeIndex.Get(from)
		toLoc, ok2 := h.nodeIndex.Get(to)
		if i == 1 {
			refs = append(refs, from)
		}
		if !ok1 || !ok2 {
			refs = append(refs, to)
			from = to
			continue
		}

		samples := h.elevation.Interpolate(fromLoc, toLoc)
		for s := 1; s+1 < len(samples); s++ {
			a := samples[s-1].Ele
			b2 := samples[s+1].Ele
			c := samples[s]
			if c.Ele == NoData {
				continue
			}
			if absFloat(c.Ele-(a+b2)/2) >= h.threshold {
				id := h.nextSyntheticID
				h.nextSyntheticID++
				nb := h.nodeWriter.BeginNode(id, c.Location.Lon, c.Location.Lat)
				nb.Tag("ele", formatElevation(c.Ele))
				if err := nb.Commit(); err != nil {
					return nil, err
				}
				h.Counters.SyntheticNodesWritten++
				refs = append(refs, id)
			}
		}

		refs = append(refs, to)
		from = to
	}
	return refs, nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// VisitRelation rewrites one retained relation, copying its members
// verbatim and pruning its tags (spec.md §4.5).
func (h *Handler) VisitRelation(r *pbfio.Relation) error {
	if r.ID < 0 || !h.validIDs.Relations.Get(r.ID) {
		return nil
	}

	tags := h.wayPruneTags(r.Tags)
	b := h.wrWriter.BeginRelation(r.ID)
	for _, tag := range tags {
		b.Tag(tag.Key, tag.Value)
	}
	for _, m := range r.Members {
		b.Member(pbfio.Member{Type: m.Type, Ref: m.Ref, Role: m.Role})
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("rewrite: writing relation %d: %w", r.ID, err)
	}
	h.Counters.RelationsWritten++
	return nil
}

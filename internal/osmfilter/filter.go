// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package osmfilter implements the first-pass streaming visitor of
// spec.md §4.4: it classifies ways and relations and marks the transitive
// set of node ids that must survive into the rewrite pass.
package osmfilter

import (
	"regexp"

	"github.com/brawer/osm-transform/internal/ids"
	"github.com/brawer/osm-transform/internal/pbfio"
)

// DefaultRemoveTagPattern is the default tag-removal regex (spec.md §6
// --remove_tag), matched case-insensitively.
const DefaultRemoveTagPattern = `(.*:)?source(:.*)?|(.*:)?note(:.*)?|url|created_by|fixme|wikipedia`

// invalidating is the set of tag keys that, absent a validating tag, demote
// a way or relation to removable (spec.md §4.4).
var invalidating = map[string]bool{
	"building": true, "landuse": true, "boundary": true, "natural": true,
	"place": true, "waterway": true, "aeroway": true, "aviation": true,
	"military": true, "power": true, "communication": true, "man_made": true,
}

// noElevationKeys mark a way as unsuitable for interpolation when present
// with a value other than "no" (spec.md §4.4).
var noElevationKeys = map[string]bool{
	"bridge": true, "tunnel": true, "cutting": true, "indoor": true,
}

// isValidating reports whether tag (key, value) is a validating signal
// that forces retention of the enclosing way or relation (spec.md §4.4).
func isValidating(key, value string) bool {
	switch {
	case key == "highway":
		return true
	case key == "route":
		return true
	case key == "railway" && value == "platform":
		return true
	case key == "public_transport" && value == "platform":
		return true
	case key == "man_made" && value == "pier":
		return true
	}
	return false
}

// Handler is the first-pass visitor. It must be fed ways, then relations,
// in the scope returned by pbfio.ScopeWaysRelations; nodes are skipped
// entirely since this pass never needs coordinates.
type Handler struct {
	removeTag *regexp.Regexp

	ValidIDs    IDSets
	NoElevation NoElevationIDs
	WaysSeen    int
	WaysKept    int
	RelsSeen    int
	RelsKept    int
}

// IDSets groups the three id-set kinds one pass produces.
type IDSets struct {
	Nodes     *ids.Dense
	Ways      *ids.Dense
	Relations *ids.Dense
}

func newIDSets() IDSets {
	return IDSets{Nodes: ids.NewDense(), Ways: ids.NewDense(), Relations: ids.NewDense()}
}

// NoElevationIDs tracks the no_elevation node/way sets of spec.md §3. Ways
// are the minority of retained ways (only bridge/tunnel/cutting/indoor),
// so this uses IdSetSmall rather than the dense bitset valid_ids uses.
type NoElevationIDs struct {
	Nodes *ids.Dense
	Ways  *ids.Small
}

func newNoElevationIDs() NoElevationIDs {
	return NoElevationIDs{Nodes: ids.NewDense(), Ways: ids.NewSmall()}
}

// NewHandler returns a Handler that uses removeTagPattern (or
// DefaultRemoveTagPattern if empty) as the tag-removal regex.
func NewHandler(removeTagPattern string) (*Handler, error) {
	if removeTagPattern == "" {
		removeTagPattern = DefaultRemoveTagPattern
	}
	re, err := regexp.Compile("(?i)^(?:" + removeTagPattern + ")$")
	if err != nil {
		return nil, err
	}
	return &Handler{
		removeTag:   re,
		ValidIDs:    newIDSets(),
		NoElevation: newNoElevationIDs(),
	}, nil
}

// filteredTags returns the subset of tags whose key does not match the
// removal regex.
func (h *Handler) filteredTags(tags pbfio.Tags) pbfio.Tags {
	if len(tags) == 0 {
		return nil
	}
	out := make(pbfio.Tags, 0, len(tags))
	for _, tag := range tags {
		if !h.removeTag.MatchString(tag.Key) {
			out = append(out, tag)
		}
	}
	return out
}

// hasNoRelevantTags implements spec.md §4.4's has_no_relevant_tags
// predicate over the already-filtered tag view.
func hasNoRelevantTags(filtered pbfio.Tags) bool {
	if len(filtered) == 0 {
		return true
	}
	for _, tag := range filtered {
		if isValidating(tag.Key, tag.Value) {
			return false
		}
	}
	for _, tag := range filtered {
		if invalidating[tag.Key] {
			return true
		}
	}
	return false
}

// VisitNode is a no-op: the filter pass never visits nodes, since it reads
// with pbfio.ScopeWaysRelations. It exists so Handler satisfies
// pbfio.EntityVisitor and can share the driver's single dispatch loop with
// the rewrite pass.
func (h *Handler) VisitNode(n *pbfio.Node) error {
	return nil
}

// VisitWay classifies one way, recording its retained-ness and the
// transitive node ids it references (spec.md §4.4).
func (h *Handler) VisitWay(w *pbfio.Way) error {
	if w.ID < 0 {
		return nil
	}
	h.WaysSeen++

	filtered := h.filteredTags(w.Tags)
	removable := len(w.Nodes) < 2 || hasNoRelevantTags(filtered)
	if removable {
		return nil
	}
	h.WaysKept++

	h.ValidIDs.Ways.Set(w.ID)
	for _, ref := range w.Nodes {
		h.ValidIDs.Nodes.Set(ref)
	}

	if noElevationWay(w.Tags) {
		h.NoElevation.Ways.Set(w.ID)
		for _, ref := range w.Nodes {
			h.NoElevation.Nodes.Set(ref)
		}
	}
	return nil
}

// noElevationWay reports whether w carries a no-elevation tag with a value
// other than "no" (spec.md §4.4).
func noElevationWay(tags pbfio.Tags) bool {
	for _, tag := range tags {
		if noElevationKeys[tag.Key] && tag.Value != "no" {
			return true
		}
	}
	return false
}

// VisitRelation classifies one relation (spec.md §4.4). Ways referenced by
// relations are deliberately not transitively included.
func (h *Handler) VisitRelation(r *pbfio.Relation) error {
	if r.ID < 0 {
		return nil
	}
	h.RelsSeen++

	filtered := h.filteredTags(r.Tags)
	if hasNoRelevantTags(filtered) {
		return nil
	}
	h.RelsKept++

	h.ValidIDs.Relations.Set(r.ID)
	for _, m := range r.Members {
		if m.Type == pbfio.MemberNode {
			h.ValidIDs.Nodes.Set(m.Ref)
		}
	}
	return nil
}

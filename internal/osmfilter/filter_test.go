// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package osmfilter

import (
	"testing"

	"github.com/brawer/osm-transform/internal/pbfio"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler("")
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

// Scenario 1 in spec.md §8: a way with a validating tag is retained and its
// referenced nodes are marked.
func TestVisitWay_Highway(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    10,
		Nodes: []int64{101, 102},
		Tags:  pbfio.Tags{{Key: "highway", Value: "yes"}},
	})
	if !h.ValidIDs.Ways.Get(10) {
		t.Error("way 10 not retained")
	}
	if !h.ValidIDs.Nodes.Get(101) || !h.ValidIDs.Nodes.Get(102) {
		t.Error("referenced nodes not retained")
	}
}

// Scenario 4: a way with only an invalidating tag is removed.
func TestVisitWay_BuildingDemoted(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    20,
		Nodes: []int64{1, 2},
		Tags:  pbfio.Tags{{Key: "building", Value: "yes"}},
	})
	if h.ValidIDs.Ways.Get(20) {
		t.Error("way with only invalidating tags was retained")
	}
	if h.ValidIDs.Nodes.Get(1) || h.ValidIDs.Nodes.Get(2) {
		t.Error("nodes of a removed way were retained")
	}
}

func TestVisitWay_TooFewNodes(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    30,
		Nodes: []int64{1},
		Tags:  pbfio.Tags{{Key: "highway", Value: "yes"}},
	})
	if h.ValidIDs.Ways.Get(30) {
		t.Error("way with fewer than 2 node refs was retained")
	}
}

func TestVisitWay_EmptyFilteredTagsRemoved(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    40,
		Nodes: []int64{1, 2},
		Tags:  pbfio.Tags{{Key: "fixme", Value: "check this"}},
	})
	if h.ValidIDs.Ways.Get(40) {
		t.Error("way whose only tag is removable was retained")
	}
}

// Scenario 6: a way with highway + tunnel is retained and flagged
// no-elevation, with all its nodes marked no-elevation too.
func TestVisitWay_NoElevationPropagation(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    50,
		Nodes: []int64{1, 2, 3},
		Tags: pbfio.Tags{
			{Key: "highway", Value: "primary"},
			{Key: "tunnel", Value: "yes"},
		},
	})
	if !h.ValidIDs.Ways.Get(50) {
		t.Fatal("way not retained")
	}
	if !h.NoElevation.Ways.Get(50) {
		t.Error("way not flagged no-elevation")
	}
	for _, n := range []int64{1, 2, 3} {
		if !h.NoElevation.Nodes.Get(n) {
			t.Errorf("node %d not flagged no-elevation", n)
		}
	}
}

func TestVisitWay_TunnelNoValueDoesNotFlag(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{
		ID:    51,
		Nodes: []int64{1, 2},
		Tags: pbfio.Tags{
			{Key: "highway", Value: "primary"},
			{Key: "tunnel", Value: "no"},
		},
	})
	if h.NoElevation.Ways.Get(51) {
		t.Error("tunnel=no incorrectly flagged way as no-elevation")
	}
}

func TestVisitRelation_NodeMembersOnly(t *testing.T) {
	h := newHandler(t)
	h.VisitRelation(&pbfio.Relation{
		ID: 5,
		Members: []pbfio.Member{
			{Type: pbfio.MemberNode, Ref: 1},
			{Type: pbfio.MemberWay, Ref: 100},
		},
		Tags: pbfio.Tags{{Key: "route", Value: "bus"}},
	})
	if !h.ValidIDs.Relations.Get(5) {
		t.Error("relation not retained")
	}
	if !h.ValidIDs.Nodes.Get(1) {
		t.Error("node member not retained")
	}
	if h.ValidIDs.Ways.Get(100) {
		t.Error("way member was transitively retained, spec says it should not be")
	}
}

func TestRemoveTagRegex_CaseInsensitive(t *testing.T) {
	h := newHandler(t)
	filtered := h.filteredTags(pbfio.Tags{
		{Key: "fixme", Value: "name"},
		{Key: "FIXME", Value: "yes"},
		{Key: "FixME", Value: "check"},
		{Key: "highway", Value: "residential"},
	})
	if len(filtered) != 1 || filtered[0].Key != "highway" {
		t.Errorf("filteredTags = %v, want only highway", filtered)
	}
}

func TestNegativeIDsIgnored(t *testing.T) {
	h := newHandler(t)
	h.VisitWay(&pbfio.Way{ID: -1, Nodes: []int64{1, 2}, Tags: pbfio.Tags{{Key: "highway", Value: "yes"}}})
	if h.WaysSeen != 0 {
		t.Error("negative-id way was visited")
	}
}

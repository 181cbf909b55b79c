// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package elevation

import "testing"

func TestTileIndex_QueryPointOrdersByPriority(t *testing.T) {
	idx := newTileIndex()
	idx.insert(0, 0, 10, 10, 1.0, "coarse.tif")
	idx.insert(0, 0, 10, 10, 0.1, "fine.tif")
	idx.insert(0, 0, 10, 10, 0.5, "medium.tif")

	matches := idx.queryPoint(5, 5)
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].filename != "fine.tif" {
		t.Errorf("best match = %s, want fine.tif", matches[0].filename)
	}
	if matches[len(matches)-1].filename != "coarse.tif" {
		t.Errorf("worst match = %s, want coarse.tif", matches[len(matches)-1].filename)
	}
}

func TestTileIndex_QueryPointOutsideBBox(t *testing.T) {
	idx := newTileIndex()
	idx.insert(0, 0, 1, 1, 0.1, "a.tif")
	if matches := idx.queryPoint(10, 10); len(matches) != 0 {
		t.Errorf("got %d matches outside bbox, want 0", len(matches))
	}
}

func TestTileIndex_QueryBBoxIntersection(t *testing.T) {
	idx := newTileIndex()
	idx.insert(0, 0, 5, 5, 0.1, "a.tif")
	idx.insert(100, 100, 101, 101, 0.1, "far.tif")

	matches := idx.queryBBox(-1, -1, 1, 1)
	if len(matches) != 1 || matches[0].filename != "a.tif" {
		t.Errorf("queryBBox() = %v, want only a.tif", matches)
	}
}

// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package elevation

import (
	"github.com/tidwall/rtree"
)

// tileEntry is spec.md §3's TileEntry: a tile's bbox, resolution priority
// and filename, as stored in the R-tree.
type tileEntry struct {
	filename string
	priority float64
}

// tileIndex is the R-tree spatial index of TileEntry values (spec.md §3,
// §4.2).
type tileIndex struct {
	tree rtree.RTreeG[tileEntry]
}

func newTileIndex() *tileIndex {
	return &tileIndex{}
}

func (idx *tileIndex) insert(minLon, minLat, maxLon, maxLat, priority float64, filename string) {
	idx.tree.Insert(
		[2]float64{minLon, minLat},
		[2]float64{maxLon, maxLat},
		tileEntry{filename: filename, priority: priority},
	)
}

// queryPoint returns every tile entry whose bbox contains (lon, lat),
// sorted by ascending priority so the finest-resolution tile is first
// (spec.md §4.2 elevation step 1-2).
func (idx *tileIndex) queryPoint(lon, lat float64) []tileEntry {
	return idx.queryBBox(lon, lat, lon, lat)
}

// queryBBox returns every tile entry whose bbox intersects the given
// envelope, sorted by ascending priority (spec.md §4.2 interpolate step 2).
func (idx *tileIndex) queryBBox(minLon, minLat, maxLon, maxLat float64) []tileEntry {
	var matches []tileEntry
	idx.tree.Search(
		[2]float64{minLon, minLat},
		[2]float64{maxLon, maxLat},
		func(min, max [2]float64, data tileEntry) bool {
			matches = append(matches, data)
			return true
		},
	)
	sortByPriority(matches)
	return matches
}

// sortByPriority sorts ascending by priority; ties keep traversal order
// (spec.md §3 "ties are broken by R-tree traversal order").
func sortByPriority(entries []tileEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].priority < entries[j-1].priority; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

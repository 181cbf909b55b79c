// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package rewrite

// Location is a WGS84 coordinate pair in degrees.
type Location struct {
	Lon, Lat float64
}

// NodeLocationIndex maps surviving node ids to their location, populated
// during the rewrite pass and consulted when emitting the way that
// references them (spec.md §3, §9 "pluggable by --index_type").
type NodeLocationIndex interface {
	Set(id int64, loc Location)
	Get(id int64) (Location, bool)
}

// FlexMemIndex is the default NodeLocationIndex: an in-memory Go map keyed
// by node id, named after the --index_type=flex_mem CLI option (spec.md §6,
// §9). It is a hash map, not a dense array indexed by id; memory grows with
// the number of stored nodes.
type FlexMemIndex struct {
	locations map[int64]Location
}

// NewFlexMemIndex returns an empty FlexMemIndex.
func NewFlexMemIndex() *FlexMemIndex {
	return &FlexMemIndex{locations: make(map[int64]Location)}
}

func (idx *FlexMemIndex) Set(id int64, loc Location) {
	idx.locations[id] = loc
}

func (idx *FlexMemIndex) Get(id int64) (Location, bool) {
	loc, ok := idx.locations[id]
	return loc, ok
}

// NewIndex builds the NodeLocationIndex backend named by indexType
// (spec.md §6 --index_type). Unknown names fall back to flex_mem.
func NewIndex(indexType string) NodeLocationIndex {
	switch indexType {
	case "", "flex_mem":
		return NewFlexMemIndex()
	default:
		return NewFlexMemIndex()
	}
}

// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package ids provides the ID-set containers used to track which OSM nodes,
// ways and relations survive filtering. Node ids in a planet-scale PBF file
// run up to about 2^40, so the dense set grows its backing storage lazily in
// 64-bit words instead of pre-allocating a bit per possible id.
package ids

// Dense is a set of non-negative 64-bit ids, backed by a growable slice of
// words. Memory scales with the largest id that has been set, not with the
// id space's theoretical upper bound.
type Dense struct {
	words []uint64
	count int
}

// NewDense returns an empty Dense set.
func NewDense() *Dense {
	return &Dense{}
}

// Set marks id as present. Negative ids are ignored, matching the rule in
// spec.md §4.4/§4.5 that only ids >= 0 participate in filtering.
func (d *Dense) Set(id int64) {
	if id < 0 {
		return
	}
	word, bit := id/64, uint(id%64)
	if int(word) >= len(d.words) {
		grown := make([]uint64, word+1)
		copy(grown, d.words)
		d.words = grown
	}
	mask := uint64(1) << bit
	if d.words[word]&mask == 0 {
		d.words[word] |= mask
		d.count++
	}
}

// Get reports whether id has been marked present.
func (d *Dense) Get(id int64) bool {
	if id < 0 {
		return false
	}
	word, bit := id/64, uint(id%64)
	if int(word) >= len(d.words) {
		return false
	}
	return d.words[word]&(uint64(1)<<bit) != 0
}

// Size returns the number of distinct ids that have been set.
func (d *Dense) Size() int {
	return d.count
}

// Bytes returns the approximate memory footprint of the backing storage, in
// bytes. Used by callers that want to report resource usage.
func (d *Dense) Bytes() int {
	return len(d.words) * 8
}

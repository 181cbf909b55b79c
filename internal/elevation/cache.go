// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package elevation

import (
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheLimitBytes is the default --cache_limit (spec.md §6).
const DefaultCacheLimitBytes = 1 << 30 // 1,073,741,824

// tileCache is the byte-budgeted LRU of opened rasters described in
// spec.md §4.2 "Cache discipline". It wraps hashicorp/golang-lru's plain
// LRU (which evicts by entry count) with an explicit byte-budget loop,
// since eviction here must track file size, not entry count.
type tileCache struct {
	lru         *lru.LRU[string, *RasterTile]
	fileSize    map[string]int64
	usedBytes   int64
	limitBytes  int64
}

func newTileCache(limitBytes int64) (*tileCache, error) {
	if limitBytes <= 0 {
		limitBytes = DefaultCacheLimitBytes
	}
	tc := &tileCache{fileSize: make(map[string]int64), limitBytes: limitBytes}
	l, err := lru.NewLRU[string, *RasterTile](1<<30, tc.onEvict)
	if err != nil {
		return nil, err
	}
	tc.lru = l
	return tc, nil
}

// onEvict is called by the underlying LRU whenever an entry is removed,
// whether by our own RemoveOldest() calls or an explicit Remove.
func (tc *tileCache) onEvict(filename string, tile *RasterTile) {
	if size, ok := tc.fileSize[filename]; ok {
		tc.usedBytes -= size
	}
	if tile != nil {
		tile.Close()
	}
}

// Get returns the cached tile for filename, moving it to the front of the
// LRU, or (nil, false) if it's not cached.
func (tc *tileCache) Get(filename string) (*RasterTile, bool) {
	return tc.lru.Get(filename)
}

// Put inserts tile under filename with the given file size, evicting from
// the back of the LRU until the budget is respected (spec.md §4.2 step 3).
func (tc *tileCache) Put(filename string, tile *RasterTile, size int64) {
	for tc.lru.Len() > 0 && tc.usedBytes+size > tc.limitBytes {
		tc.lru.RemoveOldest()
	}
	tc.fileSize[filename] = size
	tc.usedBytes += size
	tc.lru.Add(filename, tile)
}

// Len returns the number of cached rasters.
func (tc *tileCache) Len() int {
	return tc.lru.Len()
}

// UsedBytes returns the current total cached raster byte count.
func (tc *tileCache) UsedBytes() int64 {
	return tc.usedBytes
}

// Close evicts every entry, closing all cached raster handles.
func (tc *tileCache) Close() {
	for tc.lru.Len() > 0 {
		tc.lru.RemoveOldest()
	}
}

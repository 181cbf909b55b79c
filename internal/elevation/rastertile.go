// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package elevation implements spec.md §4.1/§4.2: the raster-tile wrapper,
// the R-tree spatial index of tiles, the byte-budgeted LRU of opened
// rasters, and point/segment elevation queries.
package elevation

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

// NoData is the elevation sentinel of spec.md §4.1 and the GLOSSARY.
const NoData = -32768.0

var registerOnce sync.Once

// registerDrivers performs the GDAL driver registration exactly once per
// process (spec.md §9 "Global registries").
func registerDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

// RasterTile is an open GeoTIFF, answering point queries in WGS84
// (spec.md §4.1).
type RasterTile struct {
	ds     *godal.Dataset
	band   godal.Band
	width  int
	height int

	// geoTransform holds the six affine terms T0..T5; T2 and T4 are
	// assumed zero (north-up), per spec.md §4.1.
	geoTransform [6]float64

	hasNoData   bool
	noDataValue float64

	// toNative transforms WGS84 (lon, lat) into this tile's native CRS,
	// axis-order-traditional, prepared once at open time (spec.md §4.1
	// step 1). toWGS84 is its inverse, used once at open time to compute
	// the tile's WGS84 bounding box from its native-CRS pixel corners.
	toNative *godal.Transform
	toWGS84  *godal.Transform

	minLon, minLat, maxLon, maxLat float64
	priority                       float64
}

// Open opens the GeoTIFF at path and prepares it for point queries.
func Open(path string) (*RasterTile, error) {
	registerDrivers()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elevation: opening %s: %w", path, err)
	}

	structure := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("elevation: %s has no raster bands", path)
	}
	band := bands[0]

	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("elevation: %s has no geo transform: %w", path, err)
	}

	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		ds.Close()
		return nil, err
	}
	defer wgs84.Close()
	wgs84.SetAxisMappingStrategy(godal.AxisMappingStrategy(godal.TraditionalAxisMapping))

	native := ds.SpatialRef()
	native.SetAxisMappingStrategy(godal.AxisMappingStrategy(godal.TraditionalAxisMapping))

	toNative, err := godal.NewTransform(wgs84, native)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("elevation: %s: building WGS84->native transform: %w", path, err)
	}
	toWGS84, err := godal.NewTransform(native, wgs84)
	if err != nil {
		toNative.Close()
		ds.Close()
		return nil, fmt.Errorf("elevation: %s: building native->WGS84 transform: %w", path, err)
	}

	t := &RasterTile{
		ds:           ds,
		band:         band,
		width:        structure.SizeX,
		height:       structure.SizeY,
		geoTransform: [6]float64{gt[0], gt[1], gt[2], gt[3], gt[4], gt[5]},
		toNative:     toNative,
		toWGS84:      toWGS84,
	}
	if nd, ok := band.NoData(); ok {
		t.hasNoData = true
		t.noDataValue = nd
	}

	if err := t.computeBounds(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// computeBounds transforms the tile's four corners from its native CRS
// into WGS84 and records the bounding box and priority (spec.md §4.2
// load).
func (t *RasterTile) computeBounds() error {
	corners := [][2]float64{
		t.pixelToNative(0, 0),
		t.pixelToNative(float64(t.width), 0),
		t.pixelToNative(0, float64(t.height)),
		t.pixelToNative(float64(t.width), float64(t.height)),
	}

	lons := make([]float64, len(corners))
	lats := make([]float64, len(corners))
	for i, c := range corners {
		lons[i] = c[0]
		lats[i] = c[1]
	}
	if err := t.toWGS84.TransformEx(lons, lats, nil, nil); err != nil {
		return fmt.Errorf("elevation: transforming tile corners: %w", err)
	}

	minLon, maxLon := lons[0], lons[0]
	minLat, maxLat := lats[0], lats[0]
	for i := 1; i < len(lons); i++ {
		minLon = min(minLon, lons[i])
		maxLon = max(maxLon, lons[i])
		minLat = min(minLat, lats[i])
		maxLat = max(maxLat, lats[i])
	}
	t.minLon, t.maxLon = minLon, maxLon
	t.minLat, t.maxLat = minLat, maxLat

	stepLon := absF((maxLon - minLon) / float64(t.width))
	stepLat := absF((maxLat - minLat) / float64(t.height))
	t.priority = min(stepLon, stepLat)
	if t.priority <= 0 {
		t.priority = 1e-9
	}
	return nil
}

func (t *RasterTile) pixelToNative(px, py float64) [2]float64 {
	gt := t.geoTransform
	return [2]float64{gt[0] + gt[1]*px, gt[3] + gt[5]*py}
}

// Bounds returns the tile's WGS84 bounding box.
func (t *RasterTile) Bounds() (minLon, minLat, maxLon, maxLat float64) {
	return t.minLon, t.minLat, t.maxLon, t.maxLat
}

// Priority returns the tile's resolution priority: the minimum absolute
// pixel step in degrees, smaller meaning finer (spec.md §4.2, GLOSSARY).
func (t *RasterTile) Priority() float64 {
	return t.priority
}

// Sample implements spec.md §4.1's sample(lon, lat) contract.
func (t *RasterTile) Sample(lon, lat float64) float64 {
	lons := []float64{lon}
	lats := []float64{lat}
	if err := t.toNative.TransformEx(lons, lats, nil, nil); err != nil {
		return NoData
	}
	nativeLon, nativeLat := lons[0], lats[0]

	gt := t.geoTransform
	x := int(floorF((nativeLon - gt[0]) / gt[1]))
	y := int(floorF((nativeLat - gt[3]) / gt[5]))

	if x < -1 || x > t.width || y < -1 || y > t.height {
		return NoData
	}
	x = clampInt(x, 0, t.width-1)
	y = clampInt(y, 0, t.height-1)

	buf := make([]float64, 1)
	if err := t.band.Read(x, y, buf, 1, 1); err != nil {
		return NoData
	}
	pixel := buf[0]
	if t.hasNoData && pixel <= t.noDataValue {
		return NoData
	}
	return pixel
}

// Close releases the underlying GDAL dataset handle.
func (t *RasterTile) Close() {
	if t.toNative != nil {
		t.toNative.Close()
	}
	if t.toWGS84 != nil {
		t.toWGS84.Close()
	}
	if t.ds != nil {
		t.ds.Close()
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func floorF(v float64) float64 {
	i := int64(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return float64(i)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

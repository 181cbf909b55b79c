// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package area

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// GeoType selects the geometry encoding of the area-mapping CSV's geometry
// column (spec.md §6 --area_mapping_geo_type).
type GeoType string

const (
	GeoTypeWKT     GeoType = "wkt"
	GeoTypeGeoJSON GeoType = "geojson"
)

// validateGeoField implements spec.md §4.3 load step 2's geometry field
// validation: for WKT, the field must start with MULTIPOLYGON or POLYGON;
// for GeoJSON, it must look like a JSON object.
func validateGeoField(geoType GeoType, field string) bool {
	trimmed := strings.TrimSpace(field)
	switch geoType {
	case GeoTypeWKT:
		upper := strings.ToUpper(trimmed)
		return strings.HasPrefix(upper, "MULTIPOLYGON") || strings.HasPrefix(upper, "POLYGON")
	case GeoTypeGeoJSON:
		return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
	default:
		return false
	}
}

// parseGeometry parses field as the geometry encoding named by geoType
// into a slice of polygons (a MultiPolygon is flattened to its members).
func parseGeometry(geoType GeoType, field string) ([]orb.Polygon, error) {
	var geom orb.Geometry
	switch geoType {
	case GeoTypeWKT:
		g, err := wkt.Unmarshal(field)
		if err != nil {
			return nil, fmt.Errorf("area: parsing WKT: %w", err)
		}
		geom = g
	case GeoTypeGeoJSON:
		g, err := geojson.UnmarshalGeometry([]byte(field))
		if err != nil {
			return nil, fmt.Errorf("area: parsing GeoJSON: %w", err)
		}
		geom = g.Geometry()
	default:
		return nil, fmt.Errorf("area: unknown geo type %q", geoType)
	}

	switch g := geom.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}, nil
	case orb.MultiPolygon:
		return []orb.Polygon(g), nil
	default:
		return nil, fmt.Errorf("area: geometry is %T, want Polygon or MultiPolygon", geom)
	}
}

// polygonsIntersectCell reports whether any of polys overlaps cell's
// bounding square (spec.md §4.3 add_area: "cell.intersects(geometry)").
// A full polygon clip isn't available in this program's dependency set,
// so intersection is approximated by bbox overlap plus two probes: a cell
// corner inside a polygon, or a polygon vertex inside the cell. A cell
// that a polygon edge crosses with neither probe true (e.g. a thin strip
// passing through the cell) is not detected. No clipped geometry is kept:
// get_area evaluates point-in-polygon containment against the *original*
// polygon (see service.go).
func polygonsIntersectCell(polys []orb.Polygon, cell orb.Polygon) bool {
	cellBound := cell.Bound()
	for _, p := range polys {
		if !p.Bound().Intersects(cellBound) {
			continue
		}
		for _, pt := range cell[0] {
			if planar.PolygonContains(p, pt) {
				return true
			}
		}
		for _, ring := range p {
			for _, pt := range ring {
				if cellBound.Contains(pt) {
					return true
				}
			}
		}
	}
	return false
}

// polygonsContainCell reports whether polys fully contain cell, i.e. every
// corner of the cell is inside the polygon set (spec.md §4.3 add_area:
// "geometry.contains(cell)").
func polygonsContainCell(polys []orb.Polygon, cell orb.Polygon) bool {
	for _, pt := range cell[0][:4] {
		contained := false
		for _, p := range polys {
			if planar.PolygonContains(p, pt) {
				contained = true
				break
			}
		}
		if !contained {
			return false
		}
	}
	return true
}

// polygonsContainPoint reports whether any polygon in polys contains pt.
func polygonsContainPoint(polys []orb.Polygon, pt orb.Point) bool {
	for _, p := range polys {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

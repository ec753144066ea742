// Package geometry wraps go-geom geometries behind a small Shape type
// with GeoJSON/EWKB codecs and planar distance queries.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Shape is an immutable queryable geometry: a Point, Polygon, or
// MultiPolygon in WGS84 lon/lat degrees.
type Shape struct {
	g geom.T
}

// New wraps an existing go-geom geometry.
func New(g geom.T) (*Shape, error) {
	switch g.(type) {
	case *geom.Point, *geom.Polygon, *geom.MultiPolygon:
		return &Shape{g: g}, nil
	default:
		return nil, eris.Errorf("geometry: unsupported geometry type %T", g)
	}
}

// FromGeoJSON decodes a nested GeoJSON geometry object (not a feature).
func FromGeoJSON(data []byte) (*Shape, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}
	setSRID(g, 4326)
	return New(g)
}

// FromEWKB decodes geometry bytes previously produced by EWKB.
func FromEWKB(data []byte) (*Shape, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode ewkb")
	}
	return New(g)
}

// EWKB encodes the shape for storage with SRID 4326.
func (s *Shape) EWKB() ([]byte, error) {
	data, err := ewkb.Marshal(s.g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode ewkb")
	}
	return data, nil
}

// Geom returns the underlying go-geom geometry.
func (s *Shape) Geom() geom.T { return s.g }

// Type returns the GeoJSON type name of the geometry.
func (s *Shape) Type() string {
	switch s.g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	default:
		return "Unknown"
	}
}

func setSRID(g geom.T, srid int) {
	switch t := g.(type) {
	case *geom.Point:
		t.SetSRID(srid)
	case *geom.Polygon:
		t.SetSRID(srid)
	case *geom.MultiPolygon:
		t.SetSRID(srid)
	}
}

// polygons returns the component polygons, or nil for a point.
func (s *Shape) polygons() []*geom.Polygon {
	switch t := s.g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
		return polys
	default:
		return nil
	}
}

// rings returns every linear ring of the shape as flat XY coordinates.
// A point is returned as a degenerate single-coordinate ring.
func (s *Shape) rings() [][]float64 {
	if p, ok := s.g.(*geom.Point); ok {
		return [][]float64{{p.X(), p.Y()}}
	}
	var out [][]float64
	for _, poly := range s.polygons() {
		for i := 0; i < poly.NumLinearRings(); i++ {
			out = append(out, poly.LinearRing(i).FlatCoords())
		}
	}
	return out
}

// Contains reports whether the point (x, y) lies inside the shape.
// Holes are honored; points never contain anything.
func (s *Shape) Contains(x, y float64) bool {
	for _, poly := range s.polygons() {
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !pointInRing(x, y, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < poly.NumLinearRings(); i++ {
			if pointInRing(x, y, poly.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

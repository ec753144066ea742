package geometry

import "math"

// DistanceTo returns the minimum planar distance in degrees between the
// two shapes. Overlapping or touching shapes have distance 0. go-geom
// supplies the geometry model and codecs but no polygon-to-polygon
// distance, so the kernel is computed here over flat ring coordinates.
func (s *Shape) DistanceTo(o *Shape) float64 {
	if s == nil || o == nil {
		return math.Inf(1)
	}

	// Full containment leaves no boundary pair at distance 0, so check
	// a representative vertex of each shape against the other first.
	if x, y, ok := firstVertex(o); ok && s.Contains(x, y) {
		return 0
	}
	if x, y, ok := firstVertex(s); ok && o.Contains(x, y) {
		return 0
	}

	min := math.Inf(1)
	for _, ra := range s.rings() {
		for _, rb := range o.rings() {
			if d := ringDistance(ra, rb); d < min {
				min = d
				if min == 0 {
					return 0
				}
			}
		}
	}
	return min
}

func firstVertex(s *Shape) (float64, float64, bool) {
	for _, r := range s.rings() {
		if len(r) >= 2 {
			return r[0], r[1], true
		}
	}
	return 0, 0, false
}

// ringDistance computes the minimum distance between two flat XY rings.
// Degenerate rings with a single coordinate are treated as points.
func ringDistance(a, b []float64) float64 {
	if len(a) == 2 && len(b) == 2 {
		return math.Hypot(a[0]-b[0], a[1]-b[1])
	}
	if len(a) == 2 {
		return pointRingDistance(a[0], a[1], b)
	}
	if len(b) == 2 {
		return pointRingDistance(b[0], b[1], a)
	}

	min := math.Inf(1)
	for i := 0; i+3 < len(a); i += 2 {
		for j := 0; j+3 < len(b); j += 2 {
			d := segmentDistance(
				a[i], a[i+1], a[i+2], a[i+3],
				b[j], b[j+1], b[j+2], b[j+3],
			)
			if d < min {
				min = d
				if min == 0 {
					return 0
				}
			}
		}
	}
	return min
}

func pointRingDistance(x, y float64, ring []float64) float64 {
	min := math.Inf(1)
	for i := 0; i+3 < len(ring); i += 2 {
		d := pointSegmentDistance(x, y, ring[i], ring[i+1], ring[i+2], ring[i+3])
		if d < min {
			min = d
		}
	}
	if len(ring) == 2 {
		return math.Hypot(x-ring[0], y-ring[1])
	}
	return min
}

// pointSegmentDistance projects (px, py) onto the segment (x1,y1)-(x2,y2)
// and returns the distance to the clamped projection.
func pointSegmentDistance(px, py, x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	if dx == 0 && dy == 0 {
		return math.Hypot(px-x1, py-y1)
	}
	t := ((px-x1)*dx + (py-y1)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(x1+t*dx), py-(y1+t*dy))
}

// segmentDistance returns the minimum distance between two segments.
// Properly crossing segments are at distance 0.
func segmentDistance(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) float64 {
	if segmentsIntersect(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2) {
		return 0
	}
	d := pointSegmentDistance(ax1, ay1, bx1, by1, bx2, by2)
	if v := pointSegmentDistance(ax2, ay2, bx1, by1, bx2, by2); v < d {
		d = v
	}
	if v := pointSegmentDistance(bx1, by1, ax1, ay1, ax2, ay2); v < d {
		d = v
	}
	if v := pointSegmentDistance(bx2, by2, ax1, ay1, ax2, ay2); v < d {
		d = v
	}
	return d
}

func segmentsIntersect(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) bool {
	d1 := cross(bx1, by1, bx2, by2, ax1, ay1)
	d2 := cross(bx1, by1, bx2, by2, ax2, ay2)
	d3 := cross(ax1, ay1, ax2, ay2, bx1, by1)
	d4 := cross(ax1, ay1, ax2, ay2, bx2, by2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(ox, oy, ax, ay, bx, by float64) float64 {
	return (ax-ox)*(by-oy) - (bx-ox)*(ay-oy)
}

// pointInRing reports whether (x, y) is inside the ring using the
// even-odd ray casting rule.
func pointInRing(x, y float64, ring []float64) bool {
	inside := false
	n := len(ring) / 2
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[2*i], ring[2*i+1]
		xj, yj := ring[2*j], ring[2*j+1]
		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// Mean Earth radius in meters, consistent with the s2 unit sphere model.
const earthRadiusMeters = 6371008.8

// Rings smaller than this are treated as degenerate at construction time.
const minRingAreaM2 = 1.0

// Tolerance in degrees for on-edge containment checks. Roughly a
// centimeter at the equator, far below GNSS photo-center accuracy.
const edgeEpsilonDeg = 1e-7

// NewRing validates a vertex sequence and returns a Ring. A trailing
// vertex equal to the first is dropped (KML rings arrive closed). The
// ring must have at least 3 distinct vertices, valid coordinates, no
// self-intersections and a non-degenerate area; anything else is a
// GeometryError.
func NewRing(vertices []Point) (Ring, error) {
	pts := make([]Point, len(vertices))
	copy(pts, vertices)

	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	distinct := dedupeConsecutive(pts)
	if len(distinct) < 3 {
		return Ring{}, &GeometryError{Reason: "ring needs at least 3 distinct vertices"}
	}
	for _, p := range distinct {
		if !isValidCoordinate(p) {
			return Ring{}, &GeometryError{Reason: "vertex outside valid coordinate range"}
		}
	}
	if selfIntersects(distinct) {
		return Ring{}, &GeometryError{Reason: "ring is self-intersecting"}
	}

	areaM2 := sphericalAreaM2(distinct)
	if areaM2 < minRingAreaM2 {
		return Ring{}, &GeometryError{Reason: "ring area is degenerate"}
	}

	return Ring{vertices: distinct, areaHa: areaM2 / 1e4}, nil
}

// Contains reports whether p lies inside the ring, using ray casting.
// Boundary points count as inside: captures shot exactly on a planned
// boundary must not be under-counted near the completion threshold.
func (r Ring) Contains(p Point) bool {
	n := len(r.vertices)
	if n < 3 {
		return false
	}

	// Edge-exact captures first; the crossing test below is exclusive
	// on some boundary orientations.
	j := n - 1
	for i := 0; i < n; i++ {
		if onSegment(p, r.vertices[i], r.vertices[j], edgeEpsilonDeg) {
			return true
		}
		j = i
	}

	inside := false
	j = n - 1
	for i := 0; i < n; i++ {
		vi, vj := r.vertices[i], r.vertices[j]
		if (vi.Longitude > p.Longitude) != (vj.Longitude > p.Longitude) {
			cross := (vj.Latitude-vi.Latitude)*(p.Longitude-vi.Longitude)/(vj.Longitude-vi.Longitude) + vi.Latitude
			if p.Latitude < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the arithmetic mean of the ring's vertices. Good
// enough for map markers; not an area-weighted centroid.
func (r Ring) Centroid() Point {
	var sumLat, sumLng float64
	for _, v := range r.vertices {
		sumLat += v.Latitude
		sumLng += v.Longitude
	}
	n := float64(len(r.vertices))
	return Point{Latitude: sumLat / n, Longitude: sumLng / n}
}

// Haversine calculates the great-circle distance between two points in meters.
func Haversine(p1, p2 Point) float64 {
	lat1 := p1.Latitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	dlat := (p2.Latitude - p1.Latitude) * math.Pi / 180
	dlng := (p2.Longitude - p1.Longitude) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// sphericalAreaM2 computes the ring's area on the sphere via s2's loop
// area, orientation-independent.
func sphericalAreaM2(vertices []Point) float64 {
	pts := make([]s2.Point, len(vertices))
	for i, v := range vertices {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(v.Latitude, v.Longitude))
	}
	steradians := s2.LoopFromPoints(pts).Area()
	// A clockwise ring yields the complement of the enclosed area.
	if steradians > 2*math.Pi {
		steradians = 4*math.Pi - steradians
	}
	return steradians * earthRadiusMeters * earthRadiusMeters
}

// dedupeConsecutive removes consecutive duplicate vertices, preserving order.
func dedupeConsecutive(pts []Point) []Point {
	out := pts[:0:0]
	for _, p := range pts {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

// selfIntersects checks every pair of non-adjacent ring edges for a
// proper crossing. O(n^2), fine for boundary rings of a few hundred
// vertices.
func selfIntersects(vertices []Point) bool {
	n := len(vertices)
	for i := 0; i < n; i++ {
		a1 := vertices[i]
		a2 := vertices[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges sharing a vertex with edge i.
			if j == i || (j+1)%n == i || j == (i+1)%n {
				continue
			}
			b1 := vertices[j]
			b2 := vertices[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing between segments a1-a2 and
// b1-b2, treating lat/lng as planar coordinates.
func segmentsCross(a1, a2, b1, b2 Point) bool {
	d1 := direction(b1, b2, a1)
	d2 := direction(b1, b2, a2)
	d3 := direction(a1, a2, b1)
	d4 := direction(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// direction returns the orientation of point p relative to segment a-b.
func direction(a, b, p Point) float64 {
	return (b.Longitude-a.Longitude)*(p.Latitude-a.Latitude) -
		(b.Latitude-a.Latitude)*(p.Longitude-a.Longitude)
}

// onSegment reports whether p lies on segment a-b within eps degrees.
func onSegment(p, a, b Point, eps float64) bool {
	if p.Latitude < math.Min(a.Latitude, b.Latitude)-eps ||
		p.Latitude > math.Max(a.Latitude, b.Latitude)+eps ||
		p.Longitude < math.Min(a.Longitude, b.Longitude)-eps ||
		p.Longitude > math.Max(a.Longitude, b.Longitude)+eps {
		return false
	}
	return math.Abs(direction(a, b, p)) <= eps*math.Max(1, math.Abs(b.Latitude-a.Latitude)+math.Abs(b.Longitude-a.Longitude))
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

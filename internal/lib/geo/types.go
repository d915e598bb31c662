package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Ring is a simple closed polygon ring in geographic coordinates.
// Construct with NewRing, which validates the ring and caches its area,
// so invalid rings never enter the pipeline.
type Ring struct {
	vertices []Point
	areaHa   float64
}

// Vertices returns the ring's vertex sequence without the closing vertex.
// The returned slice must not be mutated.
func (r Ring) Vertices() []Point {
	return r.vertices
}

// AreaHectares returns the spherical area of the ring in hectares,
// computed once at construction.
func (r Ring) AreaHectares() float64 {
	return r.areaHa
}

// GeometryError indicates a degenerate or self-intersecting polygon ring.
// The affected polygon is excluded from the run; other polygons proceed.
type GeometryError struct {
	PolygonID string
	Reason    string
}

func (e *GeometryError) Error() string {
	if e.PolygonID == "" {
		return "invalid geometry: " + e.Reason
	}
	return "invalid geometry for polygon " + e.PolygonID + ": " + e.Reason
}

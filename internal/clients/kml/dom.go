package kml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/temapeo/surveytrack/internal/lib/geo"
)

// Minimal KML DOM for decoding boundary deliveries. Tags match on local
// names only, so namespaced and namespace-free exports both parse.
// (twpayne/go-kml is encode-only; see the export side in services.)

type kmlRoot struct {
	Document   kmlContainer   `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlContainer struct {
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name          string            `xml:"name"`
	ExtendedData  kmlExtendedData   `xml:"ExtendedData"`
	Polygons      []kmlPolygon      `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlMultiGeometry struct {
	Polygons []kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	OuterCoordinates string `xml:"outerBoundaryIs>LinearRing>coordinates"`
}

type kmlExtendedData struct {
	Data       []kmlData       `xml:"Data"`
	SchemaData []kmlSchemaData `xml:"SchemaData"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlSchemaData struct {
	SimpleData []kmlSimpleData `xml:"SimpleData"`
}

type kmlSimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// collectPlacemarks gathers placemarks from a container and its nested
// folders, in document order.
func collectPlacemarks(c kmlContainer, out *[]kmlPlacemark) {
	*out = append(*out, c.Placemarks...)
	for _, f := range c.Folders {
		collectPlacemarks(f, out)
	}
}

// metadata flattens SimpleData and Data/value entries into an
// upper-cased key map, matching how survey deliveries tag attributes.
func (pm kmlPlacemark) metadata() map[string]string {
	meta := make(map[string]string)
	for _, sd := range pm.ExtendedData.SchemaData {
		for _, d := range sd.SimpleData {
			if d.Name != "" && strings.TrimSpace(d.Value) != "" {
				meta[strings.ToUpper(d.Name)] = strings.TrimSpace(d.Value)
			}
		}
	}
	for _, d := range pm.ExtendedData.Data {
		if d.Name != "" && strings.TrimSpace(d.Value) != "" {
			meta[strings.ToUpper(d.Name)] = strings.TrimSpace(d.Value)
		}
	}
	return meta
}

// ringCoordinates returns the placemark's outer boundary ring. The
// second result is false when the placemark carries no polygon
// geometry. A present but malformed ring is an error.
func (pm kmlPlacemark) ringCoordinates() ([]geo.Point, bool, error) {
	polys := pm.Polygons
	if pm.MultiGeometry != nil {
		polys = append(polys, pm.MultiGeometry.Polygons...)
	}
	for _, poly := range polys {
		raw := strings.TrimSpace(poly.OuterCoordinates)
		if raw == "" {
			continue
		}
		pts, err := parseCoordinates(raw)
		if err != nil {
			return nil, false, err
		}
		if len(pts) < 3 {
			return nil, false, fmt.Errorf("polygon ring has %d points, need at least 3", len(pts))
		}
		// First usable ring wins; additional polygons in a
		// MultiGeometry are separate deliveries in practice.
		return pts, true, nil
	}
	return nil, false, nil
}

// parseCoordinates decodes a KML coordinate string: whitespace-separated
// "lon,lat[,alt]" tuples.
func parseCoordinates(raw string) ([]geo.Point, error) {
	fields := strings.Fields(raw)
	pts := make([]geo.Point, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed coordinate tuple %q", tuple)
		}
		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude in tuple %q", tuple)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude in tuple %q", tuple)
		}
		pts = append(pts, geo.Point{Latitude: lat, Longitude: lng})
	}
	return pts, nil
}

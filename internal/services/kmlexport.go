package services

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml"

	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// Status overlay colors, KML AABBGGRR semantics via color.RGBA.
var statusColors = map[survey.ProgressStatus]color.RGBA{
	survey.StatusPending:    {R: 0xd9, G: 0x53, B: 0x4f, A: 0x99},
	survey.StatusInProgress: {R: 0xf0, G: 0xad, B: 0x4e, A: 0x99},
	survey.StatusCompleted:  {R: 0x5c, G: 0xb8, B: 0x5c, A: 0x99},
}

var flightPathColor = color.RGBA{R: 0x33, G: 0x88, B: 0xff, A: 0xcc}

// WriteStatusKML renders the run as a KML overlay for Google Earth:
// planned polygons styled by progress status plus one flight-path line
// per session. Purely a view of the report; nothing reads it back.
func WriteStatusKML(w io.Writer, out *RunOutput) error {
	ringByID := make(map[string]survey.PlannedArea, len(out.Areas))
	for _, a := range out.Areas {
		ringByID[a.ID] = a
	}

	elements := []kml.Element{kml.Name("Survey progress")}
	for _, status := range []survey.ProgressStatus{survey.StatusPending, survey.StatusInProgress, survey.StatusCompleted} {
		elements = append(elements, kml.SharedStyle(styleID(status),
			kml.LineStyle(kml.Color(statusColors[status]), kml.Width(2)),
			kml.PolyStyle(kml.Color(statusColors[status])),
		))
	}
	elements = append(elements, kml.SharedStyle("flight-path",
		kml.LineStyle(kml.Color(flightPathColor), kml.Width(1.5)),
	))

	for _, p := range out.Report.Polygons {
		area, ok := ringByID[p.ID]
		if !ok {
			continue
		}
		vertices := area.Ring.Vertices()
		coords := make([]kml.Coordinate, 0, len(vertices)+1)
		for _, v := range vertices {
			coords = append(coords, kml.Coordinate{Lon: v.Longitude, Lat: v.Latitude})
		}
		// KML linear rings are closed explicitly.
		coords = append(coords, coords[0])

		elements = append(elements, kml.Placemark(
			kml.Name(p.Name),
			kml.Description(polygonDescription(p)),
			kml.StyleURL("#"+styleID(p.Status)),
			kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coords...)))),
		))
	}

	for _, sess := range out.Sessions {
		if len(sess.Points) < 2 {
			continue
		}
		coords := make([]kml.Coordinate, len(sess.Points))
		for i, pt := range sess.Points {
			coords[i] = kml.Coordinate{Lon: pt.Point.Longitude, Lat: pt.Point.Latitude}
		}
		elements = append(elements, kml.Placemark(
			kml.Name(sess.ID),
			kml.StyleURL("#flight-path"),
			kml.LineString(kml.Coordinates(coords...), kml.Tessellate(true)),
		))
	}

	doc := kml.KML(kml.Document(elements...))
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write status KML: %w", err)
	}
	return nil
}

func styleID(status survey.ProgressStatus) string {
	switch status {
	case survey.StatusCompleted:
		return "status-completed"
	case survey.StatusInProgress:
		return "status-in-progress"
	default:
		return "status-pending"
	}
}

func polygonDescription(p survey.PolygonReport) string {
	return fmt.Sprintf("Area: %.2f ha\nCaptured: %d of %d photos (%.0f%%)\nStatus: %s",
		p.AreaHa, p.Captured, p.Expected, p.Ratio*100, p.Status)
}

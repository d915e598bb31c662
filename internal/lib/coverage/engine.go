// Package coverage determines how much of each planned polygon has been
// photographically covered by executed flights.
package coverage

import (
	"math"

	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// Result is the outcome of one coverage computation.
type Result struct {
	// PerPolygon maps polygon id to its coverage. Every planned
	// polygon has an entry, even with zero captures.
	PerPolygon map[string]survey.CoverageResult

	// Unassigned counts captures outside every known polygon. These
	// signal unregistered areas or GPS drift and are surfaced
	// separately, never folded into a polygon's ratio.
	Unassigned int

	TotalCaptures int
}

// Compute tests every capture point against every planned polygon and
// derives per-polygon coverage ratios. Brute force O(points x polygons
// x vertices); no spatial index. Fine for low-hundreds of polygons and
// tens-of-thousands of points per run, a known scaling limit.
//
// A capture inside several overlapping polygons counts toward all of
// them. Results depend only on the set of captures, not their order.
func Compute(areas []survey.PlannedArea, sessions []survey.FlightSession, photosPerHectare float64) *Result {
	res := &Result{PerPolygon: make(map[string]survey.CoverageResult, len(areas))}

	counts := make(map[string]int, len(areas))
	byDate := make(map[string]map[string]int, len(areas))
	for _, a := range areas {
		counts[a.ID] = 0
		byDate[a.ID] = make(map[string]int)
	}

	for _, s := range sessions {
		day := ""
		if !s.Date.IsZero() {
			day = survey.Day(s.Date)
		}
		for _, pt := range s.Points {
			res.TotalCaptures++
			assigned := false
			for i := range areas {
				if areas[i].Ring.Contains(pt.Point) {
					id := areas[i].ID
					counts[id]++
					if day != "" {
						byDate[id][day]++
					}
					assigned = true
				}
			}
			if !assigned {
				res.Unassigned++
			}
		}
	}

	for _, a := range areas {
		res.PerPolygon[a.ID] = survey.CoverageResult{
			PolygonID:      a.ID,
			Captured:       counts[a.ID],
			Expected:       ExpectedCaptures(a.AreaHa, photosPerHectare),
			Ratio:          ratio(counts[a.ID], ExpectedCaptures(a.AreaHa, photosPerHectare)),
			CapturesByDate: byDate[a.ID],
		}
	}
	return res
}

// ExpectedCaptures is the photo count a polygon needs for full
// coverage: ceil(hectares x photos-per-hectare).
func ExpectedCaptures(areaHa, photosPerHectare float64) int {
	if areaHa <= 0 || photosPerHectare <= 0 {
		return 0
	}
	return int(math.Ceil(areaHa * photosPerHectare))
}

// ratio divides captured by expected. With zero expected captures
// (degenerate or zero-area polygon) the ratio is 1 when anything was
// captured there and 0 otherwise, keeping the status model sane without
// dividing by zero.
func ratio(captured, expected int) float64 {
	if expected == 0 {
		if captured > 0 {
			return 1.0
		}
		return 0.0
	}
	return float64(captured) / float64(expected)
}

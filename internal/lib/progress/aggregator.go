// Package progress combines per-polygon coverage with the capacity
// schedule model into the project report.
package progress

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/temapeo/surveytrack/internal/lib/coverage"
	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// Aggregate derives per-polygon statuses, completion dates, the
// planned-vs-actual timeline and farm rollups from one coverage
// computation. Everything is recomputed from scratch each run: a
// polygon may legitimately move backward between runs when corrected
// log data is supplied.
func Aggregate(areas []survey.PlannedArea, cov *coverage.Result, sched survey.ScheduleState, completionThreshold float64) *survey.ProjectReport {
	report := &survey.ProjectReport{
		UnassignedCaptures: cov.Unassigned,
	}

	dateSet := make(map[string]struct{})
	completedByDate := make(map[string]float64)
	var ratios []float64

	for _, a := range areas {
		cr := cov.PerPolygon[a.ID]
		pr := survey.PolygonReport{
			ID:          a.ID,
			Name:        a.Name,
			Farm:        a.Farm,
			Zone:        a.Zone,
			SourceFile:  a.SourceFile,
			AreaHa:      a.AreaHa,
			AreaSource:  a.AreaSource,
			Centroid:    a.Ring.Centroid(),
			Coordinates: a.Ring.Vertices(),
			Captured:    cr.Captured,
			Expected:    cr.Expected,
			Ratio:       cr.Ratio,
			Status:      Status(cr, completionThreshold),
		}
		if a.RequestedDate != nil {
			pr.RequestedDate = survey.Day(*a.RequestedDate)
		}
		if pr.Status == survey.StatusCompleted {
			if day, ok := completionDate(cr, completionThreshold); ok {
				pr.CompletionDate = day
				completedByDate[day] += a.AreaHa
			}
			report.CompletedAreaHa += a.AreaHa
		}

		for day := range cr.CapturesByDate {
			dateSet[day] = struct{}{}
		}
		report.TotalAreaHa += a.AreaHa
		ratios = append(ratios, cr.Ratio)
		report.Polygons = append(report.Polygons, pr)
	}

	report.Timeline = timeline(dateSet, completedByDate, sched)
	report.ScheduleOffsetHa = report.CompletedAreaHa - plannedHa(sched, sched.AsOf)
	report.Farms = farmRollup(report.Polygons)
	report.RatioSummary = ratioSummary(ratios)
	return report
}

// Status classifies a polygon: COMPLETED at or above the completion
// threshold, IN_PROGRESS with any capture below it, PENDING otherwise.
func Status(cr survey.CoverageResult, completionThreshold float64) survey.ProgressStatus {
	switch {
	case cr.Ratio >= completionThreshold:
		return survey.StatusCompleted
	case cr.Captured > 0:
		return survey.StatusInProgress
	default:
		return survey.StatusPending
	}
}

// completionDate finds the earliest session date whose cumulative
// captures pushed the polygon over the threshold. False when the
// polygon completed on undated captures only.
func completionDate(cr survey.CoverageResult, completionThreshold float64) (string, bool) {
	days := make([]string, 0, len(cr.CapturesByDate))
	for day := range cr.CapturesByDate {
		days = append(days, day)
	}
	sort.Strings(days)

	needed := completionThreshold * float64(cr.Expected)
	cum := 0
	for _, day := range days {
		cum += cr.CapturesByDate[day]
		if cr.Expected == 0 {
			// Zero-expected polygons complete on their first capture.
			if cum > 0 {
				return day, true
			}
			continue
		}
		if float64(cum) >= needed {
			return day, true
		}
	}
	return "", false
}

// timeline builds the planned-vs-actual cumulative hectare series over
// every calendar date present in the flight-session set plus the run
// date.
func timeline(dateSet map[string]struct{}, completedByDate map[string]float64, sched survey.ScheduleState) []survey.TimelinePoint {
	if !sched.AsOf.IsZero() {
		dateSet[survey.Day(sched.AsOf)] = struct{}{}
	}
	days := make([]string, 0, len(dateSet))
	for day := range dateSet {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]survey.TimelinePoint, 0, len(days))
	actual := 0.0
	for _, day := range days {
		actual += completedByDate[day]
		d, err := time.ParseInLocation(survey.DateFormat, day, time.UTC)
		planned := 0.0
		if err == nil {
			planned = plannedHa(sched, d)
		}
		series = append(series, survey.TimelinePoint{Date: day, PlannedHa: planned, ActualHa: actual})
	}
	return series
}

// plannedHa is the capacity curve: daily capacity times working days
// elapsed since the project start. Working days are Monday through
// Saturday; survey teams fly Saturdays, not Sundays.
func plannedHa(sched survey.ScheduleState, at time.Time) float64 {
	if sched.StartDate.IsZero() || !at.After(sched.StartDate) {
		return 0
	}
	days := 0
	for d := sched.StartDate.AddDate(0, 0, 1); !d.After(at); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday {
			days++
		}
	}
	return sched.DailyCapacityHa * float64(days)
}

// farmRollup propagates polygon statuses to the farm (predio) level:
// a farm is COMPLETED only when every member polygon is, PENDING when
// none has any capture, IN_PROGRESS otherwise.
func farmRollup(polygons []survey.PolygonReport) []survey.FarmReport {
	byFarm := make(map[string]*survey.FarmReport)
	for _, p := range polygons {
		if p.Farm == "" {
			continue
		}
		fr, ok := byFarm[p.Farm]
		if !ok {
			fr = &survey.FarmReport{Farm: p.Farm, Status: survey.StatusCompleted}
			byFarm[p.Farm] = fr
		}
		fr.PolygonIDs = append(fr.PolygonIDs, p.ID)
		fr.AreaHa += p.AreaHa
		fr.Captured += p.Captured
		if p.Status == survey.StatusCompleted {
			fr.CompletedHa += p.AreaHa
		} else {
			fr.Status = survey.StatusInProgress
		}
	}

	farms := make([]survey.FarmReport, 0, len(byFarm))
	for _, fr := range byFarm {
		if fr.Captured == 0 {
			fr.Status = survey.StatusPending
		}
		farms = append(farms, *fr)
	}
	sort.Slice(farms, func(i, j int) bool { return farms[i].Farm < farms[j].Farm })
	return farms
}

// ratioSummary computes distribution statistics over per-polygon ratios.
func ratioSummary(ratios []float64) survey.RatioSummary {
	if len(ratios) == 0 {
		return survey.RatioSummary{}
	}
	mean, _ := stats.Mean(ratios)
	median, _ := stats.Median(ratios)
	p90, _ := stats.Percentile(ratios, 90)
	return survey.RatioSummary{Mean: mean, Median: median, P90: p90}
}

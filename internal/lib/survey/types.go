package survey

import (
	"time"

	"github.com/temapeo/surveytrack/internal/lib/geo"
)

// DateFormat is the canonical calendar-date layout used in report keys
// and series; lexicographic order equals chronological order.
const DateFormat = "2006-01-02"

// Day formats a timestamp as a canonical calendar-date key (UTC).
func Day(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// AreaSource records where a planned area's hectare figure came from.
type AreaSource string

const (
	AreaFromKML      AreaSource = "kml"      // declared in boundary-file metadata
	AreaFromGeometry AreaSource = "computed" // derived from the ring
)

// PlannedArea is one client-requested survey polygon, immutable once loaded.
type PlannedArea struct {
	ID            string
	Name          string
	Farm          string // grouping key (NOM_PREDIO / ID_PREDIO), may be empty
	Zone          string
	SourceFile    string
	Ring          geo.Ring
	AreaHa        float64
	AreaSource    AreaSource
	RequestedDate *time.Time
	Metadata      map[string]string
}

// CapturePoint is a single photo's geotagged center.
type CapturePoint struct {
	Point     geo.Point
	Timestamp time.Time
	SessionID string
}

// FlightSession groups the capture points of one executed flight.
// One log file maps to exactly one session; point order is temporal.
type FlightSession struct {
	ID             string
	Date           time.Time
	Ordinal        int
	SourceFile     string
	Points         []CapturePoint
	SkippedRecords int
}

// CoverageResult holds per-polygon photo coverage for one run.
// Ratio is captured/expected, deliberately unclamped above 1.0:
// over-coverage is valid and must stay visible.
type CoverageResult struct {
	PolygonID      string
	Captured       int
	Expected       int
	Ratio          float64
	CapturesByDate map[string]int // canonical date key -> captures that day
}

// ProgressStatus is the lifecycle state of a planned polygon.
type ProgressStatus string

const (
	StatusPending    ProgressStatus = "PENDING"
	StatusInProgress ProgressStatus = "IN_PROGRESS"
	StatusCompleted  ProgressStatus = "COMPLETED"
)

// ScheduleState is the capacity model a run is measured against.
type ScheduleState struct {
	StartDate       time.Time
	DailyCapacityHa float64 // hectares/day/team x teams
	AsOf            time.Time
}

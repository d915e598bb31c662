package survey

import "github.com/temapeo/surveytrack/internal/lib/geo"

// ProjectReport is the single structured object handed to the external
// report assembler. Plain serializable data, no presentation logic.
// Slices are emitted in stable order so identical inputs produce
// byte-identical JSON.
type ProjectReport struct {
	GeneratedAt string         `json:"generated_at"`
	Config      ConfigSnapshot `json:"config"`

	Polygons []PolygonReport `json:"polygons"`
	Farms    []FarmReport    `json:"farms,omitempty"`
	Sessions []SessionReport `json:"sessions"`
	Timeline []TimelinePoint `json:"timeline"`

	TotalAreaHa     float64 `json:"total_area_ha"`
	CompletedAreaHa float64 `json:"completed_area_ha"`

	// Captures outside every known polygon. Surfaced, never folded
	// into any polygon's ratio.
	UnassignedCaptures int `json:"unassigned_captures"`
	SkippedRecords     int `json:"skipped_records"`
	ExcludedPolygons   int `json:"excluded_polygons"`
	ExcludedLogFiles   int `json:"excluded_log_files"`

	// Hectares ahead (positive) or behind (negative) the planned
	// capacity curve as of the run date.
	ScheduleOffsetHa float64 `json:"schedule_offset_ha"`

	RatioSummary RatioSummary `json:"ratio_summary"`
}

// ConfigSnapshot echoes the configuration a report was computed with.
type ConfigSnapshot struct {
	HectaresPerDayPerTeam float64 `json:"hectares_per_day_per_team"`
	TeamCount             int     `json:"team_count"`
	ProjectStartDate      string  `json:"project_start_date"`
	PhotosPerHectare      float64 `json:"photos_per_hectare"`
	CompletionThreshold   float64 `json:"completion_threshold"`
}

// PolygonReport is the per-polygon slice of the report.
type PolygonReport struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Farm           string         `json:"farm,omitempty"`
	Zone           string         `json:"zone,omitempty"`
	SourceFile     string         `json:"source_file"`
	AreaHa         float64        `json:"area_ha"`
	AreaSource     AreaSource     `json:"area_source"`
	RequestedDate  string         `json:"requested_date,omitempty"`
	Centroid       geo.Point      `json:"centroid"`
	Coordinates    []geo.Point    `json:"coordinates"`
	Captured       int            `json:"captured"`
	Expected       int            `json:"expected"`
	Ratio          float64        `json:"ratio"`
	Status         ProgressStatus `json:"status"`
	CompletionDate string         `json:"completion_date,omitempty"`
}

// FarmReport rolls polygon statuses up to the farm (predio) level.
type FarmReport struct {
	Farm        string         `json:"farm"`
	Status      ProgressStatus `json:"status"`
	AreaHa      float64        `json:"area_ha"`
	PolygonIDs  []string       `json:"polygon_ids"`
	Captured    int            `json:"captured"`
	CompletedHa float64        `json:"completed_ha"`
}

// SessionReport summarizes one flight session for display. Path is the
// Google-encoded polyline of the flight's photo centers in capture order.
type SessionReport struct {
	ID             string `json:"id"`
	Date           string `json:"date,omitempty"`
	SourceFile     string `json:"source_file"`
	Captures       int    `json:"captures"`
	SkippedRecords int    `json:"skipped_records,omitempty"`
	Path           string `json:"path,omitempty"`
}

// TimelinePoint is one date on the planned-vs-actual schedule curve.
type TimelinePoint struct {
	Date      string  `json:"date"`
	PlannedHa float64 `json:"planned_ha"`
	ActualHa  float64 `json:"actual_ha"`
}

// RatioSummary gives distribution statistics over per-polygon ratios.
type RatioSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

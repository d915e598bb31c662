package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/clients/kml"
	"github.com/temapeo/surveytrack/internal/clients/mrk"
	"github.com/temapeo/surveytrack/internal/config"
	"github.com/temapeo/surveytrack/internal/lib/coverage"
	"github.com/temapeo/surveytrack/internal/lib/progress"
	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// ReportService runs the batch pipeline: snapshot the input
// directories, load planned areas and flight sessions, compute
// coverage, aggregate progress. One synchronous pass, no state kept
// between runs.
type ReportService struct {
	cfg       *config.Config
	log       *zap.Logger
	kmlLoader *kml.Loader
	mrkLoader *mrk.Loader
	now       func() time.Time
}

// NewReportService creates the pipeline service.
func NewReportService(cfg *config.Config, log *zap.Logger) *ReportService {
	return &ReportService{
		cfg:       cfg,
		log:       log,
		kmlLoader: kml.NewLoader(log, cfg.ZoneKeywords),
		mrkLoader: mrk.NewLoader(log),
		now:       time.Now,
	}
}

// WithClock overrides the run clock; reports become reproducible for a
// fixed clock and input set.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// RunOutput carries the report plus the loaded entities the KML overlay
// export needs.
type RunOutput struct {
	Report   *survey.ProjectReport
	Areas    []survey.PlannedArea
	Sessions []survey.FlightSession
}

// Run executes the full pipeline against the current input snapshot.
func (s *ReportService) Run(ctx context.Context) (*RunOutput, error) {
	boundaries, err := s.kmlLoader.LoadDir(s.cfg.KMLDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load planned areas: %w", err)
	}
	if len(boundaries.Areas) == 0 {
		return nil, fmt.Errorf("no planned areas found in %s", s.cfg.KMLDir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flights, err := s.mrkLoader.LoadDir(s.cfg.MRKDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight logs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	asOf := s.now().UTC()
	cov := coverage.Compute(boundaries.Areas, flights.Sessions, s.cfg.PhotosPerHectare)
	report := progress.Aggregate(boundaries.Areas, cov, s.cfg.Schedule(asOf), s.cfg.CompletionThreshold)

	report.GeneratedAt = asOf.Format(time.RFC3339)
	report.Config = s.cfg.Snapshot()
	report.Sessions = sessionReports(flights.Sessions)
	report.SkippedRecords = flights.SkippedRecords
	report.ExcludedPolygons = boundaries.ExcludedPolygons
	report.ExcludedLogFiles = flights.ExcludedFiles + boundaries.ExcludedFiles

	s.log.Info("report computed",
		zap.Int("polygons", len(report.Polygons)),
		zap.Int("sessions", len(report.Sessions)),
		zap.Int("captures", cov.TotalCaptures),
		zap.Int("unassigned", cov.Unassigned),
		zap.Float64("completed_ha", report.CompletedAreaHa),
		zap.Float64("schedule_offset_ha", report.ScheduleOffsetHa))

	return &RunOutput{Report: report, Areas: boundaries.Areas, Sessions: flights.Sessions}, nil
}

// sessionReports summarizes sessions for the report, with each flight
// path Google-polyline encoded in capture order.
func sessionReports(sessions []survey.FlightSession) []survey.SessionReport {
	out := make([]survey.SessionReport, 0, len(sessions))
	for _, sess := range sessions {
		sr := survey.SessionReport{
			ID:             sess.ID,
			SourceFile:     sess.SourceFile,
			Captures:       len(sess.Points),
			SkippedRecords: sess.SkippedRecords,
		}
		if !sess.Date.IsZero() {
			sr.Date = survey.Day(sess.Date)
		}
		coords := make([][]float64, len(sess.Points))
		for i, pt := range sess.Points {
			coords[i] = []float64{pt.Point.Latitude, pt.Point.Longitude}
		}
		sr.Path = string(polyline.EncodeCoords(coords))
		out = append(out, sr)
	}
	return out
}

// WriteJSON renders the report as indented JSON. Output order is fully
// determined by the report's slices, so identical inputs under a fixed
// clock produce byte-identical files.
func WriteJSON(w io.Writer, report *survey.ProjectReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

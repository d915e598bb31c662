package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/temapeo/surveytrack/internal/config"
	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// Two ~0.99 ha squares near Chillán. The first is flown over, the
// second never is.
const boundariesKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
<Document>
  <Placemark>
    <name>Potrero Norte</name>
    <ExtendedData>
      <Data name="ID_POLIGONO"><value>P-001</value></Data>
      <Data name="NOM_PREDIO"><value>El Roble</value></Data>
    </ExtendedData>
    <Polygon><outerBoundaryIs><LinearRing><coordinates>
      -71.7,-36.6,0 -71.6988865,-36.6,0 -71.6988865,-36.599102,0 -71.7,-36.599102,0 -71.7,-36.6,0
    </coordinates></LinearRing></outerBoundaryIs></Polygon>
  </Placemark>
  <Placemark>
    <name>Potrero Sur</name>
    <ExtendedData>
      <Data name="ID_POLIGONO"><value>P-002</value></Data>
      <Data name="NOM_PREDIO"><value>El Roble</value></Data>
    </ExtendedData>
    <Polygon><outerBoundaryIs><LinearRing><coordinates>
      -71.7,-36.7,0 -71.6988865,-36.7,0 -71.6988865,-36.699102,0 -71.7,-36.699102,0 -71.7,-36.7,0
    </coordinates></LinearRing></outerBoundaryIs></Polygon>
  </Placemark>
</Document>
</kml>`

// Four captures inside P-001 plus one over unplanned ground.
const flightCSV = `photo,lat,lon,alt
PHOTO_0001,-36.5996,-71.6995,481.2
PHOTO_0002,-36.5995,-71.6995,481.0
PHOTO_0003,-36.5994,-71.6995,480.8
PHOTO_0004,-36.5993,-71.6995,480.9
PHOTO_0005,-36.5500,-71.6500,479.1
`

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	kmlDir := t.TempDir()
	mrkDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(kmlDir, "chillan_lotes.kml"), []byte(boundariesKML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(mrkDir, "20260216_vuelo01.mrk"), []byte(flightCSV), 0o644))

	cfg := &config.Config{
		HectaresPerDayPerTeam: 100,
		TeamCount:             2,
		ProjectStartDate:      "2026-02-15",
		PhotosPerHectare:      5,
		CompletionThreshold:   0.6,
		KMLDir:                kmlDir,
		MRKDir:                mrkDir,
		ZoneKeywords:          map[string][]string{"Chillán": {"chillan"}},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
}

func TestReportServiceRun(t *testing.T) {
	cfg := fixtureConfig(t)
	svc := NewReportService(cfg, zaptest.NewLogger(t)).WithClock(fixedClock)

	out, err := svc.Run(context.Background())
	require.NoError(t, err)
	report := out.Report

	assert.Equal(t, "2026-02-20T10:00:00Z", report.GeneratedAt)
	assert.Equal(t, cfg.Snapshot(), report.Config)

	require.Len(t, report.Polygons, 2)
	flown := report.Polygons[0]
	assert.Equal(t, "P-001", flown.ID)
	assert.Equal(t, "Potrero Norte", flown.Name)
	assert.Equal(t, "El Roble", flown.Farm)
	assert.Equal(t, "Chillán", flown.Zone)
	assert.Equal(t, 5, flown.Expected)
	assert.Equal(t, 4, flown.Captured)
	assert.Equal(t, survey.StatusCompleted, flown.Status)
	assert.Equal(t, "2026-02-16", flown.CompletionDate)
	assert.Equal(t, survey.AreaFromGeometry, flown.AreaSource)
	assert.InDelta(t, 0.99, flown.AreaHa, 0.02)

	idle := report.Polygons[1]
	assert.Equal(t, "P-002", idle.ID)
	assert.Equal(t, survey.StatusPending, idle.Status)
	assert.Empty(t, idle.CompletionDate)

	assert.Equal(t, 1, report.UnassignedCaptures)

	require.Len(t, report.Sessions, 1)
	sess := report.Sessions[0]
	assert.Equal(t, "20260216_vuelo01", sess.ID)
	assert.Equal(t, "2026-02-16", sess.Date)
	assert.Equal(t, 5, sess.Captures)
	assert.NotEmpty(t, sess.Path)

	require.Len(t, report.Farms, 1)
	assert.Equal(t, "El Roble", report.Farms[0].Farm)
	assert.Equal(t, survey.StatusInProgress, report.Farms[0].Status)

	require.NotEmpty(t, report.Timeline)
	last := report.Timeline[len(report.Timeline)-1]
	assert.Equal(t, "2026-02-20", last.Date)
	// Five working days at 200 ha/day against one ~1 ha square.
	assert.Equal(t, 1000.0, last.PlannedHa)
	assert.InDelta(t, 0.99, last.ActualHa, 0.02)
	assert.Less(t, report.ScheduleOffsetHa, 0.0)
}

func TestReportServiceRun_NoPlannedAreas(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.KMLDir = t.TempDir()
	svc := NewReportService(cfg, zaptest.NewLogger(t))

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no planned areas")
}

func TestReportServiceRun_CancelledContext(t *testing.T) {
	cfg := fixtureConfig(t)
	svc := NewReportService(cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteJSONIsDeterministic(t *testing.T) {
	cfg := fixtureConfig(t)
	svc := NewReportService(cfg, zaptest.NewLogger(t)).WithClock(fixedClock)

	var first, second bytes.Buffer
	for i, buf := range []*bytes.Buffer{&first, &second} {
		out, err := svc.Run(context.Background())
		require.NoError(t, err, "run %d", i)
		require.NoError(t, WriteJSON(buf, out.Report))
	}
	assert.Equal(t, first.String(), second.String())
	assert.True(t, strings.HasSuffix(first.String(), "\n"))
}

func TestWriteStatusKML(t *testing.T) {
	cfg := fixtureConfig(t)
	svc := NewReportService(cfg, zaptest.NewLogger(t)).WithClock(fixedClock)

	out, err := svc.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStatusKML(&buf, out))
	doc := buf.String()

	assert.Contains(t, doc, `id="status-completed"`)
	assert.Contains(t, doc, `id="status-pending"`)
	assert.Contains(t, doc, "#status-completed")
	assert.Contains(t, doc, "Potrero Norte")
	assert.Contains(t, doc, "Potrero Sur")
	assert.Contains(t, doc, "<LineString>")
	assert.Contains(t, doc, "20260216_vuelo01")
}

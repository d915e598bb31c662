package kml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temapeo/surveytrack/internal/lib/survey"
)

var testZones = map[string][]string{
	"Chillán":  {"chillan", "norte"},
	"Valdivia": {"valdivia", "sur"},
}

const squareRing = `-71.700,-36.600,0 -71.690,-36.600,0 -71.690,-36.590,0 -71.700,-36.590,0 -71.700,-36.600,0`

const boundaryKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Folder>
      <Placemark>
        <name>pm0</name>
        <ExtendedData>
          <SchemaData schemaUrl="#areas">
            <SimpleData name="NOM_PREDIO">El Roble</SimpleData>
            <SimpleData name="SUP_HA">12,5</SimpleData>
          </SchemaData>
        </ExtendedData>
        <Polygon><outerBoundaryIs><LinearRing><coordinates>` + squareRing + `</coordinates></LinearRing></outerBoundaryIs></Polygon>
      </Placemark>
      <Placemark>
        <name>Lote 2</name>
        <ExtendedData>
          <Data name="AREA_HA"><value>3.25</value></Data>
          <Data name="FECHA"><value>2026-02-20</value></Data>
        </ExtendedData>
        <MultiGeometry>
          <Polygon><outerBoundaryIs><LinearRing><coordinates>-71.650,-36.650,0 -71.640,-36.650,0 -71.640,-36.640,0 -71.650,-36.640,0 -71.650,-36.650,0</coordinates></LinearRing></outerBoundaryIs></Polygon>
        </MultiGeometry>
      </Placemark>
      <Placemark>
        <name>just a marker</name>
        <Point><coordinates>-71.7,-36.6,0</coordinates></Point>
      </Placemark>
    </Folder>
    <Placemark>
      <name>Sin Metadatos</name>
      <Polygon><outerBoundaryIs><LinearRing><coordinates>-71.600,-36.700,0 -71.590,-36.700,0 -71.590,-36.690,0 -71.600,-36.700,0</coordinates></LinearRing></outerBoundaryIs></Polygon>
    </Placemark>
  </Document>
</kml>`

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	return NewLoader(zaptest.NewLogger(t), testZones)
}

func TestParse_Placemarks(t *testing.T) {
	loader := newTestLoader(t)

	areas, excluded, err := loader.Parse(strings.NewReader(boundaryKML), "20260209_ChillanDron.kml")
	require.NoError(t, err)
	assert.Zero(t, excluded)
	require.Len(t, areas, 3, "point-only placemark must be skipped")

	roble := areas[0]
	assert.Equal(t, "20260209_ChillanDron.kml-0", roble.ID)
	assert.Equal(t, "El Roble", roble.Name)
	assert.Equal(t, "El Roble", roble.Farm)
	assert.Equal(t, "Chillán", roble.Zone)
	assert.Equal(t, survey.AreaFromKML, roble.AreaSource)
	assert.Equal(t, 12.5, roble.AreaHa, "comma-decimal SUP_HA must parse")

	lote := areas[1]
	assert.Equal(t, "Lote 2", lote.Name)
	assert.Equal(t, 3.25, lote.AreaHa)
	require.NotNil(t, lote.RequestedDate)
	assert.Equal(t, "2026-02-20", survey.Day(*lote.RequestedDate))

	// No declared area: derived from the ring and flagged as computed.
	calc := areas[2]
	assert.Equal(t, survey.AreaFromGeometry, calc.AreaSource)
	assert.Greater(t, calc.AreaHa, 0.0)
}

func TestParse_ZoneFromFilename(t *testing.T) {
	loader := newTestLoader(t)

	areas, _, err := loader.Parse(strings.NewReader(boundaryKML), "20260126_FASA_ValdiviaDron.kml")
	require.NoError(t, err)
	assert.Equal(t, "Valdivia", areas[0].Zone)

	areas, _, err = loader.Parse(strings.NewReader(boundaryKML), "20260301_misc.kml")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", areas[0].Zone)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not xml",
			body: "this is not a boundary file",
		},
		{
			name: "ring with too few points",
			body: `<kml><Document><Placemark><Polygon><outerBoundaryIs><LinearRing><coordinates>-71.7,-36.6,0 -71.6,-36.6,0</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`,
		},
		{
			name: "malformed coordinate tuple",
			body: `<kml><Document><Placemark><Polygon><outerBoundaryIs><LinearRing><coordinates>-71.7,-36.6,0 abc,-36.6,0 -71.6,-36.5,0</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`,
		},
	}

	loader := newTestLoader(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := loader.Parse(strings.NewReader(tc.body), "bad.kml")
			var perr *survey.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "bad.kml", perr.File)
		})
	}
}

func TestParse_ExcludesBadGeometryPolygon(t *testing.T) {
	// A self-intersecting ring excludes that polygon only; the rest of
	// the file still loads.
	body := `<kml><Document>
      <Placemark><name>bowtie</name><Polygon><outerBoundaryIs><LinearRing><coordinates>0,0,0 2,2,0 2,0,0 0,2,0</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark>
      <Placemark><name>ok</name><Polygon><outerBoundaryIs><LinearRing><coordinates>` + squareRing + `</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark>
    </Document></kml>`

	loader := newTestLoader(t)
	areas, excluded, err := loader.Parse(strings.NewReader(body), "mixed.kml")
	require.NoError(t, err)
	assert.Equal(t, 1, excluded)
	require.Len(t, areas, 1)
	assert.Equal(t, "ok", areas[0].Name)
}

func TestLoadDir_DuplicateIDLastWins(t *testing.T) {
	dir := t.TempDir()
	first := `<kml><Document><Placemark><name>v1</name>
      <ExtendedData><Data name="ID_POLIGONO"><value>P-001</value></Data></ExtendedData>
      <Polygon><outerBoundaryIs><LinearRing><coordinates>` + squareRing + `</coordinates></LinearRing></outerBoundaryIs></Polygon>
    </Placemark></Document></kml>`
	second := strings.ReplaceAll(first, "v1", "v2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101_a.kml"), []byte(first), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260115_update.kml"), []byte(second), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	loader := NewLoader(zap.New(core), testZones)

	res, err := loader.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, res.Areas, 1)
	assert.Equal(t, "P-001", res.Areas[0].ID)
	assert.Equal(t, "v2", res.Areas[0].Name, "last-loaded boundary wins")
	assert.Equal(t, "20260115_update.kml", res.Areas[0].SourceFile)

	// The replacement is observable, not silent.
	assert.Equal(t, 1, logs.FilterMessage("duplicate polygon id, last-loaded wins").Len())
}

func TestLoadDir_ExcludesUnparsableFile(t *testing.T) {
	dir := t.TempDir()
	good := `<kml><Document><Placemark><name>ok</name><Polygon><outerBoundaryIs><LinearRing><coordinates>` + squareRing + `</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></Document></kml>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.kml"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.kml"), []byte("<<<not kml"), 0o644))

	loader := newTestLoader(t)
	res, err := loader.LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, res.Areas, 1)
	assert.Equal(t, 1, res.ExcludedFiles)
}

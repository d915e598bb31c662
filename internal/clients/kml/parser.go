package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/lib/geo"
	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// Metadata fields that may carry an explicit polygon identifier. When
// present they override the filename-index id, which is what makes a
// re-delivered boundary replace its predecessor across files.
var idFields = []string{"ID_POLIGONO", "ID"}

// Metadata fields that may carry a declared polygon area in hectares,
// checked in order. Values with comma decimal separators are accepted.
var areaFields = []string{"SUP_HA", "SUPERFICIE", "AREA_HA"}

// Metadata fields that may carry the requested/contracted flight date.
var dateFields = []string{"FECHA", "FECHA_SOLICITUD"}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// Loader parses boundary KML files into planned survey areas.
type Loader struct {
	log *zap.Logger

	// zone name -> lowercase filename substrings that select it
	zoneKeywords map[string][]string
}

// NewLoader creates a planned-area loader. zoneKeywords maps a zone
// label to filename substrings that assign boundary files to it.
func NewLoader(log *zap.Logger, zoneKeywords map[string][]string) *Loader {
	return &Loader{log: log, zoneKeywords: zoneKeywords}
}

// LoadResult is the outcome of loading a boundary-file collection.
// Structural failures are counted, not fatal: partial progress
// reporting beats an all-or-nothing abort.
type LoadResult struct {
	Areas            []survey.PlannedArea
	ExcludedFiles    int
	ExcludedPolygons int
}

// LoadDir loads every *.kml under dir (one level, lexicographic order)
// and returns the merged planned-area set. Duplicate polygon ids across
// files follow last-loaded-wins, logged as a warning since it signals an
// intentional boundary replacement.
func (l *Loader) LoadDir(dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list boundary dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".kml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	res := &LoadResult{}
	byID := make(map[string]int) // polygon id -> index in res.Areas
	for _, path := range files {
		areas, excluded, err := l.ParseFile(path)
		if err != nil {
			res.ExcludedFiles++
			l.log.Warn("boundary file excluded", zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}
		res.ExcludedPolygons += excluded
		for _, a := range areas {
			if prev, ok := byID[a.ID]; ok {
				l.log.Warn("duplicate polygon id, last-loaded wins",
					zap.String("id", a.ID),
					zap.String("replaced_from", res.Areas[prev].SourceFile),
					zap.String("replaced_by", a.SourceFile))
				res.Areas[prev] = a
				continue
			}
			byID[a.ID] = len(res.Areas)
			res.Areas = append(res.Areas, a)
		}
	}
	return res, nil
}

// ParseFile parses a single boundary file. The int result counts
// polygons excluded for geometry errors; a *survey.ParseError means the
// whole file is unusable.
func (l *Loader) ParseFile(path string) ([]survey.PlannedArea, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &survey.ParseError{File: filepath.Base(path), Reason: err.Error()}
	}
	defer f.Close()
	return l.Parse(f, filepath.Base(path))
}

// Parse parses boundary KML from r. filename supplies polygon ids, the
// default zone and the source-file attribution.
func (l *Loader) Parse(r io.Reader, filename string) ([]survey.PlannedArea, int, error) {
	var doc kmlRoot
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, 0, &survey.ParseError{File: filename, Reason: "unparsable KML: " + err.Error()}
	}

	var placemarks []kmlPlacemark
	collectPlacemarks(doc.Document, &placemarks)
	collectPlacemarks(kmlContainer{Folders: doc.Folders, Placemarks: doc.Placemarks}, &placemarks)

	zone := l.detectZone(filename)

	var areas []survey.PlannedArea
	excluded := 0
	for idx, pm := range placemarks {
		meta := pm.metadata()
		id := fmt.Sprintf("%s-%d", filename, idx)
		for _, field := range idFields {
			if v := meta[field]; v != "" {
				id = v
				break
			}
		}

		coords, ok, err := pm.ringCoordinates()
		if err != nil {
			return nil, 0, &survey.ParseError{File: filename, Reason: err.Error()}
		}
		if !ok {
			// Placemark without polygon geometry (points, paths); not a planned area.
			continue
		}

		ring, err := geo.NewRing(coords)
		if err != nil {
			var gerr *geo.GeometryError
			if errors.As(err, &gerr) {
				gerr.PolygonID = id
				excluded++
				l.log.Warn("polygon excluded", zap.String("file", filename), zap.Error(gerr))
				continue
			}
			return nil, 0, err
		}

		area := survey.PlannedArea{
			ID:         id,
			Zone:       zone,
			SourceFile: filename,
			Ring:       ring,
			Metadata:   meta,
		}

		area.Name = meta["NOM_PREDIO"]
		if area.Name == "" {
			area.Name = strings.TrimSpace(pm.Name)
		}
		if area.Name == "" {
			area.Name = id
		}
		area.Farm = meta["NOM_PREDIO"]
		if area.Farm == "" {
			area.Farm = meta["ID_PREDIO"]
		}
		if z := meta["ZONA"]; z != "" {
			area.Zone = z
		}

		area.AreaHa, area.AreaSource = declaredArea(meta)
		if area.AreaSource != survey.AreaFromKML {
			area.AreaHa = ring.AreaHectares()
			area.AreaSource = survey.AreaFromGeometry
		}

		if d, ok := requestedDate(meta); ok {
			area.RequestedDate = &d
		}

		areas = append(areas, area)
	}
	return areas, excluded, nil
}

// detectZone assigns a zone label from filename keywords, mirroring how
// boundary deliveries are named per operations region.
func (l *Loader) detectZone(filename string) string {
	lower := strings.ToLower(filename)
	zones := make([]string, 0, len(l.zoneKeywords))
	for z := range l.zoneKeywords {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	for _, z := range zones {
		for _, kw := range l.zoneKeywords[z] {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return z
			}
		}
	}
	return "Unknown"
}

// declaredArea extracts a declared hectare figure from placemark metadata.
func declaredArea(meta map[string]string) (float64, survey.AreaSource) {
	for _, field := range areaFields {
		raw, ok := meta[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err == nil && v >= 0 {
			return v, survey.AreaFromKML
		}
	}
	return 0, survey.AreaFromGeometry
}

// requestedDate extracts the contracted flight date from metadata.
func requestedDate(meta map[string]string) (time.Time, bool) {
	for _, field := range dateFields {
		raw, ok := meta[field]
		if !ok {
			continue
		}
		for _, layout := range dateLayouts {
			if d, err := time.ParseInLocation(layout, strings.TrimSpace(raw), time.UTC); err == nil {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

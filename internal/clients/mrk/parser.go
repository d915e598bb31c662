package mrk

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temapeo/surveytrack/internal/lib/geo"
	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// DJI Timestamp.MRK records tag coordinates as "<value>,Lat" and
// "<value>,Lon" tokens.
var (
	latPattern = regexp.MustCompile(`(-?[\d.]+),Lat`)
	lonPattern = regexp.MustCompile(`(-?[\d.]+),Lon`)
	weekToken  = regexp.MustCompile(`^\[(\d+)\]$`)

	// Filenames encode the session date and ordinal: 20260215_vuelo01.mrk
	filenamePattern = regexp.MustCompile(`^(\d{8})_.*?(\d+)?$`)
)

// GPS time starts at 1980-01-06T00:00:00Z. Leap seconds are ignored;
// coverage math only needs day granularity.
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

// Loader parses photo-center flight logs into flight sessions.
type Loader struct {
	log *zap.Logger
}

// NewLoader creates a flight-log loader.
func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

// LoadResult is the outcome of loading a flight-log snapshot.
type LoadResult struct {
	Sessions      []survey.FlightSession
	ExcludedFiles int
	// Total malformed records skipped across all sessions.
	SkippedRecords int
}

// LoadDir loads every *.mrk under dir, recursively, plus members of
// *.zip archives found there (field uploads arrive zipped). The
// directory listing is snapshotted once; re-running on an unchanged
// snapshot yields identical sessions.
func (l *Loader) LoadDir(dir string) (*LoadResult, error) {
	var mrkPaths, zipPaths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".mrk":
			mrkPaths = append(mrkPaths, path)
		case ".zip":
			zipPaths = append(zipPaths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flight-log dir: %w", err)
	}
	sort.Strings(mrkPaths)
	sort.Strings(zipPaths)

	res := &LoadResult{}
	for _, path := range mrkPaths {
		l.loadOne(res, path, dir, func() (io.ReadCloser, error) { return os.Open(path) })
	}
	for _, path := range zipPaths {
		if err := l.loadArchive(res, path, dir); err != nil {
			res.ExcludedFiles++
			l.log.Warn("flight-log archive excluded", zap.String("file", filepath.Base(path)), zap.Error(err))
		}
	}

	sort.Slice(res.Sessions, func(i, j int) bool { return res.Sessions[i].ID < res.Sessions[j].ID })
	return res, nil
}

// loadArchive parses every .mrk member of a zip archive in memory.
func (l *Loader) loadArchive(res *LoadResult, path, root string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	rel := relName(root, path)
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))

	var members []*zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(filepath.Ext(f.Name), ".mrk") {
			members = append(members, f)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	for _, f := range members {
		name := stem + "/" + filepath.Base(f.Name)
		l.loadNamed(res, name, func() (io.ReadCloser, error) { return f.Open() })
	}
	return nil
}

func (l *Loader) loadOne(res *LoadResult, path, root string, open func() (io.ReadCloser, error)) {
	l.loadNamed(res, relName(root, path), open)
}

func (l *Loader) loadNamed(res *LoadResult, name string, open func() (io.ReadCloser, error)) {
	r, err := open()
	if err != nil {
		res.ExcludedFiles++
		l.log.Warn("flight log excluded", zap.String("file", name), zap.Error(err))
		return
	}
	defer r.Close()

	session, err := l.Parse(r, name)
	if err != nil {
		res.ExcludedFiles++
		l.log.Warn("flight log excluded", zap.String("file", name), zap.Error(err))
		return
	}
	if session.SkippedRecords > 0 {
		l.log.Warn("malformed flight-log records skipped",
			zap.String("file", name), zap.Int("skipped", session.SkippedRecords))
	}
	res.SkippedRecords += session.SkippedRecords
	res.Sessions = append(res.Sessions, session)
}

// Parse reads one flight log and returns its session. A malformed
// record is skipped and counted rather than aborting the file; a file
// with no valid records at all is a *survey.ParseError.
func (l *Loader) Parse(r io.Reader, name string) (survey.FlightSession, error) {
	session := survey.FlightSession{
		ID:         strings.TrimSuffix(name, filepath.Ext(name)),
		SourceFile: name,
	}
	session.Date, session.Ordinal = sessionFromFilename(filepath.Base(name))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if lineNo == 1 && isHeaderLine(line) {
			continue
		}

		pt, ok := parseRecord(line)
		if !ok {
			session.SkippedRecords++
			continue
		}
		if pt.Timestamp.IsZero() {
			pt.Timestamp = session.Date
		}
		pt.SessionID = session.ID
		session.Points = append(session.Points, pt)
	}
	if err := scanner.Err(); err != nil {
		return survey.FlightSession{}, &survey.ParseError{File: name, Reason: err.Error()}
	}
	if len(session.Points) == 0 {
		return survey.FlightSession{}, &survey.ParseError{File: name, Reason: "no valid capture records"}
	}
	return session, nil
}

// parseRecord extracts one capture point from a log line. DJI
// Timestamp.MRK records are tried first, then a generic heuristic for
// CSV-style coordinate pairs.
func parseRecord(line string) (survey.CapturePoint, bool) {
	var pt survey.CapturePoint

	latMatch := latPattern.FindStringSubmatch(line)
	lonMatch := lonPattern.FindStringSubmatch(line)
	if latMatch != nil && lonMatch != nil {
		lat, errLat := strconv.ParseFloat(latMatch[1], 64)
		lng, errLng := strconv.ParseFloat(lonMatch[1], 64)
		if errLat == nil && errLng == nil && plausibleCoordinate(lat, lng) {
			pt.Point = geo.Point{Latitude: lat, Longitude: lng}
			pt.Timestamp = gpsTimestamp(line)
			return pt, true
		}
	}

	// Generic fallback: first adjacent pair of numbers in plausible
	// lat/lng ranges. Matches hand-exported CSV logs.
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '\t' || r == ' ' || r == ';'
	})
	for i := 0; i+1 < len(fields); i++ {
		a, errA := strconv.ParseFloat(fields[i], 64)
		b, errB := strconv.ParseFloat(fields[i+1], 64)
		if errA != nil || errB != nil {
			continue
		}
		if absIn(a, 10, 90) && absIn(b, 10, 180) {
			pt.Point = geo.Point{Latitude: a, Longitude: b}
			return pt, true
		}
	}
	return survey.CapturePoint{}, false
}

// gpsTimestamp recovers the capture time from a DJI record's GPS
// seconds-of-week and [week] tokens. Zero when absent.
func gpsTimestamp(line string) time.Time {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return time.Time{}
	}
	seconds, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || seconds < 0 {
		return time.Time{}
	}
	m := weekToken.FindStringSubmatch(fields[2])
	if m == nil {
		return time.Time{}
	}
	week, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}
	}
	return gpsEpoch.Add(time.Duration(week) * 7 * 24 * time.Hour).
		Add(time.Duration(seconds * float64(time.Second)))
}

// sessionFromFilename decodes the YYYYMMDD date prefix and trailing
// session ordinal. Files outside the convention still load, with a zero
// date that surfaces in the report instead of failing the run.
func sessionFromFilename(base string) (time.Time, int) {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	m := filenamePattern.FindStringSubmatch(stem)
	if m == nil {
		return time.Time{}, 0
	}
	date, err := time.ParseInLocation("20060102", m[1], time.UTC)
	if err != nil {
		return time.Time{}, 0
	}
	ordinal := 0
	if m[2] != "" {
		ordinal, _ = strconv.Atoi(m[2])
	}
	return date, ordinal
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "lat") && strings.Contains(lower, "lon") &&
		!latPattern.MatchString(line)
}

func plausibleCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func absIn(v, low, high float64) bool {
	a := v
	if a < 0 {
		a = -a
	}
	return a > low && a <= high
}

// relName renders a path relative to the snapshot root with forward
// slashes, used as the stable session source name.
func relName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

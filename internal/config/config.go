package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/temapeo/surveytrack/internal/lib/survey"
)

// EnvPrefix namespaces environment overrides, e.g.
// SURVEYTRACK_TEAM_COUNT=3.
const EnvPrefix = "SURVEYTRACK_"

// Config holds one run's parameters. Values flow defaults -> YAML file
// -> environment; the loaded value is passed explicitly into the engine
// and aggregator, never read as process-wide state.
type Config struct {
	// Capacity model.
	HectaresPerDayPerTeam float64 `koanf:"hectares_per_day_per_team"`
	TeamCount             int     `koanf:"team_count"`
	ProjectStartDate      string  `koanf:"project_start_date"`

	// Coverage model.
	PhotosPerHectare    float64 `koanf:"photos_per_hectare"`
	CompletionThreshold float64 `koanf:"completion_threshold"`

	// Input/output locations.
	KMLDir    string `koanf:"kml_dir"`
	MRKDir    string `koanf:"mrk_dir"`
	Output    string `koanf:"output"`
	KMLOutput string `koanf:"kml_output"` // empty disables the overlay export

	// Zone label -> boundary-filename substrings.
	ZoneKeywords map[string][]string `koanf:"zone_keywords"`

	startDate time.Time
}

// ConfigError indicates an invalid configuration value. Always fatal at
// startup: no partial run with bad parameters.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"hectares_per_day_per_team": 100.0,
		"team_count":                2,
		"project_start_date":        "2026-02-15",
		"photos_per_hectare":        55.0,
		"completion_threshold":      0.65,
		"kml_dir":                   "datos/kml",
		"mrk_dir":                   "datos/mrk",
		"output":                    "docs/report.json",
		"kml_output":                "",
		"zone_keywords": map[string][]string{
			"Chillán":  {"chillan", "norte"},
			"Valdivia": {"valdivia", "sur"},
		},
	}
}

// Load builds the run configuration. path names an optional YAML file;
// a missing file is only an error when explicitly requested.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, &ConfigError{Field: "config file", Reason: err.Error()}
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &ConfigError{Field: "config file", Reason: err.Error()}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Field: "config file", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every tunable and parses the start date. Any invalid
// value is a *ConfigError.
func (c *Config) Validate() error {
	if c.HectaresPerDayPerTeam <= 0 {
		return &ConfigError{Field: "hectares_per_day_per_team", Reason: "must be positive"}
	}
	if c.TeamCount <= 0 {
		return &ConfigError{Field: "team_count", Reason: "must be a positive integer"}
	}
	if c.PhotosPerHectare <= 0 {
		return &ConfigError{Field: "photos_per_hectare", Reason: "must be positive"}
	}
	if c.CompletionThreshold <= 0 || c.CompletionThreshold > 1 {
		return &ConfigError{Field: "completion_threshold", Reason: "must be in (0, 1]"}
	}
	start, err := time.ParseInLocation(survey.DateFormat, c.ProjectStartDate, time.UTC)
	if err != nil {
		return &ConfigError{Field: "project_start_date", Reason: "must be YYYY-MM-DD"}
	}
	c.startDate = start
	return nil
}

// StartDate returns the parsed project start date. Valid after a
// successful Validate.
func (c *Config) StartDate() time.Time {
	return c.startDate
}

// DailyCapacityHa is the project-wide capacity in hectares per working day.
func (c *Config) DailyCapacityHa() float64 {
	return c.HectaresPerDayPerTeam * float64(c.TeamCount)
}

// Schedule materializes the capacity schedule model as of a run time.
func (c *Config) Schedule(asOf time.Time) survey.ScheduleState {
	return survey.ScheduleState{
		StartDate:       c.startDate,
		DailyCapacityHa: c.DailyCapacityHa(),
		AsOf:            asOf,
	}
}

// Snapshot echoes the configuration into the report.
func (c *Config) Snapshot() survey.ConfigSnapshot {
	return survey.ConfigSnapshot{
		HectaresPerDayPerTeam: c.HectaresPerDayPerTeam,
		TeamCount:             c.TeamCount,
		ProjectStartDate:      c.ProjectStartDate,
		PhotosPerHectare:      c.PhotosPerHectare,
		CompletionThreshold:   c.CompletionThreshold,
	}
}

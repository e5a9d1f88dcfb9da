package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/seizure-classifier/internal/dataset"
	"github.com/banshee-data/seizure-classifier/internal/detection"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/metric"
	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

// DefaultConfigPath is the path to the canonical classifier defaults file.
const DefaultConfigPath = "config/classifier.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// ClassifierConfig is the root configuration for a classification run.
// Every field is optional; the Get* methods supply defaults for omitted
// fields, so partial configs are safe.
type ClassifierConfig struct {
	// Sweep grid, as "min:max:step" ranges or comma-separated lists.
	Thresholds   *string `json:"thresholds,omitempty"`
	MinDurations *string `json:"min_durations,omitempty"`

	// Detection and hypothesis post-processing
	DetectionStartIdx        *int     `json:"detection_start_idx,omitempty"`
	MinDurationBetweenEvents *float64 `json:"min_duration_between_events,omitempty"`
	MaxEventDuration         *float64 `json:"max_event_duration,omitempty"` // <= 0 disables splitting

	// Scoring
	MinOverlap   *float64 `json:"min_overlap,omitempty"`
	ToleranceEnd *float64 `json:"tolerance_end,omitempty"` // seconds

	// Selection
	Objective1          *string `json:"objective1,omitempty"`
	Objective2          *string `json:"objective2,omitempty"`
	TieBreaker          *string `json:"tie_breaker,omitempty"`
	TieBreakerDirection *string `json:"tie_breaker_direction,omitempty"` // min, max or median

	// Metric windows (samples)
	FgSize           *int `json:"fg_size,omitempty"`
	BgSize           *int `json:"bg_size,omitempty"`
	BaselineStartIdx *int `json:"baseline_start_idx,omitempty"`
	BaselineEndIdx   *int `json:"baseline_end_idx,omitempty"`

	// Spike scoring
	SpikeSamplingRate *float64 `json:"spike_sampling_rate,omitempty"`
	SpikeTolerance    *float64 `json:"spike_tolerance,omitempty"` // seconds

	// Execution and output
	Workers   *int  `json:"workers,omitempty"` // 0 uses GOMAXPROCS
	WritePlot *bool `json:"write_plots,omitempty"`
	WriteHTML *bool `json:"write_html,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyClassifierConfig returns a ClassifierConfig with all fields nil.
func EmptyClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{}
}

// DefaultClassifierConfig returns a config with every field set to its
// default. It mirrors config/classifier.defaults.json.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		Thresholds:               ptrString("1:100:1"),
		MinDurations:             ptrString("0,1,1,2,2,3,3,4,4,5,5,6,6,7,7,8,8,9,9,10"),
		DetectionStartIdx:        ptrInt(0),
		MinDurationBetweenEvents: ptrFloat64(90),
		MaxEventDuration:         ptrFloat64(300),
		MinOverlap:               ptrFloat64(0),
		ToleranceEnd:             ptrFloat64(90),
		Objective1:               ptrString(scoring.EventSensitivity.String()),
		Objective2:               ptrString(scoring.EventPrecision.String()),
		TieBreaker:               ptrString(scoring.DetectionDelay.String()),
		TieBreakerDirection:      ptrString("min"),
		FgSize:                   ptrInt(20),
		BgSize:                   ptrInt(180),
		BaselineStartIdx:         ptrInt(201),
		BaselineEndIdx:           ptrInt(700),
		SpikeSamplingRate:        ptrFloat64(20000),
		SpikeTolerance:           ptrFloat64(1e-3),
		Workers:                  ptrInt(0),
		WritePlot:                ptrBool(true),
		WriteHTML:                ptrBool(true),
	}
}

// LoadClassifierConfig loads a ClassifierConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadClassifierConfig(fsys fsutil.FileSystem, path string) (*ClassifierConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := fsutil.ReadCapped(fsys, cleanPath, maxConfigFileSize)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg := EmptyClassifierConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ClassifierConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadClassifierConfig(fsutil.OSFileSystem{}, path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable. It builds every derived
// parameter set, so a config that validates can always be turned into a run.
func (c *ClassifierConfig) Validate() error {
	if c.MinOverlap != nil && (*c.MinOverlap < 0 || *c.MinOverlap > 1) {
		return fmt.Errorf("min_overlap must be between 0 and 1, got %f", *c.MinOverlap)
	}
	if c.ToleranceEnd != nil && *c.ToleranceEnd < 0 {
		return fmt.Errorf("tolerance_end must be non-negative, got %f", *c.ToleranceEnd)
	}
	if c.MinDurationBetweenEvents != nil && *c.MinDurationBetweenEvents < 0 {
		return fmt.Errorf("min_duration_between_events must be non-negative, got %f", *c.MinDurationBetweenEvents)
	}
	if c.DetectionStartIdx != nil && *c.DetectionStartIdx < 0 {
		return fmt.Errorf("detection_start_idx must be non-negative, got %d", *c.DetectionStartIdx)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.SpikeSamplingRate != nil && *c.SpikeSamplingRate <= 0 {
		return fmt.Errorf("spike_sampling_rate must be positive, got %f", *c.SpikeSamplingRate)
	}
	if c.SpikeTolerance != nil && *c.SpikeTolerance < 0 {
		return fmt.Errorf("spike_tolerance must be non-negative, got %f", *c.SpikeTolerance)
	}
	if c.TieBreakerDirection != nil {
		switch *c.TieBreakerDirection {
		case "min", "max", "median", "":
		default:
			return fmt.Errorf("tie_breaker_direction must be min, max or median, got %q", *c.TieBreakerDirection)
		}
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	if _, err := c.Criteria(); err != nil {
		return err
	}
	return c.MetricParameters().Validate()
}

// GetThresholds returns the thresholds range or the default.
func (c *ClassifierConfig) GetThresholds() string {
	if c.Thresholds == nil {
		return "1:100:1"
	}
	return *c.Thresholds
}

// GetMinDurations returns the min_durations range or the default.
func (c *ClassifierConfig) GetMinDurations() string {
	if c.MinDurations == nil {
		return "0,1,1,2,2,3,3,4,4,5,5,6,6,7,7,8,8,9,9,10"
	}
	return *c.MinDurations
}

// GetDetectionStartIdx returns the detection_start_idx value or the default.
func (c *ClassifierConfig) GetDetectionStartIdx() int {
	if c.DetectionStartIdx == nil {
		return 0
	}
	return *c.DetectionStartIdx
}

// GetMinDurationBetweenEvents returns the min_duration_between_events value or the default.
func (c *ClassifierConfig) GetMinDurationBetweenEvents() float64 {
	if c.MinDurationBetweenEvents == nil {
		return 90
	}
	return *c.MinDurationBetweenEvents
}

// GetMaxEventDuration returns the max_event_duration value or the default.
// Values <= 0 mean unlimited.
func (c *ClassifierConfig) GetMaxEventDuration() float64 {
	if c.MaxEventDuration == nil {
		return 300
	}
	if *c.MaxEventDuration <= 0 {
		return math.Inf(1)
	}
	return *c.MaxEventDuration
}

// GetMinOverlap returns the min_overlap value or the default.
func (c *ClassifierConfig) GetMinOverlap() float64 {
	if c.MinOverlap == nil {
		return 0
	}
	return *c.MinOverlap
}

// GetToleranceEnd returns the tolerance_end value or the default.
func (c *ClassifierConfig) GetToleranceEnd() float64 {
	if c.ToleranceEnd == nil {
		return 90
	}
	return *c.ToleranceEnd
}

// GetObjective1 returns the objective1 name or the default.
func (c *ClassifierConfig) GetObjective1() string {
	if c.Objective1 == nil {
		return scoring.EventSensitivity.String()
	}
	return *c.Objective1
}

// GetObjective2 returns the objective2 name or the default.
func (c *ClassifierConfig) GetObjective2() string {
	if c.Objective2 == nil {
		return scoring.EventPrecision.String()
	}
	return *c.Objective2
}

// GetTieBreaker returns the tie_breaker name or the default.
func (c *ClassifierConfig) GetTieBreaker() string {
	if c.TieBreaker == nil {
		return scoring.DetectionDelay.String()
	}
	return *c.TieBreaker
}

// GetTieBreakerDirection returns the tie_breaker_direction value or the default.
func (c *ClassifierConfig) GetTieBreakerDirection() string {
	if c.TieBreakerDirection == nil {
		return "min"
	}
	return *c.TieBreakerDirection
}

// GetFgSize returns the fg_size value or the default.
func (c *ClassifierConfig) GetFgSize() int {
	if c.FgSize == nil {
		return 20
	}
	return *c.FgSize
}

// GetBgSize returns the bg_size value or the default.
func (c *ClassifierConfig) GetBgSize() int {
	if c.BgSize == nil {
		return 180
	}
	return *c.BgSize
}

// GetBaselineStartIdx returns the baseline_start_idx value or the default.
func (c *ClassifierConfig) GetBaselineStartIdx() int {
	if c.BaselineStartIdx == nil {
		return 201
	}
	return *c.BaselineStartIdx
}

// GetBaselineEndIdx returns the baseline_end_idx value or the default.
func (c *ClassifierConfig) GetBaselineEndIdx() int {
	if c.BaselineEndIdx == nil {
		return 700
	}
	return *c.BaselineEndIdx
}

// GetSpikeSamplingRate returns the spike_sampling_rate value or the default.
func (c *ClassifierConfig) GetSpikeSamplingRate() float64 {
	if c.SpikeSamplingRate == nil {
		return 20000
	}
	return *c.SpikeSamplingRate
}

// GetSpikeTolerance returns the spike_tolerance value or the default.
func (c *ClassifierConfig) GetSpikeTolerance() float64 {
	if c.SpikeTolerance == nil {
		return 1e-3
	}
	return *c.SpikeTolerance
}

// GetWorkers returns the workers value or the default.
func (c *ClassifierConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetWritePlots returns the write_plots value or the default.
func (c *ClassifierConfig) GetWritePlots() bool {
	if c.WritePlot == nil {
		return true
	}
	return *c.WritePlot
}

// GetWriteHTML returns the write_html value or the default.
func (c *ClassifierConfig) GetWriteHTML() bool {
	if c.WriteHTML == nil {
		return true
	}
	return *c.WriteHTML
}

// Grid parses the threshold and minimum-duration sweep values.
func (c *ClassifierConfig) Grid() (sweep.Grid, error) {
	thresholds, err := sweep.ParseParamList(c.GetThresholds())
	if err != nil {
		return sweep.Grid{}, fmt.Errorf("thresholds: %w", err)
	}
	durations, err := sweep.ParseParamList(c.GetMinDurations())
	if err != nil {
		return sweep.Grid{}, fmt.Errorf("min_durations: %w", err)
	}
	g := sweep.Grid{Thresholds: thresholds, MinDurations: durations}
	if err := g.Validate(); err != nil {
		return sweep.Grid{}, err
	}
	return g, nil
}

// Criteria resolves the selection objectives and tie-break rule.
func (c *ClassifierConfig) Criteria() (pareto.Criteria, error) {
	var crit pareto.Criteria
	var err error
	if crit.Objective1, err = scoring.ParseObjective(c.GetObjective1()); err != nil {
		return crit, fmt.Errorf("objective1: %w", err)
	}
	if crit.Objective2, err = scoring.ParseObjective(c.GetObjective2()); err != nil {
		return crit, fmt.Errorf("objective2: %w", err)
	}
	if crit.TieBreaker, err = scoring.ParseObjective(c.GetTieBreaker()); err != nil {
		return crit, fmt.Errorf("tie_breaker: %w", err)
	}
	crit.Direction = pareto.ParseTieBreakDirection(c.GetTieBreakerDirection())
	return crit, nil
}

// PostProcessing returns the merge/split constraints applied to hypotheses.
func (c *ClassifierConfig) PostProcessing() detection.PostProcessing {
	return detection.PostProcessing{
		MinDurationBetweenEvents: c.GetMinDurationBetweenEvents(),
		MaxEventDuration:         c.GetMaxEventDuration(),
	}
}

// MetricParameters returns the slope metric window layout.
func (c *ClassifierConfig) MetricParameters() metric.Parameters {
	return metric.Parameters{
		FgSize:           c.GetFgSize(),
		BgSize:           c.GetBgSize(),
		BaselineStartIdx: c.GetBaselineStartIdx(),
		BaselineEndIdx:   c.GetBaselineEndIdx(),
	}
}

// DatasetOptions returns the settings used to load a cohort.
func (c *ClassifierConfig) DatasetOptions() dataset.Options {
	return dataset.Options{
		Metric:            c.MetricParameters(),
		MinOverlap:        c.GetMinOverlap(),
		ToleranceEnd:      c.GetToleranceEnd(),
		SpikeSamplingRate: c.GetSpikeSamplingRate(),
		SpikeTolerance:    c.GetSpikeTolerance(),
	}
}

// SweepConfig assembles the sweep configuration. workers overrides the
// configured worker count when positive.
func (c *ClassifierConfig) SweepConfig(workers int) (sweep.Config, error) {
	grid, err := c.Grid()
	if err != nil {
		return sweep.Config{}, err
	}
	crit, err := c.Criteria()
	if err != nil {
		return sweep.Config{}, err
	}
	if workers <= 0 {
		workers = c.GetWorkers()
	}
	return sweep.Config{
		Grid:              grid,
		DetectionStartIdx: c.GetDetectionStartIdx(),
		Post:              c.PostProcessing(),
		Criteria:          crit,
		Workers:           workers,
	}, nil
}

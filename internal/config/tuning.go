package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neuro-analyst/neuroclean/internal/eeg/channels"
	"github.com/neuro-analyst/neuroclean/internal/eeg/filter"
	"github.com/neuro-analyst/neuroclean/internal/eeg/ica"
	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
)

// TuningConfig represents the root configuration for the cleaning pipeline.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* methods supply documented defaults for everything else.
type TuningConfig struct {
	// Filter params
	HighPassHz     *float64   `json:"high_pass_hz,omitempty"`
	LowPassHz      *float64   `json:"low_pass_hz,omitempty"`
	NotchHz        *[]float64 `json:"notch_hz,omitempty"`
	NotchHarmonics *bool      `json:"notch_harmonics,omitempty"`

	// Bad-channel detector params
	DeviationThreshold *float64 `json:"deviation_threshold,omitempty"`
	CorrelationFloor   *float64 `json:"correlation_floor,omitempty"`
	MinGoodChannels    *int     `json:"min_good_channels,omitempty"`

	// Artifact separator params
	NumComponents     *int     `json:"num_components,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	MaxIterations     *int     `json:"max_iterations,omitempty"`
	Tolerance         *float64 `json:"tolerance,omitempty"`
	ArtifactThreshold *float64 `json:"artifact_threshold,omitempty"`
	BadChannelPolicy  *string  `json:"bad_channel_policy,omitempty"`

	// Workers bounds the intra-stage worker pools
	Workers *int `json:"workers,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are plausible. Cutoff
// placement relative to the recording's Nyquist frequency is checked later by
// the filter stage, which knows the sampling rate.
func (c *TuningConfig) Validate() error {
	if c.HighPassHz != nil && *c.HighPassHz <= 0 {
		return fmt.Errorf("high_pass_hz must be positive, got %g", *c.HighPassHz)
	}
	if c.LowPassHz != nil && *c.LowPassHz <= 0 {
		return fmt.Errorf("low_pass_hz must be positive, got %g", *c.LowPassHz)
	}
	if c.HighPassHz != nil && c.LowPassHz != nil && *c.HighPassHz >= *c.LowPassHz {
		return fmt.Errorf("high_pass_hz %g must be below low_pass_hz %g", *c.HighPassHz, *c.LowPassHz)
	}
	if c.NotchHz != nil {
		for _, f := range *c.NotchHz {
			if f <= 0 {
				return fmt.Errorf("notch_hz values must be positive, got %g", f)
			}
		}
	}
	if c.DeviationThreshold != nil && *c.DeviationThreshold <= 0 {
		return fmt.Errorf("deviation_threshold must be positive, got %g", *c.DeviationThreshold)
	}
	if c.CorrelationFloor != nil && (*c.CorrelationFloor < 0 || *c.CorrelationFloor > 1) {
		return fmt.Errorf("correlation_floor must be between 0 and 1, got %g", *c.CorrelationFloor)
	}
	if c.MinGoodChannels != nil && *c.MinGoodChannels < 1 {
		return fmt.Errorf("min_good_channels must be at least 1, got %d", *c.MinGoodChannels)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
	}
	if c.BadChannelPolicy != nil {
		switch ica.BadChannelPolicy(*c.BadChannelPolicy) {
		case ica.PolicyInterpolate, ica.PolicyExclude:
		default:
			return fmt.Errorf("bad_channel_policy must be 'interpolate' or 'exclude', got %q", *c.BadChannelPolicy)
		}
	}
	return nil
}

// GetHighPassHz returns the high_pass_hz value or the default.
func (c *TuningConfig) GetHighPassHz() float64 {
	if c.HighPassHz == nil {
		return filter.DefaultHighPassHz
	}
	return *c.HighPassHz
}

// GetLowPassHz returns the low_pass_hz value or the default.
func (c *TuningConfig) GetLowPassHz() float64 {
	if c.LowPassHz == nil {
		return filter.DefaultLowPassHz
	}
	return *c.LowPassHz
}

// GetNotchHz returns the notch_hz value or the default.
func (c *TuningConfig) GetNotchHz() []float64 {
	if c.NotchHz == nil {
		return []float64{filter.DefaultNotchHz}
	}
	return append([]float64(nil), (*c.NotchHz)...)
}

// GetNotchHarmonics returns the notch_harmonics value or the default.
func (c *TuningConfig) GetNotchHarmonics() bool {
	if c.NotchHarmonics == nil {
		return false
	}
	return *c.NotchHarmonics
}

// GetDeviationThreshold returns the deviation_threshold value or the default.
func (c *TuningConfig) GetDeviationThreshold() float64 {
	if c.DeviationThreshold == nil {
		return channels.DefaultDeviationThreshold
	}
	return *c.DeviationThreshold
}

// GetCorrelationFloor returns the correlation_floor value or the default.
func (c *TuningConfig) GetCorrelationFloor() float64 {
	if c.CorrelationFloor == nil {
		return channels.DefaultCorrelationFloor
	}
	return *c.CorrelationFloor
}

// GetMinGoodChannels returns the min_good_channels value or the default.
func (c *TuningConfig) GetMinGoodChannels() int {
	if c.MinGoodChannels == nil {
		return channels.DefaultMinGoodChannels
	}
	return *c.MinGoodChannels
}

// GetNumComponents returns the num_components value or the default. Zero
// means one component per good channel.
func (c *TuningConfig) GetNumComponents() int {
	if c.NumComponents == nil {
		return 0
	}
	return *c.NumComponents
}

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return ica.DefaultSeed
	}
	return *c.Seed
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return ica.DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetTolerance returns the tolerance value or the default.
func (c *TuningConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return ica.DefaultTolerance
	}
	return *c.Tolerance
}

// GetArtifactThreshold returns the artifact_threshold value or the default.
func (c *TuningConfig) GetArtifactThreshold() float64 {
	if c.ArtifactThreshold == nil {
		return ica.DefaultArtifactZThreshold
	}
	return *c.ArtifactThreshold
}

// GetBadChannelPolicy returns the bad_channel_policy value or the default.
func (c *TuningConfig) GetBadChannelPolicy() ica.BadChannelPolicy {
	if c.BadChannelPolicy == nil {
		return ica.PolicyInterpolate
	}
	return ica.BadChannelPolicy(*c.BadChannelPolicy)
}

// GetWorkers returns the workers value or the default. Zero means NumCPU.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// Pipeline assembles a pipeline.Config from the tuning values.
func (c *TuningConfig) Pipeline() pipeline.Config {
	hp := c.GetHighPassHz()
	lp := c.GetLowPassHz()
	threshold := c.GetArtifactThreshold()
	return pipeline.Config{
		Filter: filter.Spec{
			HighPassHz:     &hp,
			LowPassHz:      &lp,
			NotchHz:        c.GetNotchHz(),
			NotchHarmonics: c.GetNotchHarmonics(),
		},
		Detector: channels.DetectorConfig{
			DeviationThreshold: c.GetDeviationThreshold(),
			CorrelationFloor:   c.GetCorrelationFloor(),
			MinGoodChannels:    c.GetMinGoodChannels(),
			Workers:            c.GetWorkers(),
		},
		Separator: ica.Config{
			NumComponents: c.GetNumComponents(),
			Seed:          c.GetSeed(),
			MaxIterations: c.GetMaxIterations(),
			Tolerance:     c.GetTolerance(),
			Scorers: []ica.Scorer{
				ica.OcularScorer{ZThreshold: threshold},
				ica.MuscleScorer{ZThreshold: threshold},
			},
			BadChannelPolicy: c.GetBadChannelPolicy(),
			Workers:          c.GetWorkers(),
		},
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/wavemode/internal/arrival"
	"github.com/banshee-data/wavemode/internal/units"
	"github.com/banshee-data/wavemode/internal/wavelet"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Built-in fallbacks used by the Get* accessors.
const (
	DefaultSampleRateHz  = 5e6
	DefaultExtensionBand = 9
	DefaultTimeUnit      = units.Microseconds
)

// DefaultFrequenciesHz are the CWT band centre frequencies.
var DefaultFrequenciesHz = []float64{
	40000, 60000, 80000, 100000, 120000, 150000, 180000,
	220000, 270000, 310000, 360000, 420000, 480000,
}

// DefaultFlexureBands are the bands multiplied into the flexural row
// (80 to 180 kHz).
var DefaultFlexureBands = []int{2, 3, 4, 5, 6}

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be used
// for startup configuration and for inspecting a running server.
type TuningConfig struct {
	// Acquisition and decomposition
	SampleRateHz           *float64  `json:"sample_rate_hz,omitempty"`
	WaveletCenterFrequency *float64  `json:"wavelet_center_frequency,omitempty"`
	WaveletMethod          *string   `json:"wavelet_method,omitempty"` // "conv" or "fft"
	FrequenciesHz          []float64 `json:"frequencies_hz,omitempty"`
	ExtensionBand          *int      `json:"extension_band,omitempty"`
	FlexureBands           []int     `json:"flexure_bands,omitempty"`

	// Extensional detector
	NoiseMultiplier *float64 `json:"noise_multiplier,omitempty"`
	NoiseMin        *float64 `json:"noise_min,omitempty"`

	// Noise threshold estimator
	ThresholdWindow      *int     `json:"threshold_window,omitempty"`
	ThresholdStep        *int     `json:"threshold_step,omitempty"`
	ThresholdNoiseFloor  *float64 `json:"threshold_noise_floor,omitempty"`
	ThresholdStreakLimit *int     `json:"threshold_streak_limit,omitempty"`

	// Input and presentation
	WaveformColumn *int    `json:"waveform_column,omitempty"`
	TimeUnit       *string `json:"time_unit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default.
func DefaultTuningConfig() *TuningConfig {
	a := arrival.DefaultConfig()
	return &TuningConfig{
		SampleRateHz:           ptrFloat64(DefaultSampleRateHz),
		WaveletCenterFrequency: ptrFloat64(wavelet.DefaultCenterFrequency),
		WaveletMethod:          ptrString(string(wavelet.MethodConv)),
		FrequenciesHz:          append([]float64(nil), DefaultFrequenciesHz...),
		ExtensionBand:          ptrInt(DefaultExtensionBand),
		FlexureBands:           append([]int(nil), DefaultFlexureBands...),
		NoiseMultiplier:        ptrFloat64(a.Extension.NoiseMultiplier),
		NoiseMin:               ptrFloat64(a.Extension.NoiseMin),
		ThresholdWindow:        ptrInt(a.Threshold.Window),
		ThresholdStep:          ptrInt(a.Threshold.Step),
		ThresholdNoiseFloor:    ptrFloat64(a.Threshold.NoiseFloor),
		ThresholdStreakLimit:   ptrInt(a.Threshold.StreakLimit),
		WaveformColumn:         ptrInt(0),
		TimeUnit:               ptrString(DefaultTimeUnit),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the Get* defaults, so
// partial configs are safe.
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

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %g", *c.SampleRateHz)
	}
	if c.WaveletCenterFrequency != nil && *c.WaveletCenterFrequency <= 0 {
		return fmt.Errorf("wavelet_center_frequency must be positive, got %g", *c.WaveletCenterFrequency)
	}
	if c.WaveletMethod != nil {
		if _, err := wavelet.ParseMethod(*c.WaveletMethod); err != nil {
			return fmt.Errorf("wavelet_method: %w", err)
		}
	}
	for i, f := range c.FrequenciesHz {
		if f <= 0 {
			return fmt.Errorf("frequencies_hz[%d] must be positive, got %g", i, f)
		}
	}

	bands := len(c.GetFrequenciesHz())
	if b := c.GetExtensionBand(); b < 0 || b >= bands {
		return fmt.Errorf("extension_band %d out of range [0, %d)", b, bands)
	}
	if c.FlexureBands != nil && len(c.FlexureBands) == 0 {
		return fmt.Errorf("flexure_bands must not be empty")
	}
	for _, b := range c.GetFlexureBands() {
		if b < 0 || b >= bands {
			return fmt.Errorf("flexure_bands entry %d out of range [0, %d)", b, bands)
		}
	}

	if c.WaveformColumn != nil && *c.WaveformColumn < 0 {
		return fmt.Errorf("waveform_column must be non-negative, got %d", *c.WaveformColumn)
	}
	if c.TimeUnit != nil && !units.IsValid(*c.TimeUnit) {
		return fmt.Errorf("time_unit %q invalid, use one of: %s", *c.TimeUnit, units.GetValidUnitsString())
	}

	if err := c.ArrivalConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// ArrivalConfig maps the detector fields onto arrival.Config.
func (c *TuningConfig) ArrivalConfig() arrival.Config {
	return arrival.Config{
		Extension: arrival.ExtensionParams{
			NoiseMultiplier: c.GetNoiseMultiplier(),
			NoiseMin:        c.GetNoiseMin(),
		},
		Threshold: arrival.ThresholdParams{
			Window:      c.GetThresholdWindow(),
			Step:        c.GetThresholdStep(),
			NoiseFloor:  c.GetThresholdNoiseFloor(),
			StreakLimit: c.GetThresholdStreakLimit(),
		},
	}
}

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *TuningConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return DefaultSampleRateHz
	}
	return *c.SampleRateHz
}

// GetWaveletCenterFrequency returns the wavelet_center_frequency value or the default.
func (c *TuningConfig) GetWaveletCenterFrequency() float64 {
	if c.WaveletCenterFrequency == nil {
		return wavelet.DefaultCenterFrequency
	}
	return *c.WaveletCenterFrequency
}

// GetWaveletMethod returns the wavelet_method value or the default.
func (c *TuningConfig) GetWaveletMethod() wavelet.Method {
	if c.WaveletMethod == nil {
		return wavelet.MethodConv
	}
	m, err := wavelet.ParseMethod(*c.WaveletMethod)
	if err != nil {
		return wavelet.MethodConv // default on parse error
	}
	return m
}

// GetFrequenciesHz returns the frequencies_hz value or the default.
func (c *TuningConfig) GetFrequenciesHz() []float64 {
	if len(c.FrequenciesHz) == 0 {
		return DefaultFrequenciesHz
	}
	return c.FrequenciesHz
}

// GetExtensionBand returns the extension_band value or the default.
func (c *TuningConfig) GetExtensionBand() int {
	if c.ExtensionBand == nil {
		return DefaultExtensionBand
	}
	return *c.ExtensionBand
}

// GetFlexureBands returns the flexure_bands value or the default.
func (c *TuningConfig) GetFlexureBands() []int {
	if len(c.FlexureBands) == 0 {
		return DefaultFlexureBands
	}
	return c.FlexureBands
}

// GetNoiseMultiplier returns the noise_multiplier value or the default.
func (c *TuningConfig) GetNoiseMultiplier() float64 {
	if c.NoiseMultiplier == nil {
		return arrival.DefaultNoiseMultiplier
	}
	return *c.NoiseMultiplier
}

// GetNoiseMin returns the noise_min value or the default.
func (c *TuningConfig) GetNoiseMin() float64 {
	if c.NoiseMin == nil {
		return arrival.DefaultNoiseMin
	}
	return *c.NoiseMin
}

// GetThresholdWindow returns the threshold_window value or the default.
func (c *TuningConfig) GetThresholdWindow() int {
	if c.ThresholdWindow == nil {
		return arrival.DefaultThresholdWindow
	}
	return *c.ThresholdWindow
}

// GetThresholdStep returns the threshold_step value or the default.
func (c *TuningConfig) GetThresholdStep() int {
	if c.ThresholdStep == nil {
		return arrival.DefaultThresholdStep
	}
	return *c.ThresholdStep
}

// GetThresholdNoiseFloor returns the threshold_noise_floor value or the default.
func (c *TuningConfig) GetThresholdNoiseFloor() float64 {
	if c.ThresholdNoiseFloor == nil {
		return arrival.DefaultThresholdNoiseFloor
	}
	return *c.ThresholdNoiseFloor
}

// GetThresholdStreakLimit returns the threshold_streak_limit value or the default.
func (c *TuningConfig) GetThresholdStreakLimit() int {
	if c.ThresholdStreakLimit == nil {
		return arrival.DefaultThresholdStreakLimit
	}
	return *c.ThresholdStreakLimit
}

// GetWaveformColumn returns the waveform_column value or the default.
func (c *TuningConfig) GetWaveformColumn() int {
	if c.WaveformColumn == nil {
		return 0
	}
	return *c.WaveformColumn
}

// GetTimeUnit returns the time_unit value or the default.
func (c *TuningConfig) GetTimeUnit() string {
	if c.TimeUnit == nil {
		return DefaultTimeUnit
	}
	return *c.TimeUnit
}

package arrival

import "fmt"

// Config bundles the settings of both mode detectors.
type Config struct {
	Extension ExtensionParams
	Threshold ThresholdParams
}

// DefaultConfig returns the tuned settings for both detectors.
func DefaultConfig() Config {
	return Config{
		Extension: DefaultExtensionParams(),
		Threshold: DefaultThresholdParams(),
	}
}

// Validate checks both parameter sets.
func (c Config) Validate() error {
	if err := c.Extension.Validate(); err != nil {
		return fmt.Errorf("extension: %w", err)
	}
	if err := c.Threshold.Validate(); err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	return nil
}

// Arrivals holds the arrival indices of both modes.
type Arrivals struct {
	Extension int `json:"extension_index"`
	Flexure   int `json:"flexure_index"`
}

// Detector runs both mode detectors with a fixed Config. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector validates cfg and returns a Detector using it.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector settings.
func (d *Detector) Config() Config { return d.cfg }

// Extension returns the extensional-mode arrival index in row.
func (d *Detector) Extension(row []float64) (int, error) {
	return d.cfg.Extension.Detect(row)
}

// Flexure returns the flexural-mode arrival index in row.
func (d *Detector) Flexure(row []float64) (int, error) {
	return d.cfg.Threshold.DetectFlexure(row)
}

// Detect runs the extensional detector on extRow and the flexural detector
// on flexRow.
func (d *Detector) Detect(extRow, flexRow []float64) (Arrivals, error) {
	ext, err := d.Extension(extRow)
	if err != nil {
		return Arrivals{}, fmt.Errorf("extensional mode: %w", err)
	}
	flex, err := d.Flexure(flexRow)
	if err != nil {
		return Arrivals{}, fmt.Errorf("flexural mode: %w", err)
	}
	return Arrivals{Extension: ext, Flexure: flex}, nil
}

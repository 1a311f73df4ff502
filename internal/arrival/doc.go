// Package arrival estimates the first-arrival sample index of the
// extensional and flexural plate wave modes in a wavelet decomposition row
// of an acoustic-emission waveform.
//
// The package is the detection core of the pipeline: it extracts local
// extrema (FindExtrema), weights and normalizes them by prominence
// (Normalize), estimates a noise threshold over a sliding window
// (ThresholdParams.Estimate) and runs two mode-specific heuristics
// (ExtensionParams.Detect, ThresholdParams.DetectFlexure).
//
// All functions are pure and allocate their own working buffers, so a
// single Detector may be shared between goroutines.
//
// Dependency rule: no I/O, no wavelet code, no SQL. Callers supply
// decomposition rows and convert the returned index to time themselves.
//
// An arrival index of 0 means "no arrival detected". It is returned as a
// value, not an error.
package arrival

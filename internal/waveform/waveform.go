// Package waveform loads acoustic-emission waveforms from text files.
//
// The format is one sample per line. Lines may instead hold several fields
// separated by whitespace, commas or semicolons, in which case one column
// is selected. Blank lines and lines starting with '#' are skipped.
package waveform

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/wavemode/internal/fsutil"
)

// MaxFileSize bounds the size of a waveform file accepted by Load.
const MaxFileSize = 64 << 20

// Waveform is a sampled signal with its provenance.
type Waveform struct {
	Source     string    `json:"source"`
	SampleRate float64   `json:"sample_rate_hz"`
	Samples    []float64 `json:"-"`
}

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.Samples) }

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / w.SampleRate
}

// ParseError reports the line that could not be read.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads samples from r, taking the given zero-based column from each
// data line.
func Parse(r io.Reader, column int) ([]float64, error) {
	if column < 0 {
		return nil, fmt.Errorf("column must be non-negative, got %d", column)
	}

	var samples []float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, isSeparator)
		if column >= len(fields) {
			return nil, &ParseError{Line: line, Text: text,
				Err: fmt.Errorf("column %d not present (%d fields)", column, len(fields))}
		}
		v, err := strconv.ParseFloat(fields[column], 64)
		if err != nil {
			return nil, &ParseError{Line: line, Text: text, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ParseError{Line: line, Text: text, Err: fmt.Errorf("non-finite sample")}
		}
		samples = append(samples, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples found")
	}
	return samples, nil
}

func isSeparator(r rune) bool {
	return r == ',' || r == ';' || r == ' ' || r == '\t'
}

// Load reads the waveform at path through fsys.
func Load(fsys fsutil.FileSystem, path string, column int, sampleRate float64) (*Waveform, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat waveform: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("waveform %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("waveform %s too large: %d bytes (max %d)", path, info.Size(), MaxFileSize)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), column, sampleRate)
}

// Read parses a waveform from r and labels it with source.
func Read(r io.Reader, source string, column int, sampleRate float64) (*Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", sampleRate)
	}
	samples, err := Parse(r, column)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	return &Waveform{Source: source, SampleRate: sampleRate, Samples: samples}, nil
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/timeutil"
	"github.com/banshee-data/wavemode/internal/version"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRecent when the caller passes a non-positive
// limit.
const DefaultListLimit = 50

// Run is a persisted analysis result.
type Run struct {
	RunID                string          `json:"run_id"`
	Source               string          `json:"source"`
	SampleRate           float64         `json:"sample_rate_hz"`
	Samples              int             `json:"samples"`
	ExtensionIndex       int             `json:"extension_index"`
	FlexureIndex         int             `json:"flexure_index"`
	ExtensionTimeUS      float64         `json:"extension_time_us"`
	FlexureTimeUS        float64         `json:"flexure_time_us"`
	ExtensionFrequencyHz float64         `json:"extension_frequency_hz"`
	FlexureFrequenciesHz []float64       `json:"flexure_frequencies_hz"`
	Params               json.RawMessage `json:"params,omitempty"`
	Version              string          `json:"version"`
	CreatedAt            int64           `json:"created_at"` // unix nanos
}

// RunFromResult converts an analysis result to a Run. params is the JSON
// of the tuning config used; nil is stored as {}.
func RunFromResult(r *analysis.Result, params json.RawMessage) *Run {
	return &Run{
		Source:               r.Source,
		SampleRate:           r.SampleRate,
		Samples:              r.Samples,
		ExtensionIndex:       r.ExtensionIndex,
		FlexureIndex:         r.FlexureIndex,
		ExtensionTimeUS:      r.ExtensionTimeUS,
		FlexureTimeUS:        r.FlexureTimeUS,
		ExtensionFrequencyHz: r.ExtensionFrequencyHz,
		FlexureFrequenciesHz: append([]float64(nil), r.FlexureFrequenciesHz...),
		Params:               params,
		Version:              version.Version,
	}
}

// RunStore reads and writes runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore returns a store over db. A nil clock uses the real clock.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db.DB, clock: clock}
}

// Insert stores run, assigning RunID and CreatedAt when they are unset.
func (s *RunStore) Insert(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	params := run.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	freqs, err := json.Marshal(nonNil(run.FlexureFrequenciesHz))
	if err != nil {
		return fmt.Errorf("encode flexure frequencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, source, sample_rate_hz, samples,
			extension_index, flexure_index, extension_time_us, flexure_time_us,
			extension_frequency_hz, flexure_frequencies_json,
			params_json, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.SampleRate, run.Samples,
		run.ExtensionIndex, run.FlexureIndex, run.ExtensionTimeUS, run.FlexureTimeUS,
		run.ExtensionFrequencyHz, string(freqs),
		string(params), run.Version, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

const runColumns = `run_id, source, sample_rate_hz, samples,
	extension_index, flexure_index, extension_time_us, flexure_time_us,
	extension_frequency_hz, flexure_frequencies_json,
	params_json, version, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run    Run
		freqs  string
		params string
	)
	if err := sc.Scan(
		&run.RunID, &run.Source, &run.SampleRate, &run.Samples,
		&run.ExtensionIndex, &run.FlexureIndex, &run.ExtensionTimeUS, &run.FlexureTimeUS,
		&run.ExtensionFrequencyHz, &freqs,
		&params, &run.Version, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(freqs), &run.FlexureFrequenciesHz); err != nil {
		return nil, fmt.Errorf("decode flexure frequencies of run %s: %w", run.RunID, err)
	}
	run.Params = json.RawMessage(params)
	return &run, nil
}

// Get returns the run with id, or ErrRunNotFound.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes the run with id, or returns ErrRunNotFound.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func nonNil(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}
	return s
}

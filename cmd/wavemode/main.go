package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/api"
	"github.com/banshee-data/wavemode/internal/config"
	"github.com/banshee-data/wavemode/internal/db"
	"github.com/banshee-data/wavemode/internal/fsutil"
	"github.com/banshee-data/wavemode/internal/monitoring"
	"github.com/banshee-data/wavemode/internal/report"
	"github.com/banshee-data/wavemode/internal/units"
	"github.com/banshee-data/wavemode/internal/version"
	"github.com/banshee-data/wavemode/internal/waveform"
)

var (
	configPath  = flag.String("config", "", "Path to a tuning config JSON file (defaults are built in)")
	sampleRate  = flag.Float64("rate", 0, "Sample rate in Hz (overrides the config when > 0)")
	column      = flag.Int("column", -1, "Zero-based sample column (overrides the config when >= 0)")
	timeUnit    = flag.String("unit", "", "Time unit for figures: "+units.GetValidUnitsString())
	workers     = flag.Int("workers", runtime.NumCPU(), "Number of waveforms analysed concurrently")
	jsonOut     = flag.Bool("json", false, "Print results as JSON instead of text")
	pngDir      = flag.String("png", "", "Directory to write PNG figures into")
	htmlOut     = flag.String("html", "", "File to write an interactive HTML report to")
	dbPath      = flag.String("db", "", "SQLite database to record runs in")
	listen      = flag.String("listen", "", "Serve the HTTP API on this address instead of analysing files")
	dataDir     = flag.String("data-dir", "", "Directory the HTTP API may read waveform files from")
	verbose     = flag.Bool("verbose", false, "Log per-band and per-waveform detail")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] waveform.txt...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	tuning, err := loadTuning(*configPath, *sampleRate, *column, *timeUnit)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	analyzer, err := analysis.NewAnalyzer(tuning)
	if err != nil {
		log.Fatalf("failed to create analyzer: %v", err)
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		if err := serve(ctx, *listen, api.NewServer(analyzer, database, *dataDir, nil)); err != nil {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := analyzeFiles(ctx, analyzer, database, fsutil.OSFileSystem{}, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadTuning reads the tuning config at path (or the defaults when path is
// empty) and applies the command-line overrides.
func loadTuning(path string, rate float64, col int, unit string) (*config.TuningConfig, error) {
	tuning := config.DefaultTuningConfig()
	if path != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(path); err != nil {
			return nil, err
		}
	}
	if rate > 0 {
		tuning.SampleRateHz = &rate
	}
	if col >= 0 {
		tuning.WaveformColumn = &col
	}
	if unit != "" {
		tuning.TimeUnit = &unit
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}

// analyzeFiles loads and analyses paths, prints the results to out and
// writes whichever of the PNG, HTML and database outputs are enabled.
func analyzeFiles(ctx context.Context, analyzer *analysis.Analyzer, database *db.DB, fsys fsutil.FileSystem, paths []string, out io.Writer) error {
	tuning := analyzer.Tuning()
	wfs := make([]*waveform.Waveform, 0, len(paths))
	for _, p := range paths {
		wf, err := waveform.Load(fsys, p, tuning.GetWaveformColumn(), tuning.GetSampleRateHz())
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		wf.Source = p
		wfs = append(wfs, wf)
	}

	start := time.Now()
	results, err := analyzer.AnalyzeAll(ctx, wfs, *workers)
	if err != nil {
		return err
	}
	monitoring.Debugf("analysis took %v", time.Since(start))

	if err := writeResults(out, results, *jsonOut); err != nil {
		return err
	}

	unit := tuning.GetTimeUnit()
	if *pngDir != "" {
		for _, r := range results {
			written, err := report.WritePNG(fsys, *pngDir, r, unit)
			if err != nil {
				return fmt.Errorf("failed to write figures for %s: %w", r.Source, err)
			}
			monitoring.Logf("wrote %d figures for %s", len(written), r.Source)
		}
	}
	if *htmlOut != "" {
		if err := writeHTML(fsys, *htmlOut, results, unit); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", *htmlOut)
	}
	if database != nil {
		if err := recordRuns(ctx, db.NewRunStore(database, nil), tuning, results); err != nil {
			return err
		}
	}
	return nil
}

// writeResults prints each summary separated by a blank line, or a JSON
// array of results.
func writeResults(w io.Writer, results []*analysis.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "== %s ==\n", r.Source)
		}
		if _, err := io.WriteString(w, r.Summary()); err != nil {
			return err
		}
	}
	return nil
}

func writeHTML(fsys fsutil.FileSystem, path string, results []*analysis.Result, unit string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.RenderHTML(f, results, report.HTMLOptions{Unit: unit}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRuns(ctx context.Context, store *db.RunStore, tuning *config.TuningConfig, results []*analysis.Result) error {
	params, err := json.Marshal(tuning)
	if err != nil {
		return fmt.Errorf("failed to encode tuning: %w", err)
	}
	for _, r := range results {
		run := db.RunFromResult(r, params)
		if err := store.Insert(ctx, run); err != nil {
			return fmt.Errorf("failed to record %s: %w", r.Source, err)
		}
		monitoring.Logf("recorded run %s for %s", run.RunID, r.Source)
	}
	return nil
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, addr string, s *api.Server) error {
	mux := s.ServeMux()
	if err := s.AttachAdminRoutes(mux); err != nil {
		return err
	}
	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
	return nil
}

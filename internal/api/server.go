package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/wavemode/internal/analysis"
	"github.com/banshee-data/wavemode/internal/arrival"
	"github.com/banshee-data/wavemode/internal/db"
	"github.com/banshee-data/wavemode/internal/fsutil"
	"github.com/banshee-data/wavemode/internal/httputil"
	"github.com/banshee-data/wavemode/internal/monitoring"
	"github.com/banshee-data/wavemode/internal/report"
	"github.com/banshee-data/wavemode/internal/security"
	"github.com/banshee-data/wavemode/internal/version"
	"github.com/banshee-data/wavemode/internal/waveform"
	"github.com/banshee-data/wavemode/internal/wavelet"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the analyzer and the run store over HTTP.
type Server struct {
	analyzer *analysis.Analyzer
	db       *db.DB
	store    *db.RunStore
	dataDir  string
	fsys     fsutil.FileSystem
}

// NewServer returns a server around analyzer. database may be nil, in which
// case results are not recorded and the run routes answer 503. dataDir is
// the directory ?file= names are resolved in; empty disables ?file=. A nil
// fsys reads from the OS.
func NewServer(analyzer *analysis.Analyzer, database *db.DB, dataDir string, fsys fsutil.FileSystem) *Server {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	s := &Server{
		analyzer: analyzer,
		db:       database,
		dataDir:  dataDir,
		fsys:     fsys,
	}
	if database != nil {
		s.store = db.NewRunStore(database, nil)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)
	return mux
}

// AttachAdminRoutes mounts the /debug/ pages when a run database is
// configured.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	if s.db == nil {
		return nil
	}
	return s.db.AttachAdminRoutes(mux)
}

// analyzeResponse is a result plus the id it was stored under.
type analyzeResponse struct {
	RunID string `json:"run_id,omitempty"`
	*analysis.Result
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tuning := s.analyzer.Tuning()

	column := tuning.GetWaveformColumn()
	if v := q.Get("column"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid column %q", v))
			return
		}
		column = c
	}
	rate := tuning.GetSampleRateHz()
	if v := q.Get("rate"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !(f > 0) {
			httputil.BadRequest(w, fmt.Sprintf("invalid rate %q", v))
			return
		}
		rate = f
	}
	format := q.Get("format")
	if format != "" && format != "json" && format != "html" {
		httputil.BadRequest(w, fmt.Sprintf("unknown format %q", format))
		return
	}

	wf, status, err := s.readWaveform(r, column, rate)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), wf)
	if err != nil {
		httputil.WriteJSONError(w, analysisStatus(err), err.Error())
		return
	}

	resp := analyzeResponse{Result: res}
	if s.store != nil {
		params, err := json.Marshal(tuning)
		if err != nil {
			httputil.InternalServerError(w, "failed to encode tuning")
			return
		}
		run := db.RunFromResult(res, params)
		if err := s.store.Insert(r.Context(), run); err != nil {
			monitoring.Logf("failed to record run for %s: %v", res.Source, err)
			httputil.InternalServerError(w, "failed to record run")
			return
		}
		resp.RunID = run.RunID
	}

	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if resp.RunID != "" {
			w.Header().Set("X-Run-ID", resp.RunID)
		}
		if err := report.RenderHTML(w, []*analysis.Result{res}, report.HTMLOptions{Unit: tuning.GetTimeUnit()}); err != nil {
			monitoring.Logf("failed to render chart for %s: %v", res.Source, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// readWaveform loads the request waveform from ?file= or the body and
// returns the status to answer with on failure.
func (s *Server) readWaveform(r *http.Request, column int, rate float64) (*waveform.Waveform, int, error) {
	name := r.URL.Query().Get("file")
	if name == "" {
		source := r.URL.Query().Get("source")
		if source == "" {
			source = "request"
		}
		body := http.MaxBytesReader(nil, r.Body, waveform.MaxFileSize)
		wf, err := waveform.Read(body, source, column, rate)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, http.StatusRequestEntityTooLarge, err
			}
			return nil, http.StatusBadRequest, err
		}
		return wf, 0, nil
	}

	if s.dataDir == "" {
		return nil, http.StatusBadRequest, errors.New("file lookups are disabled")
	}
	path, err := security.ResolveWithin(s.dataDir, name)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	wf, err := waveform.Load(s.fsys, path, column, rate)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, http.StatusNotFound, fmt.Errorf("file %s not found", name)
		}
		return nil, http.StatusBadRequest, err
	}
	wf.Source = name
	return wf, 0, nil
}

// analysisStatus maps a pipeline error to a status: signals the detectors
// reject are unprocessable, everything else is a server fault.
func analysisStatus(err error) int {
	var stage *arrival.StageError
	switch {
	case errors.As(err, &stage), errors.Is(err, wavelet.ErrScaleTooSmall):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.Unavailable(w, "run database not configured")
		return
	}
	limit := db.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*db.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.Unavailable(w, "run database not configured")
		return
	}
	run, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.Unavailable(w, "run database not configured")
		return
	}
	err := s.store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to delete run: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.analyzer.Tuning())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

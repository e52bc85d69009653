// Package api serves the lap-delta pipeline over HTTP: lap storage,
// comparison runs and rendered delta charts.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lapdelta.report/internal/chart"
	"github.com/banshee-data/lapdelta.report/internal/config"
	"github.com/banshee-data/lapdelta.report/internal/db"
	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
	"github.com/banshee-data/lapdelta.report/internal/units"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const maxRequestBody = 10 << 20 // 10MB; a lap trace is a few thousand samples

type Server struct {
	db  *db.DB
	cfg *config.PipelineConfig
}

// NewServer wires the API to a database and a base pipeline config.
// Per-request overrides are applied on top of cfg.
func NewServer(database *db.DB, cfg *config.PipelineConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	return &Server{
		db:  database,
		cfg: cfg,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/laps", s.handleLaps)
	mux.HandleFunc("/api/laps/", s.showLap)
	mux.HandleFunc("/api/compare", s.handleCompare)
	mux.HandleFunc("/api/compare/", s.showComparison)
	mux.HandleFunc("/chart/delta", s.showDeltaChart)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
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
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writePipelineError maps pipeline and storage failures to status codes:
// bad input data is the client's fault, a missing row is 404, anything
// else is a server error.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var invalid *telemetry.InvalidTraceError
	var degenerate *telemetry.DegenerateLapError
	switch {
	case errors.As(err, &invalid), errors.As(err, &degenerate):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleLaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.saveLap(w, r)
	case http.MethodGet:
		s.listLaps(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) saveLap(w http.ResponseWriter, r *http.Request) {
	var lap telemetry.LapRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&lap); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid lap payload: %v", err))
		return
	}
	if lap.Driver == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'driver'")
		return
	}
	if lap.LapTime <= 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'lap_time'")
		return
	}

	lapID, err := s.db.SaveLap(lap)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"lap_id": lapID})
}

func (s *Server) listLaps(w http.ResponseWriter, r *http.Request) {
	laps, err := s.db.ListLaps()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list laps: %v", err))
		return
	}
	if laps == nil {
		laps = []db.LapSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(laps); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write laps")
	}
}

// LapResponse is a stored lap with its speed column converted to the
// requested units.
type LapResponse struct {
	LapID      string `json:"lap_id"`
	SpeedUnits string `json:"speed_units"`
	telemetry.LapRecord
}

// convertTraceSpeeds converts a trace's speed column from the stored
// km/h to the target units. The stored trace is never modified.
func convertTraceSpeeds(tr telemetry.Trace, targetUnits string) telemetry.Trace {
	if targetUnits == units.KMPH || targetUnits == units.KPH {
		return tr
	}
	out := tr.Clone()
	for i, speed := range out.Speeds {
		out.Speeds[i] = units.ConvertSpeed(units.KMHToMPS(speed), targetUnits)
	}
	return out
}

func (s *Server) showLap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/laps/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid lap id")
		return
	}

	// Traces are stored in km/h; ?units= converts the speed column.
	targetUnits := r.URL.Query().Get("units")
	if targetUnits == "" {
		targetUnits = units.KMPH
	}
	if !units.IsValid(targetUnits) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid 'units' parameter %q; valid units: %s", targetUnits, units.GetValidUnitsString()))
		return
	}

	lap, err := s.db.GetLap(id)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	lap.Trace = convertTraceSpeeds(lap.Trace, targetUnits)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(LapResponse{
		LapID:      id,
		SpeedUnits: targetUnits,
		LapRecord:  lap,
	}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write lap")
	}
}

// CompareRequest carries one comparison run. Each lap comes either
// inline or as a stored lap id. Omitted config fields fall back to the
// server's base config.
type CompareRequest struct {
	Lap1       *telemetry.LapRecord `json:"lap1,omitempty"`
	Lap2       *telemetry.LapRecord `json:"lap2,omitempty"`
	Lap1ID     string               `json:"lap1_id,omitempty"`
	Lap2ID     string               `json:"lap2_id,omitempty"`
	NumWindows *int                 `json:"num_windows,omitempty"`
	GridStepM  *float64             `json:"grid_step_m,omitempty"`
}

// CompareResponse is the stored comparison plus the per-window
// alignment diagnostics, which are not persisted.
type CompareResponse struct {
	db.ComparisonRecord
	Windows []telemetry.AlignmentWindow `json:"windows"`
	Roles   telemetry.RoleAssignment    `json:"roles"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.runComparison(w, r)
	case http.MethodGet:
		s.listComparisons(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) runComparison(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid compare payload: %v", err))
		return
	}

	lap1, err := s.resolveLap(req.Lap1, req.Lap1ID, "lap1")
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	lap2, err := s.resolveLap(req.Lap2, req.Lap2ID, "lap2")
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	cfg := s.cfg
	if req.NumWindows != nil {
		cfg = cfg.WithNumWindows(*req.NumWindows)
	}
	if req.GridStepM != nil {
		cfg = cfg.WithGridStep(*req.GridStepM)
	}
	if err := cfg.Validate(); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid config override: %v", err))
		return
	}

	res, err := delta.NewPipeline(cfg).Calculate(lap1, lap2)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	rec := db.NewComparisonRecord(res, lap1.Driver, lap2.Driver, req.Lap1ID, req.Lap2ID)
	id, err := s.db.SaveComparison(rec)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to store comparison: %v", err))
		return
	}
	rec.ComparisonID = id

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CompareResponse{
		ComparisonRecord: rec,
		Windows:          res.Windows,
		Roles:            res.Roles,
	})
}

// resolveLap returns the inline lap when present, otherwise loads the
// stored one. Exactly one of the two must be given.
func (s *Server) resolveLap(inline *telemetry.LapRecord, lapID, field string) (telemetry.LapRecord, error) {
	switch {
	case inline != nil && lapID != "":
		return telemetry.LapRecord{}, &telemetry.InvalidTraceError{
			Reason: fmt.Sprintf("%s: give either an inline lap or a lap id, not both", field),
		}
	case inline != nil:
		return *inline, nil
	case lapID != "":
		return s.db.GetLap(lapID)
	default:
		return telemetry.LapRecord{}, &telemetry.InvalidTraceError{
			Reason: fmt.Sprintf("%s: missing lap", field),
		}
	}
}

func (s *Server) listComparisons(w http.ResponseWriter, r *http.Request) {
	recs, err := s.db.ListComparisons()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list comparisons: %v", err))
		return
	}
	if recs == nil {
		recs = []db.ComparisonRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write comparisons")
	}
}

func (s *Server) showComparison(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/compare/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid comparison id")
		return
	}

	rec, err := s.db.GetComparison(id)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write comparison")
	}
}

func (s *Server) showDeltaChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.URL.Query().Get("comparison_id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'comparison_id' parameter")
		return
	}

	rec, err := s.db.GetComparison(id)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	cmp := chart.Comparison{
		Driver1:  rec.Driver1,
		Driver2:  rec.Driver2,
		LapTime1: rec.LapTime1,
		LapTime2: rec.LapTime2,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.RenderDeltaHTML(w, rec.Series, cmp); err != nil {
		log.Printf("failed to render delta chart %s: %v", id, err)
	}
}

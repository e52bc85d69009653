// Command lapdelta compares two laps of telemetry and reports where the
// time was gained and lost. It runs either as a one-shot comparison
// writing artifacts to a directory, or as an HTTP server backed by a
// sqlite database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/lapdelta.report/api"
	"github.com/banshee-data/lapdelta.report/internal/chart"
	"github.com/banshee-data/lapdelta.report/internal/config"
	"github.com/banshee-data/lapdelta.report/internal/db"
	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/export"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

var (
	listen      = flag.String("listen", "", "Listen address for the HTTP API (e.g. :8080); empty for one-shot mode")
	dbPath      = flag.String("db", "lapdelta.db", "Path to the sqlite database file")
	lap1Path    = flag.String("lap1", "", "Path to the first lap JSON file")
	lap2Path    = flag.String("lap2", "", "Path to the second lap JSON file")
	outDir      = flag.String("out", "out", "Artifact output directory for one-shot mode")
	configPath  = flag.String("config", "", "Path to a pipeline config JSON file")
	numWindows  = flag.Int("windows", 0, "Override the number of alignment windows")
	gridStep    = flag.Float64("grid", 0, "Override the delta grid step in meters")
	sessionYear = flag.Int("session-year", 0, "Session year for export metadata")
	sessionType = flag.String("session-type", "R", "Session type for export metadata (R, Q, FP1...)")
	sessionName = flag.String("session-name", "", "Session name for export metadata")
)

func main() {
	flag.Parse()

	// 'lapdelta [flags] migrate <action>' dispatches to the migration
	// tool and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	if *listen != "" {
		runServer()
		return
	}

	if *lap1Path == "" || *lap2Path == "" {
		log.Fatal("Either -listen or both -lap1 and -lap2 are required")
	}
	runComparison()
}

func loadConfig() *config.PipelineConfig {
	cfg := config.EmptyPipelineConfig()
	if *configPath != "" {
		loaded, err := config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *numWindows > 0 {
		cfg = cfg.WithNumWindows(*numWindows)
	}
	if *gridStep > 0 {
		cfg = cfg.WithGridStep(*gridStep)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func runServer() {
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(database, loadConfig()).ServeMux()),
	}

	go func() {
		log.Printf("Listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}

func runComparison() {
	lap1, err := loadLap(*lap1Path)
	if err != nil {
		log.Fatalf("Failed to load lap 1: %v", err)
	}
	lap2, err := loadLap(*lap2Path)
	if err != nil {
		log.Fatalf("Failed to load lap 2: %v", err)
	}

	res, err := delta.NewPipeline(loadConfig()).Calculate(lap1, lap2)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	ref := lap1.Driver
	if res.ReferenceLap() == 2 {
		ref = lap2.Driver
	}
	log.Printf("Compared %s (%.3fs) vs %s (%.3fs): reference %s, final gap %.3fs",
		lap1.Driver, lap1.LapTime, lap2.Driver, lap2.LapTime, ref, res.FinalGap())

	if err := writeArtifacts(res, lap1, lap2); err != nil {
		log.Fatalf("Failed to write artifacts: %v", err)
	}
}

func loadLap(path string) (telemetry.LapRecord, error) {
	var lap telemetry.LapRecord

	data, err := os.ReadFile(path)
	if err != nil {
		return lap, fmt.Errorf("failed to read lap file: %w", err)
	}
	if err := json.Unmarshal(data, &lap); err != nil {
		return lap, fmt.Errorf("failed to parse lap file: %w", err)
	}
	if lap.Driver == "" || lap.LapTime <= 0 {
		return lap, fmt.Errorf("lap file %s is missing driver or lap_time", path)
	}
	return lap, nil
}

// writeArtifacts writes the 3D export JSON, the interactive dashboard
// and a PNG of the delta curve into the output directory.
func writeArtifacts(res *delta.Result, lap1, lap2 telemetry.LapRecord) error {
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	session := export.SessionMeta{Year: *sessionYear, Type: *sessionType, Name: *sessionName}
	doc, err := export.BuildDocument(res, lap1, lap2, session)
	if err != nil {
		return fmt.Errorf("failed to build export document: %w", err)
	}
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("telemetry_%s_vs_%s.json", lap1.Driver, lap2.Driver))
	if err := export.WriteFile(doc, jsonPath); err != nil {
		return err
	}
	log.Printf("Wrote %s", jsonPath)

	cmp := chart.Comparison{
		Driver1:  lap1.Driver,
		Driver2:  lap2.Driver,
		LapTime1: lap1.LapTime,
		LapTime2: lap2.LapTime,
	}

	htmlPath := filepath.Join(*outDir, "dashboard.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("failed to create dashboard file: %w", err)
	}
	if err := chart.RenderDashboard(f, res, cmp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close dashboard file: %w", err)
	}
	log.Printf("Wrote %s", htmlPath)

	pngPath := filepath.Join(*outDir, "delta.png")
	if err := chart.SaveDeltaPNG(res.Series, cmp, pngPath); err != nil {
		return err
	}
	log.Printf("Wrote %s", pngPath)

	return nil
}

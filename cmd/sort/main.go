// Package main runs the SORT tracker over a MOTChallenge detection file and
// writes the confirmed tracks of every frame in MOT format.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sort/internal/config"
	"github.com/banshee-data/sort/internal/debug"
	"github.com/banshee-data/sort/internal/monitoring"
	"github.com/banshee-data/sort/internal/mot"
	"github.com/banshee-data/sort/internal/tracking"
	"github.com/banshee-data/sort/internal/version"
)

// Config holds the command-line configuration.
type Config struct {
	InputFile  string
	OutputFile string
	ConfigFile string
	DebugOut   string
	Verbose    bool

	// Tuning overrides; applied only when the flag was given.
	MaxAge       int
	IOUThreshold float64
	MinHits      int
	Solver       string

	set map[string]bool
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID   string
	Frames  int
	Skipped int
	Metrics tracking.TrackingMetrics
	Elapsed time.Duration
}

func main() {
	cfg, showVersion := parseFlags(os.Args[1:])
	if showVersion {
		fmt.Println(version.String())
		return
	}
	if cfg.InputFile == "" {
		log.Fatal("Detection file is required (-input)")
	}

	summary, err := run(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("Tracking failed: %v", err)
	}
	log.Printf("Run %s: %d frames, %d tracks created, %d matches, mean NIS %.3f (%v)",
		summary.RunID, summary.Frames, summary.Metrics.TracksCreated,
		summary.Metrics.Matches, summary.Metrics.MeanNIS, summary.Elapsed)
}

func parseFlags(args []string) (Config, bool) {
	var cfg Config
	var showVersion bool

	fs := flag.NewFlagSet("sort", flag.ExitOnError)
	fs.StringVar(&cfg.InputFile, "input", "", "Path to MOT detection file (det.txt)")
	fs.StringVar(&cfg.OutputFile, "output", "", "Output file for tracks (default stdout)")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Tuning config JSON (default built-in values)")
	fs.StringVar(&cfg.DebugOut, "debug-out", "", "Write per-frame algorithm internals as JSON lines")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable per-track debug logging")
	fs.IntVar(&cfg.MaxAge, "max-age", 0, "Override max_age")
	fs.Float64Var(&cfg.IOUThreshold, "iou", 0, "Override iou_threshold")
	fs.IntVar(&cfg.MinHits, "min-hits", 0, "Override min_hits")
	fs.StringVar(&cfg.Solver, "solver", "", "Override solver (munkres, go-hungarian)")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(args)

	cfg.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	return cfg, showVersion
}

// loadTuning reads the config file, if any, and applies flag overrides.
func loadTuning(cfg Config) (*config.TuningConfig, error) {
	tuning := config.DefaultTuningConfig()
	if cfg.ConfigFile != "" {
		loaded, err := config.LoadTuningConfig(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		tuning = loaded
	}

	if cfg.set["max-age"] {
		tuning.MaxAge = &cfg.MaxAge
	}
	if cfg.set["iou"] {
		tuning.IOUThreshold = &cfg.IOUThreshold
	}
	if cfg.set["min-hits"] {
		tuning.MinHits = &cfg.MinHits
	}
	if cfg.set["solver"] {
		tuning.Solver = &cfg.Solver
	}

	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}

func run(cfg Config, stdout io.Writer) (*RunSummary, error) {
	start := time.Now()
	runID := uuid.New().String()
	monitoring.SetDebug(cfg.Verbose)

	tuning, err := loadTuning(cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	trackerCfg := tracking.TrackerConfigFromTuning(tuning)

	in, err := os.Open(cfg.InputFile)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	seq, err := mot.ReadDetections(in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.InputFile, err)
	}
	if seq.Skipped > 0 {
		monitoring.Logf("[sort] %s: skipped %d degenerate boxes", cfg.InputFile, seq.Skipped)
	}

	out := stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		out = f
	}
	writer := mot.NewWriter(out)

	opts := []tracking.Option{}
	var collector *debug.DebugCollector
	var debugEnc *json.Encoder
	if cfg.DebugOut != "" {
		f, err := os.Create(cfg.DebugOut)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		collector = debug.NewDebugCollector()
		collector.SetEnabled(true)
		debugEnc = json.NewEncoder(f)
		opts = append(opts, tracking.WithDebugCollector(collector))
	}

	tracker, err := tracking.NewTracker(trackerCfg, opts...)
	if err != nil {
		return nil, err
	}

	monitoring.Logf("[sort] run %s: %s, %d frames, max_age=%d iou=%.2f min_hits=%d solver=%s",
		runID, cfg.InputFile, seq.MaxFrame, trackerCfg.MaxAge, trackerCfg.IOUThreshold,
		trackerCfg.MinHits, trackerCfg.Solver)

	for frame := 1; frame <= seq.MaxFrame; frame++ {
		if collector != nil {
			collector.BeginFrame(uint64(frame))
		}
		if err := tracker.Run(seq.Detections(frame)); err != nil {
			return nil, err
		}
		if err := writer.WriteFrame(frame, tracker.ConfirmedTracks(trackerCfg.MinHits)); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", frame, err)
		}
		if collector != nil {
			if err := debugEnc.Encode(collector.Emit()); err != nil {
				return nil, fmt.Errorf("write debug frame %d: %w", frame, err)
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}

	return &RunSummary{
		RunID:   runID,
		Frames:  seq.MaxFrame,
		Skipped: seq.Skipped,
		Metrics: tracker.GetTrackingMetrics(),
		Elapsed: time.Since(start),
	}, nil
}

// Package main provides a background audio capture daemon that keeps a
// rolling history of microphone input, listens for a wakeword and exposes
// capture commands over HTTP.
//
// Usage:
//
//	earshot [-config path/to/config.json]
//
// If -config is not specified, the daemon looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/earshot-audio/earshot/internal/capture"
	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/eventlog"
	"github.com/earshot-audio/earshot/internal/notify"
	"github.com/earshot-audio/earshot/internal/storage"
	"github.com/earshot-audio/earshot/internal/util"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

// haltGrace is how long shutdown waits for the capture loop to release the
// audio device before exiting anyway.
const haltGrace = 2 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()
	setLogLevel(snap.LogLevel)

	if snap.Wakeword.AccessKey == "" {
		slog.Error("wakeword access key is not configured (set wakeword.access_key or PICOVOICE_ACCESS_KEY)")
		os.Exit(1)
	}
	if snap.SampleRate != wakeword.SampleRate() {
		slog.Warn("configured sample rate differs from the detector's native rate",
			"configured", snap.SampleRate, "detector", wakeword.SampleRate())
	}

	detector, err := wakeword.NewPorcupine(wakeword.Config{
		AccessKey:     snap.Wakeword.AccessKey,
		ModelPath:     snap.Wakeword.ModelPath,
		Keywords:      snap.Wakeword.Keywords,
		KeywordPaths:  snap.Wakeword.KeywordPaths,
		Sensitivities: snap.Wakeword.Sensitivities,
	})
	if err != nil {
		slog.Error("failed to initialize wakeword detector", "error", err)
		os.Exit(1)
	}

	var events *eventlog.Logger
	if snap.EventLogPath != "" {
		events, err = eventlog.NewLogger(snap.EventLogPath)
		if err != nil {
			slog.Error("failed to open event log", "error", err)
			os.Exit(1)
		}
	}

	state := capture.NewState(snap.BufferCapacity(), snap.OutputDir)
	engine := capture.NewEngine(state, detector, capture.Config{
		SampleRate: snap.SampleRate,
		Channels:   snap.Channels,
	})

	notifier := notify.NewDetectionNotifier(cfg)
	uploader := storage.NewUploader(snap.S3, events)
	cleaner := storage.NewCleaner(snap.OutputDir, snap.RetentionDays, events)
	srv := NewServer(cfg, engine, events, uploader)

	engine.OnDetection(func(det wakeword.Detection) {
		_ = events.Log(eventlog.Event{Type: eventlog.Detection, Keyword: det.Keyword})
	})
	engine.OnDetection(notifier.HandleDetection)
	engine.OnDetection(srv.BroadcastDetection)

	if err := engine.Start(); err != nil {
		slog.Error("failed to start capture", "error", err)
		if cerr := detector.Close(); cerr != nil {
			slog.Warn("failed to release detector", "error", cerr)
		}
		os.Exit(1)
	}
	_ = events.Log(eventlog.Event{Type: eventlog.Started})

	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)

	// Halt can come from the API or from a signal; both end here.
	select {
	case <-sigChan:
		slog.Info("shutdown signal received")
		engine.Halt()
	case <-engine.HaltRequested():
	}

	if !engine.WaitStopped(haltGrace) {
		slog.Warn("capture loop did not stop in time, exiting anyway")
	}
	if err := detector.Close(); err != nil {
		slog.Warn("failed to release detector", "error", err)
	}

	srv.version.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	uploader.Stop()
	cleaner.Stop()

	_ = events.Log(eventlog.Event{Type: eventlog.Halted})
	if err := events.Close(); err != nil {
		slog.Warn("failed to close event log", "error", err)
	}

	slog.Info("shutdown complete")
	os.Exit(0)
}

// setLogLevel applies the configured log level to the default logger.
func setLogLevel(level string) {
	switch level {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	default:
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}
}

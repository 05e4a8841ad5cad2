package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	roicropper "github.com/menta2k/roi-cropper"
	"github.com/menta2k/roi-cropper/internal/config"
	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/internal/utils"
	"github.com/menta2k/roi-cropper/pkg/extract"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit
func run() int {
	var in, out, configPath, backend, url, model, logLevel string
	var blur, minW, minH int
	var cannyLow, cannyHigh float64
	var checkVision bool

	flag.StringVar(&in, "in", "", "directory with composite scans (default composites)")
	flag.StringVar(&out, "out", "", "directory for extracted photos (default extracts)")
	flag.StringVar(&configPath, "config", "", "config file (.json or .toml), defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&backend, "backend", "", "region finder: contour|ollama|llamacpp (default contour)")
	flag.StringVar(&url, "url", "", "vision server URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.IntVar(&blur, "blur", 0, "Gaussian blur kernel size, odd (default 5)")
	flag.Float64Var(&cannyLow, "canny-low", 0, "Canny low threshold (default 50)")
	flag.Float64Var(&cannyHigh, "canny-high", 0, "Canny high threshold (default 150)")
	flag.IntVar(&minW, "min-width", 0, "drop boxes this wide or narrower (default 100)")
	flag.IntVar(&minH, "min-height", 0, "drop boxes this tall or shorter (default 100)")
	flag.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	flag.BoolVar(&checkVision, "check-vision", false, "ask the vision model to describe the first image before extracting")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fail(nil, "failed to load config", err)
	}

	// flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			cfg.Extractor.InputDir = in
		case "out":
			cfg.Extractor.OutputDir = out
		case "backend":
			cfg.Extractor.Backend = backend
		case "url":
			cfg.Vision.URL = url
		case "model":
			cfg.Vision.Model = model
		case "blur":
			cfg.Extractor.BlurKernel = blur
		case "canny-low":
			cfg.Extractor.CannyLow = cannyLow
		case "canny-high":
			cfg.Extractor.CannyHigh = cannyHigh
		case "min-width":
			cfg.Extractor.MinWidth = minW
		case "min-height":
			cfg.Extractor.MinHeight = minH
		case "log-level":
			cfg.Log.Level = logLevel
		}
	})

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fail(nil, "invalid log settings", err)
	}
	if err := cfg.Validate(); err != nil {
		return fail(logger, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting extraction",
		"version", roicropper.GetVersion(),
		"backend", cfg.Extractor.Backend,
		"input", cfg.Extractor.InputDir,
		"output", cfg.Extractor.OutputDir)

	finder, err := roicropper.NewFinder(cfg, logger)
	if err != nil {
		return fail(logger, "failed to create finder", err)
	}
	if checkVision {
		if err := preflight(ctx, logger, finder, cfg.Extractor.InputDir); err != nil {
			return fail(logger, "vision check failed", err)
		}
	}

	if _, err := roicropper.ExtractDirectory(ctx, cfg, finder, logger, cfg.Extractor.InputDir, cfg.Extractor.OutputDir); err != nil {
		return fail(logger, "extraction stopped", err)
	}
	return 0
}

// preflight returns an error when the model cannot see the first composite
func preflight(ctx context.Context, logger *slog.Logger, finder extract.Finder, dir string) error {
	files, _, err := utils.ListJPEGFiles(dir)
	if err != nil || len(files) == 0 {
		logger.Warn("no image to check the vision model with", "dir", dir, "err", err)
		return nil
	}
	text, err := roicropper.CheckVision(ctx, finder, filepath.Join(dir, files[0]))
	switch {
	case errors.Is(err, roicropper.ErrNotVision):
		logger.Info("contour backend selected, skipping vision check")
	case err != nil:
		return err
	default:
		logger.Info("vision check", "image", files[0], "answer", text)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if p := config.GetConfigPath(); utils.FileExists(p) {
		return config.LoadFromFile(p)
	}
	return config.Default(), nil
}

func fail(logger *slog.Logger, msg string, err error) int {
	logging.OrDefault(logger).Error(msg, "err", err)
	return 1
}

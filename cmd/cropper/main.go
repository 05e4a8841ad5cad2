package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	roicropper "github.com/menta2k/roi-cropper"
	"github.com/menta2k/roi-cropper/internal/config"
	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/internal/utils"
	"github.com/menta2k/roi-cropper/pkg/display"
	"github.com/menta2k/roi-cropper/pkg/gui"
	"github.com/menta2k/roi-cropper/pkg/session"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit
func run() int {
	var inputDir, outputDir, configPath, screen, format, logLevel string
	var ratio float64
	var quality int

	flag.StringVar(&inputDir, "input_dir", "", "directory with JPEG images to crop (required)")
	flag.StringVar(&inputDir, "i", "", "shorthand for -input_dir")
	flag.StringVar(&outputDir, "output_dir", "", "directory for crops and rois.json (required)")
	flag.StringVar(&outputDir, "o", "", "shorthand for -output_dir")
	flag.StringVar(&configPath, "config", "", "config file (.json or .toml), defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&screen, "screen", "", "screen size WIDTHxHEIGHT, probed when empty")
	flag.Float64Var(&ratio, "ratio", 0, "share of screen height an image may take (0..1]")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP crop quality (1-100)")
	flag.StringVar(&format, "format", "", "crop format override: jpg|png|webp")
	flag.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fail(nil, "failed to load config", err)
	}

	// flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ratio":
			cfg.Cropper.DisplayRatio = ratio
		case "quality":
			cfg.Cropper.Quality = quality
		case "format":
			cfg.Cropper.OutputFormat = format
		case "log-level":
			cfg.Log.Level = logLevel
		}
	})
	if screen != "" {
		s, err := display.ParseScreen(screen)
		if err != nil {
			return fail(nil, "invalid -screen", err)
		}
		cfg.Cropper.ScreenWidth, cfg.Cropper.ScreenHeight = s.Width, s.Height
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fail(nil, "invalid log settings", err)
	}
	if err := cfg.Validate(); err != nil {
		return fail(logger, "invalid configuration", err)
	}

	// fail before any window opens
	if err := session.ValidateDirs(inputDir, outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "usage: %s -i input_dir -o output_dir [-screen 1920x1080] [-ratio 0.7] [-format jpg|png|webp]\n", filepath.Base(os.Args[0]))
		return fail(logger, "invalid directories", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting cropper", "version", roicropper.GetVersion(), "input", inputDir, "output", outputDir)
	err = gui.Run(logger, func(sel *gui.Selector) error {
		_, err := roicropper.CropDirectory(ctx, cfg, sel, logger, inputDir, outputDir)
		return err
	})
	if err != nil {
		return fail(logger, "cropping stopped", err)
	}
	return 0
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

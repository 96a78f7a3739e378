// capture-interest captures and classifies a frame every check interval,
// and on the longer capture interval saves the most recent frame if it was
// classified interesting.
//
// Usage:
//
//	capture-interest [flags] [output_dir] [model_dir]
//
// output_dir defaults to the current directory, model_dir to ~/model.
// With -save-uninteresting, frames classified uninteresting are written to
// output_dir/uninteresting/ as retraining material.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/captrap/captrap/internal/config"
	"github.com/captrap/captrap/internal/log"
	"github.com/captrap/captrap/pkg/camera"
	"github.com/captrap/captrap/pkg/classify"
	"github.com/captrap/captrap/pkg/loop"
	"github.com/captrap/captrap/pkg/store"
)

func main() {
	config.LoadDotenv()

	check := flag.Duration("check",
		config.Duration("CAPTRAP_CHECK", config.DefaultCheckInterval),
		"time between classification checks")
	interval := flag.Duration("interval",
		config.Duration("CAPTRAP_INTERVAL", config.DefaultCaptureInterval),
		"time between save decisions")
	saveUninteresting := flag.Bool("save-uninteresting", false,
		"also save uninteresting frames under uninteresting/ for retraining")
	device := flag.String("device", config.Device(), "camera device index or path")
	quality := flag.Int("quality", config.DefaultJPEGQuality, "JPEG quality (1-100)")
	maxFailures := flag.Int("max-failures", config.DefaultMaxFailures,
		"consecutive failed ticks tolerated before giving up")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	outDir := flag.Arg(0)
	if outDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fatal("resolve working directory", err)
		}
		outDir = wd
	}
	modelDir := flag.Arg(1)
	if modelDir == "" {
		modelDir = config.HomeDir("model")
	}

	st, err := store.New(outDir, *quality)
	if err != nil {
		fatal("open output directory", err)
	}
	if *saveUninteresting {
		if err := st.EnsureSubdir(store.UninterestingDir); err != nil {
			fatal("create sample directory", err)
		}
	}

	model, err := classify.Load(classify.DefaultConfig(modelDir))
	if err != nil {
		fatal("load interest model", err)
	}
	defer model.Close()
	log.Info("interest model loaded", "dir", modelDir, "labels", model.Labels())

	cfg := camera.DefaultConfig()
	cfg.Device = *device
	cam, err := camera.Open(cfg)
	if err != nil {
		fatal("open camera", err)
	}
	defer cam.Close()

	r, err := loop.NewFilterRunner(cam, model, nil, st, loop.Config{
		CheckInterval:     *check,
		CaptureInterval:   *interval,
		MaxFailures:       *maxFailures,
		SaveUninteresting: *saveUninteresting,
	})
	if err != nil {
		fatal("configure capture loop", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("capture starting, press Ctrl+C to stop",
		"dir", st.Root(), "check", *check, "interval", *interval, "device", *device)

	if err := r.Run(ctx); err != nil {
		log.Error("capture loop aborted", "error", err)
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"Usage: capture-interest [flags] [output_dir] [model_dir]\n\n"+
			"Classifies a camera frame every check interval; on each capture\n"+
			"interval, saves the most recent frame if it was interesting.\n\nFlags:\n")
	flag.PrintDefaults()
}

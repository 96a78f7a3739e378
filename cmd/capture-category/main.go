// capture-category is capture-interest with a second, multi-category
// model: frames that pass the interest filter are saved into a
// subdirectory named after the top category label.
//
// Usage:
//
//	capture-category [flags] [output_dir] [interest_model_dir] [category_model_dir]
//
// output_dir defaults to the current directory, the model directories to
// ~/models/interest and ~/models/categories. A subdirectory per category
// label is created at startup from the category model's labels.txt.
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
	interestDir := flag.Arg(1)
	if interestDir == "" {
		interestDir = config.HomeDir("models", "interest")
	}
	categoryDir := flag.Arg(2)
	if categoryDir == "" {
		categoryDir = config.HomeDir("models", "categories")
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

	interest, err := classify.Load(classify.DefaultConfig(interestDir))
	if err != nil {
		fatal("load interest model", err)
	}
	defer interest.Close()
	log.Info("interest model loaded", "dir", interestDir, "labels", interest.Labels())

	category, err := classify.Load(classify.DefaultConfig(categoryDir))
	if err != nil {
		fatal("load category model", err)
	}
	defer category.Close()
	log.Info("category model loaded", "dir", categoryDir, "labels", category.Labels())

	// One save subdirectory per category label, created up front
	for _, label := range category.Labels() {
		if err := st.EnsureSubdir(label); err != nil {
			fatal("create category directory", err)
		}
	}

	cfg := camera.DefaultConfig()
	cfg.Device = *device
	cam, err := camera.Open(cfg)
	if err != nil {
		fatal("open camera", err)
	}
	defer cam.Close()

	r, err := loop.NewFilterRunner(cam, interest, category, st, loop.Config{
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
		"Usage: capture-category [flags] [output_dir] [interest_model_dir] [category_model_dir]\n\n"+
			"Classifies a camera frame every check interval; on each capture\n"+
			"interval, saves the most recent interesting frame into a\n"+
			"subdirectory named after its top category label.\n\nFlags:\n")
	flag.PrintDefaults()
}

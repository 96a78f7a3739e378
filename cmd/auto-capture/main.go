// auto-capture grabs a frame from the local camera on a fixed interval and
// saves it to a directory with a timestamp filename.
//
// Usage:
//
//	auto-capture [flags] [output_dir]
//
// output_dir defaults to the current directory.
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
	"github.com/captrap/captrap/pkg/loop"
	"github.com/captrap/captrap/pkg/store"
)

func main() {
	config.LoadDotenv()

	interval := flag.Duration("interval",
		config.Duration("CAPTRAP_INTERVAL", config.DefaultPlainInterval),
		"time between captures")
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

	st, err := store.New(outDir, *quality)
	if err != nil {
		fatal("open output directory", err)
	}

	cfg := camera.DefaultConfig()
	cfg.Device = *device
	cam, err := camera.Open(cfg)
	if err != nil {
		fatal("open camera", err)
	}
	defer cam.Close()

	r, err := loop.NewRunner(cam, st, loop.Config{
		CaptureInterval: *interval,
		MaxFailures:     *maxFailures,
	})
	if err != nil {
		fatal("configure capture loop", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("capture starting, press Ctrl+C to stop",
		"dir", st.Root(), "interval", *interval, "device", *device)

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
		"Usage: auto-capture [flags] [output_dir]\n\n"+
			"Captures a frame from the camera every interval and saves it to\n"+
			"output_dir (default: current directory) with a timestamp filename.\n\nFlags:\n")
	flag.PrintDefaults()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/juju/errors"

	"github.com/ysh86/pictdec/internal/config"
	"github.com/ysh86/pictdec/internal/convert"
	"github.com/ysh86/pictdec/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "configuration file")
	outDir := flag.String("out-dir", "", "output directory (default: next to each input)")
	format := flag.String("format", "", "output format: png, bmp, tiff")
	workers := flag.Int("workers", 0, "number of parallel workers")
	fit := flag.String("fit", "", "scale each image to fit a WxH box")
	maxPixels := flag.Int("max-pixels", 0, "reject pictures with larger frames")
	logLevel := flag.String("log-level", "info", "logging level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s: [flags] file|archive.mhk|dir...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logging.SetLevel(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("failed to load config: %v", err)
		os.Exit(2)
	}
	// flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out-dir":
			cfg.OutDir = *outDir
		case "format":
			cfg.Format = *format
		case "workers":
			cfg.Workers = *workers
		case "fit":
			cfg.Fit = *fit
		case "max-pixels":
			cfg.MaxPixels = *maxPixels
		}
	})
	if err := cfg.Validate(); err != nil {
		logging.Error("%v", err)
		os.Exit(2)
	}

	failed, err := run(cfg, flag.Args())
	if err != nil {
		logging.Error("%s", errors.ErrorStack(err))
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func run(cfg *config.Config, paths []string) (int, error) {
	inputs, err := convert.FindInputs(paths)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(inputs) == 0 {
		return 0, errors.NotFoundf("pictures in %v", paths)
	}
	logging.Info("found %d picture(s)", len(inputs))

	w, h, _ := config.ParseFit(cfg.Fit)
	c := convert.New(convert.Options{
		Format:    cfg.Format,
		OutDir:    cfg.OutDir,
		Workers:   cfg.Workers,
		MaxPixels: cfg.MaxPixels,
		FitW:      w,
		FitH:      h,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := 0
	for _, res := range c.Run(ctx, inputs) {
		if res.Err != nil {
			failed++
		}
	}
	logging.Info("converted %d of %d picture(s)", len(inputs)-failed, len(inputs))
	return failed, nil
}

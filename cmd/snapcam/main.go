package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/wthielen/snapcam"
	"github.com/wthielen/snapcam/config"
	"github.com/wthielen/snapcam/output"
	"github.com/wthielen/snapcam/utils/thread"
)

var (
	configFile = flag.String("config", "", "Config file (default "+config.DefaultPath+")")
	device     = flag.String("input", "", "Input video device")
	width      = flag.Uint("width", 0, "Requested frame width")
	height     = flag.Uint("height", 0, "Requested frame height")
	buffers    = flag.Int("buffers", 0, "Number of mapped buffers")
	timeout    = flag.Duration("timeout", 0, "Time to wait for a frame")
	equalize   = flag.Bool("equalize", false, "Equalize luma before conversion")
	raw        = flag.Bool("raw", false, "Write the packed YUYV frame instead of RGB")
	outFile    = flag.String("o", "frame.rgb", "Output file; .png encodes, .zst compresses")
	verbose    = flag.Bool("v", false, "Log capture diagnostics")
)

func main() {
	flag.Parse()
	if err := mainE(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainE() error {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	conf, err := loadConfig()
	if err != nil {
		return err
	}

	if err := thread.SetCPUAffinity(*conf.CPU); err != nil {
		logger.Warn("snapcam: can not pin capture thread", "cpu", *conf.CPU, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	frame, err := snapcam.Snapshot(ctx, conf, &snapcam.SnapOption{
		Equalize: *equalize,
		Raw:      *raw,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if err := output.WriteFile(*outFile, frame); err != nil {
		return err
	}
	logger.Info("snapcam: frame written",
		"file", *outFile,
		"format", frame.Format,
		"width", frame.Width,
		"height", frame.Height,
		"bytes", len(frame.Data),
	)
	return nil
}

func loadConfig() (*config.Config, error) {
	var conf *config.Config
	if *configFile != "" {
		var err error
		if conf, err = config.LoadFile(*configFile); err != nil {
			return nil, err
		}
	} else {
		conf = config.Load()
	}

	if *device != "" {
		conf.Device = *device
	}
	if *width != 0 {
		conf.Width = uint32(*width)
	}
	if *height != 0 {
		conf.Height = uint32(*height)
	}
	if *buffers != 0 {
		conf.Buffers = *buffers
	}
	if *timeout != 0 {
		conf.Timeout = int((*timeout + time.Second - 1) / time.Second)
	}
	return conf, nil
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/blekhmanlab/rxivist-sub000/internal/app"
	"github.com/blekhmanlab/rxivist-sub000/internal/config"
	"github.com/blekhmanlab/rxivist-sub000/internal/logging"
)

func main() {
	mode := flag.String("mode", "all", "pipeline stage to run: crawl, refresh, rank, or all")
	daemon := flag.Bool("daemon", false, "keep running, repeating the selected mode on the configured interval")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *daemon {
		err = application.RunForever(ctx, app.Mode(*mode))
	} else {
		err = application.Run(ctx, app.Mode(*mode))
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("run failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

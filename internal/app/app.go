package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blekhmanlab/rxivist-sub000/internal/config"
	"github.com/blekhmanlab/rxivist-sub000/internal/domain"
	"github.com/blekhmanlab/rxivist-sub000/internal/infrastructure/parser"
	"github.com/blekhmanlab/rxivist-sub000/internal/infrastructure/scheduler"
	"github.com/blekhmanlab/rxivist-sub000/internal/infrastructure/storage"
	"github.com/blekhmanlab/rxivist-sub000/internal/logging"
	"github.com/blekhmanlab/rxivist-sub000/internal/usecase"
)

// Mode selects which part of the pipeline an invocation runs.
type Mode string

const (
	ModeCrawl   Mode = "crawl"
	ModeRefresh Mode = "refresh"
	ModeRank    Mode = "rank"
	ModeAll     Mode = "all"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store     *storage.Store
	crawler   *usecase.Crawler
	refresher *usecase.Refresher
	ranker    *usecase.Ranker
}

// New connects the store (bounded-retry policy applies here; exhaustion is
// fatal to the process) and builds the pipeline components.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Connect(ctx, cfg.Database, baseLogger.With("component", "store"))
	if err != nil {
		return nil, err
	}

	source := parser.NewHTTPSource(cfg.Source, nil)

	traffic := usecase.NewTrafficFetcher(source, store.Traffic(),
		baseLogger.With("component", "traffic"))
	reconciler := usecase.NewReconciler(store.Articles(), store.Authors(), traffic,
		baseLogger.With("component", "reconciler"))

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		store:  store,
		crawler: usecase.NewCrawler(source, reconciler,
			cfg.Crawl.StopThreshold, cfg.Crawl.PageCap,
			baseLogger.With("component", "crawler")),
		refresher: usecase.NewRefresher(store.Articles(), source, reconciler, traffic,
			cfg.Refresh.StalenessWindow, cfg.Refresh.RunCap, cfg.Refresh.Workers,
			baseLogger.With("component", "refresher")),
		ranker: usecase.NewRanker(store.Ranks(),
			baseLogger.With("component", "ranker")),
	}, nil
}

// Close releases the store connection.
func (a *Application) Close() error {
	return a.store.Close()
}

// Run executes one batch invocation of the selected mode.
func (a *Application) Run(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeCrawl:
		return a.crawl(ctx)
	case ModeRefresh:
		return a.refresher.Run(ctx)
	case ModeRank:
		return a.ranker.RecomputeAll(ctx)
	case ModeAll:
		if err := a.crawl(ctx); err != nil {
			return err
		}
		if err := a.refresher.Run(ctx); err != nil {
			return err
		}
		return a.ranker.RecomputeAll(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// RunForever repeats runs of the selected mode on the configured interval
// until the context is canceled. A failed run logs and waits for the next
// tick, except structural extraction failures, which halt the process:
// partial progress is durable and the next run resumes, but a structurally
// broken source needs attention before more crawling.
func (a *Application) RunForever(ctx context.Context, mode Mode) error {
	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)

	fatal := make(chan error, 1)
	err := driver.Start(ctx, func(trigger time.Time) {
		a.logger.Info("scheduled run", "mode", mode, "trigger", trigger.Format(time.RFC3339))
		if runErr := a.Run(ctx, mode); runErr != nil {
			if domain.IsStructural(runErr) {
				select {
				case fatal <- runErr:
				default:
				}
				return
			}
			a.logger.Error("scheduled run failed", "mode", mode, "error", runErr)
		}
	})
	if err != nil {
		return err
	}
	defer driver.Stop(context.Background())

	select {
	case err := <-fatal:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Application) crawl(ctx context.Context) error {
	for _, collection := range a.cfg.Crawl.Collections {
		if _, err := a.crawler.Crawl(ctx, collection); err != nil {
			return err
		}
	}
	return nil
}

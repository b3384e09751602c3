package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"tradingview-extract/internal/repository"
	"tradingview-extract/internal/service"
	"tradingview-extract/pkg/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the inbox directory on a schedule and extract new screenshots",
	Run:   runWatch,
}

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	repo, err := repository.NewRepository(appDep.cfg, appDep.db, appDep.log)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}

	services := service.NewService(appDep.cfg, appDep.log, repo, appDep.cache)

	// Guards against a slow batch overlapping the next tick.
	var running atomic.Bool

	scheduler := cron.New()
	_, err = scheduler.AddFunc(appDep.cfg.Inbox.Schedule, func() {
		if !running.CompareAndSwap(false, true) {
			appDep.log.Warn("Previous extraction still running, skipping tick")
			return
		}
		defer running.Store(false)

		summary, err := services.ExtractionService.ExtractInbox(ctx)
		if err != nil {
			if errors.Is(err, service.ErrNoImages) {
				appDep.log.Debug("Inbox is empty")
				return
			}
			appDep.log.Error("Inbox extraction failed", logger.ErrorField(err), logger.AlertField())
			return
		}

		appDep.log.Info("Inbox extraction finished",
			logger.IntField("images", summary.ImageCount),
			logger.IntField("results", summary.ResultCount),
		)
	})
	if err != nil {
		log.Fatalf("Invalid watch schedule %q: %v", appDep.cfg.Inbox.Schedule, err)
	}

	appDep.log.Info("Watching inbox",
		logger.StringField("dir", appDep.cfg.Inbox.Dir),
		logger.StringField("schedule", appDep.cfg.Inbox.Schedule),
	)
	scheduler.Start()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")
	<-scheduler.Stop().Done()
}

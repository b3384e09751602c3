package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradingview-extract/internal/repository"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent extraction runs",
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	if appDep.db == nil {
		log.Fatalf("Run history is disabled in the configuration")
	}

	runRepo, err := repository.NewExtractionRunRepository(appDep.db)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}

	runs, err := runRepo.Recent(ctx, historyLimit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}

	if len(runs) == 0 {
		fmt.Println("No extraction runs recorded yet")
		return
	}

	for _, run := range runs {
		fmt.Printf("%s  %-30s  images=%d results=%d skipped=%d  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.StrategyName,
			run.ImageCount,
			run.ResultCount,
			run.SkippedCount,
			run.OutputPath,
		)
	}
}

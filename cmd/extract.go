package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradingview-extract/internal/dto"
	"tradingview-extract/internal/repository"
	"tradingview-extract/internal/service"
)

var extractCmd = &cobra.Command{
	Use:   "extract [image...]",
	Short: "Extract report data from the given images, or from the inbox directory",
	Run:   runExtract,
}

func runExtract(cmd *cobra.Command, args []string) {
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

	var summary *dto.ExtractionSummary
	if len(args) > 0 {
		summary, err = services.ExtractionService.ExtractBatch(ctx, args)
	} else {
		summary, err = services.ExtractionService.ExtractInbox(ctx)
	}
	if err != nil {
		if errors.Is(err, service.ErrNoImages) {
			log.Fatalf("No images found to process")
		}
		log.Fatalf("Extraction failed: %v", err)
	}

	fmt.Printf("Data extraction complete: %d result(s) from %d image(s)\n", summary.ResultCount, summary.ImageCount)
	for _, path := range summary.OutputPaths {
		fmt.Println("JSON saved to:", path)
	}
	for _, skipped := range summary.Skipped {
		fmt.Printf("Skipped %s: %s\n", skipped.Image, skipped.Reason)
	}
}

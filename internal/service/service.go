package service

import (
	"tradingview-extract/config"
	"tradingview-extract/internal/repository"
	"tradingview-extract/pkg/cache"
	"tradingview-extract/pkg/logger"
)

type Service struct {
	ExtractionService ExtractionService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
) *Service {
	return &Service{
		ExtractionService: NewExtractionService(cfg, log, repo.OCREngine, repo.ExtractionRunRepo, inmemoryCache),
	}
}

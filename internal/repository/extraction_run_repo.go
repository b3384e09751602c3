package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tradingview-extract/internal/model"
	"tradingview-extract/pkg/sqlite"
)

type ExtractionRunRepository interface {
	Create(ctx context.Context, run *model.ExtractionRun) error
	Recent(ctx context.Context, limit int) ([]model.ExtractionRun, error)
}

type extractionRunRepository struct {
	db *gorm.DB
}

func NewExtractionRunRepository(db *sqlite.DB) (ExtractionRunRepository, error) {
	if err := db.AutoMigrate(&model.ExtractionRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate extraction run schema: %w", err)
	}
	return &extractionRunRepository{db: db.DB}, nil
}

func (r *extractionRunRepository) Create(ctx context.Context, run *model.ExtractionRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create extraction run: %w", err)
	}
	return nil
}

func (r *extractionRunRepository) Recent(ctx context.Context, limit int) ([]model.ExtractionRun, error) {
	var runs []model.ExtractionRun
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction runs: %w", err)
	}
	return runs, nil
}

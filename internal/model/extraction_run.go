package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExtractionRun records one completed batch for the local history database.
type ExtractionRun struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	StrategyName string         `gorm:"not null" json:"strategy_name"`
	OutputPath   string         `gorm:"not null" json:"output_path"`
	ImageCount   int            `gorm:"not null;default:0" json:"image_count"`
	ResultCount  int            `gorm:"not null;default:0" json:"result_count"`
	SkippedCount int            `gorm:"not null;default:0" json:"skipped_count"`
	Report       datatypes.JSON `gorm:"type:json" json:"report"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (ExtractionRun) TableName() string {
	return "extraction_runs"
}

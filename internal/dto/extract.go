package dto

import "tradingview-extract/internal/model"

// ExtractionSummary is returned to the caller after a batch completes.
type ExtractionSummary struct {
	Reports     []*model.Report `json:"reports"`
	OutputPaths []string        `json:"output_paths"`
	ImageCount  int             `json:"image_count"`
	ResultCount int             `json:"result_count"`
	Skipped     []SkippedImage  `json:"skipped,omitempty"`
}

// SkippedImage explains why an image produced no chart result.
type SkippedImage struct {
	Image  string `json:"image"`
	Reason string `json:"reason"`
}

type RunsRequest struct {
	Limit int `query:"limit" validate:"omitempty,gte=1,lte=100"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

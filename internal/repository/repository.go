package repository

import (
	"context"
	"errors"
	"fmt"

	"tradingview-extract/config"
	"tradingview-extract/pkg/logger"
	"tradingview-extract/pkg/sqlite"
)

// ErrEngineUnavailable marks the OCR engine as missing or misconfigured.
// It is fatal for the whole batch since no further image can be processed.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// noTextMarker is what the vision models answer when the image holds no
// readable text. Engines translate it into an empty result so the pipeline
// can skip the image instead of failing.
const noTextMarker = "NO_TEXT_FOUND"

// ocrPrompt instructs the vision model to behave like a plain OCR engine.
const ocrPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
	"- No formatting\n" +
	"- No XML/HTML tags\n" +
	"- No markdown\n" +
	"- No explanations\n" +
	"- Preserve line breaks accurately from the visual layout.\n" +
	"If no text found, return '" + noTextMarker + "'"

// OCREngine turns a preprocessed PNG into raw recognized text. An empty
// string without error is the empty-result marker.
type OCREngine interface {
	RecognizeImage(ctx context.Context, imageData []byte) (string, error)
}

type Repository struct {
	OCREngine         OCREngine
	ExtractionRunRepo ExtractionRunRepository
}

func NewRepository(cfg *config.Config, db *sqlite.DB, log *logger.Logger) (*Repository, error) {
	var (
		engine OCREngine
		err    error
	)
	switch cfg.OCR.Engine {
	case "gemini":
		engine, err = NewGeminiOCRRepository(cfg, log)
	case "openrouter":
		engine, err = NewOpenRouterOCRRepository(cfg, log)
	default:
		err = fmt.Errorf("%w: unknown engine %q", ErrEngineUnavailable, cfg.OCR.Engine)
	}
	if err != nil {
		return nil, err
	}

	var runRepo ExtractionRunRepository
	if db != nil {
		runRepo, err = NewExtractionRunRepository(db)
		if err != nil {
			return nil, err
		}
	}

	return &Repository{
		OCREngine:         engine,
		ExtractionRunRepo: runRepo,
	}, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"

	"tradingview-extract/config"
	"tradingview-extract/internal/dto"
	"tradingview-extract/internal/model"
	"tradingview-extract/internal/parser"
	"tradingview-extract/internal/repository"
	"tradingview-extract/pkg/cache"
	"tradingview-extract/pkg/imageproc"
	"tradingview-extract/pkg/logger"
	"tradingview-extract/pkg/utils"
)

// ErrImageRead marks an image that could not be decoded or preprocessed.
// The image is skipped and the batch continues.
var ErrImageRead = errors.New("unreadable image")

// ErrNoImages is returned when a batch holds nothing to process.
var ErrNoImages = errors.New("no images to process")

type ExtractionService interface {
	// ExtractBatch processes the given images in order and writes one JSON
	// document per extracted strategy report.
	ExtractBatch(ctx context.Context, imagePaths []string) (*dto.ExtractionSummary, error)
	// ExtractInbox processes every raster image in the configured inbox
	// directory and clears the inbox afterwards.
	ExtractInbox(ctx context.Context) (*dto.ExtractionSummary, error)
}

type extractionService struct {
	cfg      *config.Config
	log      *logger.Logger
	engine   repository.OCREngine
	runRepo  repository.ExtractionRunRepository
	ocrCache cache.Cache
}

func NewExtractionService(
	cfg *config.Config,
	log *logger.Logger,
	engine repository.OCREngine,
	runRepo repository.ExtractionRunRepository,
	ocrCache cache.Cache,
) ExtractionService {
	return &extractionService{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		runRepo:  runRepo,
		ocrCache: ocrCache,
	}
}

// fragment is the per-image parse outcome before assembly.
type fragment struct {
	strategyName string
	testPeriod   model.TestPeriod
	metrics      model.ChartResult
}

func (s *extractionService) ExtractBatch(ctx context.Context, imagePaths []string) (*dto.ExtractionSummary, error) {
	if len(imagePaths) == 0 {
		return nil, ErrNoImages
	}

	var (
		fragments []fragment
		skipped   []dto.SkippedImage
	)

	// Images are handled one at a time in upload order.
	for _, path := range imagePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := s.recognize(ctx, path)
		if err != nil {
			if errors.Is(err, repository.ErrEngineUnavailable) {
				return nil, err
			}
			s.log.WarnContext(ctx, "Skipping image",
				logger.StringField("image", path),
				logger.ErrorField(err),
			)
			skipped = append(skipped, dto.SkippedImage{Image: filepath.Base(path), Reason: err.Error()})
			continue
		}
		if text == "" {
			s.log.WarnContext(ctx, "No text recognized", logger.StringField("image", path))
			skipped = append(skipped, dto.SkippedImage{Image: filepath.Base(path), Reason: "no text recognized"})
			continue
		}

		parsed := parser.Parse(text)
		if !parsed.Metrics.HasMetrics() {
			s.log.WarnContext(ctx, "No numeric data extracted", logger.StringField("image", path))
			skipped = append(skipped, dto.SkippedImage{Image: filepath.Base(path), Reason: "no numeric data extracted"})
			continue
		}

		metrics := parsed.Metrics
		metrics.Chart = parser.ChartName(path)

		fragments = append(fragments, fragment{
			strategyName: parsed.StrategyName,
			testPeriod:   parsed.TestPeriod,
			metrics:      metrics,
		})
	}

	reports := assembleReports(fragments)

	summary := &dto.ExtractionSummary{
		Reports:    reports,
		ImageCount: len(imagePaths),
		Skipped:    skipped,
	}

	for _, report := range reports {
		outputPath, err := s.writeReport(ctx, report, len(imagePaths), len(skipped))
		if err != nil {
			return nil, err
		}
		summary.OutputPaths = append(summary.OutputPaths, outputPath)
		summary.ResultCount += len(report.Results)
	}

	s.log.InfoContext(ctx, "Data extraction complete",
		logger.IntField("images", summary.ImageCount),
		logger.IntField("results", summary.ResultCount),
		logger.IntField("skipped", len(skipped)),
		logger.Field("outputs", summary.OutputPaths),
		logger.AlertField(),
	)

	return summary, nil
}

func (s *extractionService) ExtractInbox(ctx context.Context) (*dto.ExtractionSummary, error) {
	entries, err := os.ReadDir(s.cfg.Inbox.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", s.cfg.Inbox.Dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !utils.HasImageExtension(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.cfg.Inbox.Dir, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, ErrNoImages
	}

	summary, err := s.ExtractBatch(ctx, paths)
	if err != nil {
		return nil, err
	}

	// The inbox is a drop folder; everything picked up this round is
	// removed so the next run only sees new screenshots.
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			s.log.WarnContext(ctx, "Could not delete inbox image",
				logger.StringField("image", path),
				logger.ErrorField(err),
			)
		}
	}

	return summary, nil
}

// recognize runs one image through preprocessing and the OCR engine.
// Recognized text is cached by content hash so reprocessing a screenshot
// does not hit the engine again.
func (s *extractionService) recognize(ctx context.Context, path string) (string, error) {
	img, err := imageproc.Load(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	processed, err := imageproc.Preprocess(img, s.cfg.Preprocess)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	if dir := s.cfg.Preprocess.ProcessedDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			processedPath := filepath.Join(dir, filepath.Base(path))
			if err := imageproc.Save(processed, processedPath); err != nil {
				s.log.WarnContext(ctx, "Could not save processed image", logger.ErrorField(err))
			}
		}
	}

	pngData, err := imageproc.EncodePNG(processed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	cacheKey := "ocr:" + utils.Sha256Hex(pngData)
	if s.ocrCache != nil {
		if cached, found := s.ocrCache.Get(cacheKey); found {
			if text, ok := cached.(string); ok {
				s.log.DebugContext(ctx, "OCR cache hit", logger.StringField("image", path))
				return text, nil
			}
		}
	}

	text, err := s.engine.RecognizeImage(ctx, pngData)
	if err != nil {
		return "", err
	}

	if s.ocrCache != nil {
		s.ocrCache.Set(cacheKey, text, s.cfg.Cache.DefaultExpiration)
	}
	return text, nil
}

// assembleReports merges fragments sharing the same strategy name and test
// period into one report, preserving upload order. Strategy level fields
// come from the first image that carried them; fragments without a header
// join the report currently being built.
func assembleReports(fragments []fragment) []*model.Report {
	var (
		reports []*model.Report
		current *model.Report
	)

	for _, frag := range fragments {
		if frag.strategyName == "" && current != nil {
			current.Results = append(current.Results, frag.metrics)
			continue
		}

		name := frag.strategyName
		if name == "" {
			name = model.UnknownStrategy
		}

		var target *model.Report
		for _, report := range reports {
			if report.Matches(name, frag.testPeriod) {
				target = report
				break
			}
		}
		if target == nil {
			target = &model.Report{
				StrategyName: name,
				TestPeriod:   frag.testPeriod,
				Results:      []model.ChartResult{},
			}
			reports = append(reports, target)
		}

		target.Results = append(target.Results, frag.metrics)
		current = target
	}

	if len(reports) == 0 {
		reports = []*model.Report{{
			StrategyName: model.UnknownStrategy,
			Results:      []model.ChartResult{},
		}}
	}
	return reports
}

// writeReport serializes a report to the output directory, overwriting any
// prior file for the same strategy, and records the run in history.
func (s *extractionService) writeReport(ctx context.Context, report *model.Report, imageCount, skippedCount int) (string, error) {
	if err := os.MkdirAll(s.cfg.Output.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	outputPath := filepath.Join(s.cfg.Output.Dir, report.SafeFileName())
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	if s.cfg.Output.RenderChart && len(report.Results) > 0 {
		chartPath := outputPath[:len(outputPath)-len(".json")] + ".png"
		if err := s.renderNetProfitChart(report, chartPath); err != nil {
			s.log.WarnContext(ctx, "Could not render summary chart", logger.ErrorField(err))
		}
	}

	if s.runRepo != nil {
		run := &model.ExtractionRun{
			StrategyName: report.StrategyName,
			OutputPath:   outputPath,
			ImageCount:   imageCount,
			ResultCount:  len(report.Results),
			SkippedCount: skippedCount,
			Report:       datatypes.JSON(data),
			CreatedAt:    time.Now(),
		}
		if err := s.runRepo.Create(ctx, run); err != nil {
			s.log.WarnContext(ctx, "Could not record extraction run", logger.ErrorField(err))
		}
	}

	return outputPath, nil
}

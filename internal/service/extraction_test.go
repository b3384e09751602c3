package service

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradingview-extract/config"
	"tradingview-extract/internal/model"
	"tradingview-extract/internal/repository"
	"tradingview-extract/pkg/cache"
	"tradingview-extract/pkg/logger"
)

// stubEngine returns scripted responses in call order. The last response
// repeats once the script is exhausted.
type stubEngine struct {
	responses []string
	err       error
	calls     int
}

func (s *stubEngine) RecognizeImage(_ context.Context, _ []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func writeTestImage(t *testing.T, dir, name string, shade uint8) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Preprocess: config.Preprocess{CropWidth: 40, CropHeight: 20},
		Output:     config.Output{Dir: t.TempDir()},
		Cache:      config.Cache{DefaultExpiration: time.Hour},
	}
}

func newTestService(cfg *config.Config, engine repository.OCREngine, ocrCache cache.Cache) ExtractionService {
	log := &logger.Logger{Logger: zap.NewNop()}
	return NewExtractionService(cfg, log, engine, nil, ocrCache)
}

const recognizedBTC = `SuperTrend V2 Deep Backtesting
2024-01-01 — 2025-01-01
Net Profit: +15.2%
Total Closed Trades: 35
Percent Profitable: 60%
Profit Factor: 1.8
Max Drawdown: -5.3%
Avg Trade: +0.5%
Avg Bars In Trade: 10`

const recognizedETH = `SuperTrend V2 Deep Backtesting
2024-01-01 — 2025-01-01
Net Profit: -3.1%
Total Closed Trades: 28
Percent Profitable: 46%
Profit Factor: 0.9
Max Drawdown: -8.0%
Avg Trade: -0.1%
Avg Bars In Trade: 7`

func TestExtractBatch_MergesSameStrategyIntoOneReport(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	paths := []string{
		writeTestImage(t, dir, "btcusdt.png", 50),
		writeTestImage(t, dir, "ethusdt.png", 120),
	}

	engine := &stubEngine{responses: []string{recognizedBTC, recognizedETH}}
	svc := newTestService(cfg, engine, nil)

	summary, err := svc.ExtractBatch(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, summary.Reports, 1)
	report := summary.Reports[0]
	assert.Equal(t, "SuperTrend V2", report.StrategyName)
	assert.Equal(t, model.TestPeriod{StartDate: "2024-01-01", EndDate: "2025-01-01"}, report.TestPeriod)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "BTCUSDT", report.Results[0].Chart)
	assert.Equal(t, "+15.2%", report.Results[0].NetProfit)
	assert.Equal(t, "ETHUSDT", report.Results[1].Chart)
	assert.Equal(t, "-3.1%", report.Results[1].NetProfit)

	assert.Equal(t, 2, summary.ImageCount)
	assert.Equal(t, 2, summary.ResultCount)
	assert.Empty(t, summary.Skipped)

	require.Len(t, summary.OutputPaths, 1)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "SuperTrend_V2.json"), summary.OutputPaths[0])

	data, err := os.ReadFile(summary.OutputPaths[0])
	require.NoError(t, err)

	var written model.Report
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, *report, written)
}

func TestExtractBatch_SkipsUnreadableImageAndContinues(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	broken := filepath.Join(dir, "solusdt.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o644))
	good := writeTestImage(t, dir, "btcusdt.png", 50)

	engine := &stubEngine{responses: []string{recognizedBTC}}
	svc := newTestService(cfg, engine, nil)

	summary, err := svc.ExtractBatch(context.Background(), []string{broken, good})
	require.NoError(t, err)

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "solusdt.png", summary.Skipped[0].Image)
	require.Len(t, summary.Reports, 1)
	assert.Len(t, summary.Reports[0].Results, 1)
}

func TestExtractBatch_SkipsImageWithoutMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	path := writeTestImage(t, dir, "btcusdt.png", 50)

	engine := &stubEngine{responses: []string{"just some unrelated words"}}
	svc := newTestService(cfg, engine, nil)

	summary, err := svc.ExtractBatch(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "no numeric data extracted", summary.Skipped[0].Reason)

	// An empty batch still yields a single placeholder report.
	require.Len(t, summary.Reports, 1)
	assert.Equal(t, model.UnknownStrategy, summary.Reports[0].StrategyName)
	assert.Empty(t, summary.Reports[0].Results)
}

func TestExtractBatch_EngineFailureAborts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	paths := []string{
		writeTestImage(t, dir, "btcusdt.png", 50),
		writeTestImage(t, dir, "ethusdt.png", 120),
	}

	engine := &stubEngine{err: repository.ErrEngineUnavailable}
	svc := newTestService(cfg, engine, nil)

	_, err := svc.ExtractBatch(context.Background(), paths)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrEngineUnavailable)
	assert.Equal(t, 1, engine.calls)
}

func TestExtractBatch_EmptyInput(t *testing.T) {
	svc := newTestService(testConfig(t), &stubEngine{}, nil)

	_, err := svc.ExtractBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestExtractBatch_CachesRecognizedText(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	path := writeTestImage(t, dir, "btcusdt.png", 50)

	engine := &stubEngine{responses: []string{recognizedBTC}}
	svc := newTestService(cfg, engine, cache.NewCache(time.Hour, time.Hour))

	_, err := svc.ExtractBatch(context.Background(), []string{path})
	require.NoError(t, err)
	_, err = svc.ExtractBatch(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
}

func TestExtractInbox_ClearsInboxAfterProcessing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inbox.Dir = t.TempDir()
	writeTestImage(t, cfg.Inbox.Dir, "btcusdt.png", 50)
	notes := filepath.Join(cfg.Inbox.Dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("keep"), 0o644))

	engine := &stubEngine{responses: []string{recognizedBTC}}
	svc := newTestService(cfg, engine, nil)

	summary, err := svc.ExtractInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ImageCount)

	entries, err := os.ReadDir(cfg.Inbox.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())
}

func TestExtractInbox_EmptyInbox(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inbox.Dir = t.TempDir()

	svc := newTestService(cfg, &stubEngine{}, nil)

	_, err := svc.ExtractInbox(context.Background())
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestAssembleReports_HeaderlessFragmentsJoinCurrentReport(t *testing.T) {
	period := model.TestPeriod{StartDate: "2024-01-01", EndDate: "2025-01-01"}
	fragments := []fragment{
		{strategyName: "Alpha", testPeriod: period, metrics: model.ChartResult{Chart: "BTCUSDT", NetProfit: "+1%"}},
		{metrics: model.ChartResult{Chart: "ETHUSDT", NetProfit: "+2%"}},
		{strategyName: "Beta", testPeriod: period, metrics: model.ChartResult{Chart: "SOLUSDT", NetProfit: "+3%"}},
		{strategyName: "Alpha", testPeriod: period, metrics: model.ChartResult{Chart: "BNBUSDT", NetProfit: "+4%"}},
	}

	reports := assembleReports(fragments)
	require.Len(t, reports, 2)

	assert.Equal(t, "Alpha", reports[0].StrategyName)
	require.Len(t, reports[0].Results, 3)
	assert.Equal(t, "BTCUSDT", reports[0].Results[0].Chart)
	assert.Equal(t, "ETHUSDT", reports[0].Results[1].Chart)
	assert.Equal(t, "BNBUSDT", reports[0].Results[2].Chart)

	assert.Equal(t, "Beta", reports[1].StrategyName)
	require.Len(t, reports[1].Results, 1)
}

func TestAssembleReports_LeadingHeaderlessFragmentFallsBackToUnknown(t *testing.T) {
	fragments := []fragment{
		{metrics: model.ChartResult{Chart: "BTCUSDT", NetProfit: "+1%"}},
	}

	reports := assembleReports(fragments)
	require.Len(t, reports, 1)
	assert.Equal(t, model.UnknownStrategy, reports[0].StrategyName)
	require.Len(t, reports[0].Results, 1)
}

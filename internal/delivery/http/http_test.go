package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingview-extract/internal/dto"
	"tradingview-extract/internal/model"
	"tradingview-extract/internal/repository"
	"tradingview-extract/internal/service"
)

type stubExtractionService struct {
	summary *dto.ExtractionSummary
	err     error
	paths   []string
}

func (s *stubExtractionService) ExtractBatch(_ context.Context, imagePaths []string) (*dto.ExtractionSummary, error) {
	s.paths = imagePaths
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func (s *stubExtractionService) ExtractInbox(context.Context) (*dto.ExtractionSummary, error) {
	return s.summary, s.err
}

type stubRunRepo struct {
	runs  []model.ExtractionRun
	limit int
}

func (s *stubRunRepo) Create(context.Context, *model.ExtractionRun) error {
	return nil
}

func (s *stubRunRepo) Recent(_ context.Context, limit int) ([]model.ExtractionRun, error) {
	s.limit = limit
	return s.runs, nil
}

func newTestHandler(svc service.ExtractionService, runRepo repository.ExtractionRunRepository) (*echo.Echo, *HttpAPIHandler) {
	e := echo.New()
	handler := NewHttpAPIHandler(context.Background(), e, goValidator.New(), &service.Service{ExtractionService: svc}, runRepo)
	handler.SetupRoutes()
	return e, handler
}

func multipartImageRequest(t *testing.T, filenames []string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	e, _ := newTestHandler(&stubExtractionService{}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunExtraction(t *testing.T) {
	svc := &stubExtractionService{
		summary: &dto.ExtractionSummary{
			Reports: []*model.Report{{
				StrategyName: "SuperTrend V2",
				Results:      []model.ChartResult{{Chart: "BTCUSDT", NetProfit: "+15.2%"}},
			}},
			OutputPaths: []string{"data/SuperTrend_V2.json"},
			ImageCount:  1,
			ResultCount: 1,
		},
	}
	e, _ := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartImageRequest(t, []string{"btcusdt.png"}))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary dto.ExtractionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.ImageCount)
	require.Len(t, summary.Reports, 1)
	assert.Equal(t, "SuperTrend V2", summary.Reports[0].StrategyName)

	// Uploads keep their filenames so chart names can be derived.
	require.Len(t, svc.paths, 1)
	assert.Contains(t, svc.paths[0], "btcusdt.png")
}

func TestRunExtraction_NoFiles(t *testing.T) {
	e, _ := newTestHandler(&stubExtractionService{}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "no files here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no images uploaded")
}

func TestRunExtraction_EngineUnavailable(t *testing.T) {
	svc := &stubExtractionService{err: repository.ErrEngineUnavailable}
	e, _ := newTestHandler(svc, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, multipartImageRequest(t, []string{"btcusdt.png"}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListRuns(t *testing.T) {
	runRepo := &stubRunRepo{runs: []model.ExtractionRun{{ID: 1, StrategyName: "Alpha"}}}
	e, _ := newTestHandler(&stubExtractionService{}, runRepo)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, runRepo.limit)

	var runs []model.ExtractionRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Alpha", runs[0].StrategyName)
}

func TestListRuns_HistoryDisabled(t *testing.T) {
	e, _ := newTestHandler(&stubExtractionService{}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns_LimitOutOfRange(t *testing.T) {
	e, _ := newTestHandler(&stubExtractionService{}, &stubRunRepo{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=500", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

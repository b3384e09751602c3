package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradingview-extract/config"
	"tradingview-extract/internal/dto"
	"tradingview-extract/pkg/logger"
)

func openRouterConfig(baseURL string) *config.Config {
	return &config.Config{
		OCR: config.OCR{
			Engine: "openrouter",
			OpenRouter: config.OpenRouter{
				APIKey:              "test-key",
				BaseURL:             baseURL,
				Model:               "qwen/qwen2.5-vl-72b-instruct",
				Timeout:             5 * time.Second,
				MaxRequestPerMinute: 600,
			},
		},
	}
}

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func chatCompletionServer(t *testing.T, handler func(req dto.ChatRequest) (int, dto.ChatResponse)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req dto.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenRouterRecognizeImage(t *testing.T) {
	var captured dto.ChatRequest
	server := chatCompletionServer(t, func(req dto.ChatRequest) (int, dto.ChatResponse) {
		captured = req
		return http.StatusOK, dto.ChatResponse{
			Choices: []dto.ChatChoice{{Message: dto.ChatResponseMessage{Content: "Net Profit: +15.2%\n"}}},
		}
	})
	defer server.Close()

	engine, err := NewOpenRouterOCRRepository(openRouterConfig(server.URL), nopLogger())
	require.NoError(t, err)

	text, err := engine.RecognizeImage(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Net Profit: +15.2%", text)

	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Content, 2)
	assert.Equal(t, "text", captured.Messages[0].Content[0].Type)
	assert.Equal(t, "image_url", captured.Messages[0].Content[1].Type)
	assert.Contains(t, captured.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,")
}

func TestOpenRouterRecognizeImage_NoTextMarker(t *testing.T) {
	server := chatCompletionServer(t, func(dto.ChatRequest) (int, dto.ChatResponse) {
		return http.StatusOK, dto.ChatResponse{
			Choices: []dto.ChatChoice{{Message: dto.ChatResponseMessage{Content: "NO_TEXT_FOUND"}}},
		}
	})
	defer server.Close()

	engine, err := NewOpenRouterOCRRepository(openRouterConfig(server.URL), nopLogger())
	require.NoError(t, err)

	text, err := engine.RecognizeImage(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestOpenRouterRecognizeImage_ErrorStatus(t *testing.T) {
	server := chatCompletionServer(t, func(dto.ChatRequest) (int, dto.ChatResponse) {
		return http.StatusTooManyRequests, dto.ChatResponse{}
	})
	defer server.Close()

	engine, err := NewOpenRouterOCRRepository(openRouterConfig(server.URL), nopLogger())
	require.NoError(t, err)

	_, err = engine.RecognizeImage(context.Background(), []byte("png-bytes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestOpenRouterRecognizeImage_ProviderError(t *testing.T) {
	server := chatCompletionServer(t, func(dto.ChatRequest) (int, dto.ChatResponse) {
		return http.StatusOK, dto.ChatResponse{
			Error: &dto.ChatError{Message: "model overloaded", Type: "server_error"},
		}
	})
	defer server.Close()

	engine, err := NewOpenRouterOCRRepository(openRouterConfig(server.URL), nopLogger())
	require.NoError(t, err)

	_, err = engine.RecognizeImage(context.Background(), []byte("png-bytes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestNewOpenRouterOCRRepository_MissingCredentials(t *testing.T) {
	cfg := openRouterConfig("http://localhost")
	cfg.OCR.OpenRouter.APIKey = ""

	_, err := NewOpenRouterOCRRepository(cfg, nopLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

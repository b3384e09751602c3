package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tradingview-extract/config"
	"tradingview-extract/internal/dto"
	"tradingview-extract/pkg/httpclient"
	"tradingview-extract/pkg/logger"
)

// openRouterOCRRepository recognizes report text through an OpenRouter
// compatible chat completion endpoint with a vision model.
type openRouterOCRRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	httpClient     httpclient.HTTPClient
	requestLimiter *rate.Limiter
}

func NewOpenRouterOCRRepository(cfg *config.Config, log *logger.Logger) (OCREngine, error) {
	if cfg.OCR.OpenRouter.APIKey == "" {
		return nil, fmt.Errorf("%w: openrouter api key is not set", ErrEngineUnavailable)
	}
	if cfg.OCR.OpenRouter.Model == "" {
		return nil, fmt.Errorf("%w: openrouter model is not set", ErrEngineUnavailable)
	}

	secondsPerRequest := time.Minute / time.Duration(cfg.OCR.OpenRouter.MaxRequestPerMinute)

	return &openRouterOCRRepository{
		cfg:            cfg,
		logger:         log,
		httpClient:     httpclient.New(cfg.OCR.OpenRouter.BaseURL, cfg.OCR.OpenRouter.Timeout, cfg.OCR.OpenRouter.APIKey),
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}, nil
}

func (r *openRouterOCRRepository) RecognizeImage(ctx context.Context, imageData []byte) (string, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for openrouter request limit: %w", err)
	}

	imageURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(imageData))

	payload := dto.ChatRequest{
		Model: r.cfg.OCR.OpenRouter.Model,
		Messages: []dto.ChatMessage{
			{
				Role: "user",
				Content: []dto.ChatContent{
					{Type: "text", Text: ocrPrompt},
					{Type: "image_url", ImageURL: &dto.ImageURL{URL: imageURL}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	}

	chatResponse := dto.ChatResponse{}
	resp, err := r.httpClient.Post(ctx, "/chat/completions", payload, nil, &chatResponse)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request to openrouter: %v", ErrEngineUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "failed to get data from openrouter", logger.IntField("status_code", resp.StatusCode))
		return "", fmt.Errorf("%w: openrouter returned status %d", ErrEngineUnavailable, resp.StatusCode)
	}

	if chatResponse.Error != nil {
		return "", fmt.Errorf("%w: openrouter error: %s", ErrEngineUnavailable, chatResponse.Error.Message)
	}

	if len(chatResponse.Choices) == 0 {
		r.logger.WarnContext(ctx, "openrouter returned no choices")
		return "", nil
	}

	return normalizeRecognizedText(chatResponse.Choices[0].Message.Content), nil
}

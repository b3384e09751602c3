package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"tradingview-extract/config"
	"tradingview-extract/pkg/logger"
	"tradingview-extract/pkg/ratelimit"
)

// geminiOCRRepository recognizes report text with a Gemini vision model.
type geminiOCRRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	genAiClient    *genai.Client
	requestLimiter *rate.Limiter
	tokenLimiter   *ratelimit.TokenLimiter
}

func NewGeminiOCRRepository(cfg *config.Config, log *logger.Logger) (OCREngine, error) {
	if cfg.OCR.Gemini.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is not set", ErrEngineUnavailable)
	}

	secondsPerRequest := time.Minute / time.Duration(cfg.OCR.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)
	tokenLimiter := ratelimit.NewTokenLimiter(cfg.OCR.Gemini.MaxTokenPerMinute)

	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.OCR.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrEngineUnavailable, err)
	}

	return &geminiOCRRepository{
		cfg:            cfg,
		logger:         log,
		genAiClient:    genAiClient,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
	}, nil
}

func (r *geminiOCRRepository) RecognizeImage(ctx context.Context, imageData []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(imageData, "image/png"),
		genai.NewPartFromText(ocrPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.OCR.Gemini.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to count tokens: %v", ErrEngineUnavailable, err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)
	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return "", fmt.Errorf("failed to wait for gemini token limit: %w", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for gemini request limit: %w", err)
	}

	result, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.OCR.Gemini.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate content: %v", ErrEngineUnavailable, err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		r.logger.WarnContext(ctx, "Gemini returned no content", logger.ErrorField(err))
		return "", nil
	}
	return normalizeRecognizedText(text), nil
}

func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text, nil
}

// normalizeRecognizedText maps the model's no-text answer onto the
// empty-result marker.
func normalizeRecognizedText(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == noTextMarker {
		return ""
	}
	return trimmed
}

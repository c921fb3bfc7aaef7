// Package gemini generates answers with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"google.golang.org/genai"

	"ragqa/internal/generator"
)

type Config struct {
	APIKey string
	// Model is used as is unless discovery finds a better match.
	Model string
	// Prefer enables model discovery: the first listed model that supports
	// generateContent and whose name contains Prefer is used instead of Model.
	Prefer string
	Logger *slog.Logger
}

type Generator struct {
	models *genai.Models
	model  string
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g := &Generator{models: client.Models, model: cfg.Model}
	if cfg.Prefer != "" {
		g.model = ResolveModel(ctx, client.Models, cfg.Prefer, cfg.Model, cfg.Logger)
	}
	return g, nil
}

func (g *Generator) Name() string { return "gemini:" + g.model }

func (g *Generator) Model() string { return g.model }

// Generate runs the prompt at temperature 0.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		if isRateLimit(err) {
			return "", fmt.Errorf("gemini: %w: %v", generator.ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// modelLister is the part of genai.Models used by discovery.
type modelLister interface {
	List(ctx context.Context, config *genai.ListModelsConfig) (genai.Page[genai.Model], error)
}

// ResolveModel picks the first model supporting generateContent whose name contains
// prefer. Any listing failure or no match falls back to fallback.
func ResolveModel(ctx context.Context, lister modelLister, prefer, fallback string, logger *slog.Logger) string {
	page, err := lister.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		logger.Warn("gemini: model discovery failed", "fallback", fallback, "error", err)
		return fallback
	}
	if name := pickModel(page.Items, prefer); name != "" {
		logger.Info("gemini: model selected", "model", name)
		return name
	}
	return fallback
}

func pickModel(models []*genai.Model, prefer string) string {
	for _, m := range models {
		if m == nil || !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		if strings.Contains(m.Name, prefer) {
			return strings.TrimPrefix(m.Name, "models/")
		}
	}
	return ""
}

func isRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}

var _ generator.Generator = (*Generator)(nil)

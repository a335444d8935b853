package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"alfredoptarigan/cv-profiler/internal/apperrors"
)

// geminiTransport uses the managed genai client.
type geminiTransport struct {
	client      *genai.Client
	temperature float32
}

type GeminiOptions struct {
	APIKey      string
	BaseURL     string
	Temperature float32
	HTTPClient  *http.Client
}

func NewGeminiTransport(ctx context.Context, opts GeminiOptions) (ModelTransport, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "GEMINI_API_KEY is required", nil)
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiTransport{
		client:      client,
		temperature: opts.Temperature,
	}, nil
}

func (g *geminiTransport) Name() string {
	return "gemini"
}

func (g *geminiTransport) Generate(ctx context.Context, model string, prompt Prompt) (string, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt.Text())}
	if prompt.Attachment != nil {
		parts = append(parts, genai.NewPartFromBytes(prompt.Attachment.Data, prompt.Attachment.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", classifyGeminiError(model, err)
	}

	if resp == nil {
		return "", apperrors.New(apperrors.KindTransport, "gemini returned no response", nil)
	}

	text := resp.Text()
	if text == "" {
		return "", apperrors.Newf(apperrors.KindTransport, "gemini model %s returned no text content", model)
	}
	return text, nil
}

func classifyGeminiError(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.New(apperrors.FromStatus(apiErr.Code),
			fmt.Sprintf("gemini model %s: status %d %s", model, apiErr.Code, apiErr.Status), err)
	}
	return apperrors.New(apperrors.KindTransport, fmt.Sprintf("gemini model %s request failed", model), err)
}

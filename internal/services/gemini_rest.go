package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
)

// geminiRESTTransport posts directly to the versioned generateContent endpoint.
type geminiRESTTransport struct {
	host        string
	apiKey      string
	temperature float32
	http        *http.Client
}

type GeminiRESTOptions struct {
	Host        string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

func NewGeminiRESTTransport(opts GeminiRESTOptions) (ModelTransport, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "GEMINI_API_KEY is required", nil)
	}
	if opts.Host == "" {
		opts.Host = "https://generativelanguage.googleapis.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &geminiRESTTransport{
		host:        strings.TrimRight(opts.Host, "/"),
		apiKey:      opts.APIKey,
		temperature: opts.Temperature,
		http:        &http.Client{Timeout: opts.Timeout},
	}, nil
}

type geminiRESTPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRESTRequest struct {
	Contents []struct {
		Parts []geminiRESTPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type geminiRESTResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *geminiRESTTransport) Name() string {
	return "gemini-rest"
}

func (g *geminiRESTTransport) Generate(ctx context.Context, model string, prompt Prompt) (string, error) {
	parts := []geminiRESTPart{{Text: prompt.Text()}}
	if prompt.Attachment != nil {
		parts = append(parts, geminiRESTPart{InlineData: &geminiInlineData{
			MIMEType: prompt.Attachment.MIMEType,
			Data:     prompt.Attachment.Encoded,
		}})
	}

	var body geminiRESTRequest
	body.Contents = append(body.Contents, struct {
		Parts []geminiRESTPart `json:"parts"`
	}{Parts: parts})
	body.GenerationConfig = map[string]any{"temperature": g.temperature}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.host, url.PathEscape(model), url.QueryEscape(g.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", apperrors.New(apperrors.KindTransport, fmt.Sprintf("gemini-rest model %s request failed", model), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.New(apperrors.KindTransport, "failed to read gemini response", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("model", model).Str("body", string(raw)).Msg("❌ Gemini REST error")
		return "", apperrors.Newf(apperrors.FromStatus(resp.StatusCode),
			"gemini-rest model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiRESTResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apperrors.New(apperrors.KindTransport, "failed to decode gemini response", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.Newf(apperrors.KindTransport, "gemini-rest model %s returned no candidates: %s", model, string(raw))
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

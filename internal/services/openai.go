package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
)

// openAITransport talks to a chat/completions endpoint in JSON mode.
type openAITransport struct {
	client      *openai.Client
	temperature float32
}

type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

func NewOpenAITransport(opts OpenAIOptions) (ModelTransport, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.KindConfiguration, "OPENAI_API_KEY is required", nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	// Retries belong to the AI client policy, not to the SDK.
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(0),
	)

	return &openAITransport{
		client:      &client,
		temperature: opts.Temperature,
	}, nil
}

func (o *openAITransport) Name() string {
	return "openai"
}

func (o *openAITransport) Generate(ctx context.Context, model string, prompt Prompt) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	user := openai.UserMessage(prompt.User)
	if prompt.Attachment != nil {
		dataURL := fmt.Sprintf("data:%s;base64,%s", prompt.Attachment.MIMEType, prompt.Attachment.Encoded)
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			{
				OfText: &openai.ChatCompletionContentPartTextParam{
					Type: constant.Text("text"),
					Text: prompt.User,
				},
			},
			{
				OfImageURL: &openai.ChatCompletionContentPartImageParam{
					Type: constant.ImageURL("image_url"),
					ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
						URL:    dataURL,
						Detail: "high",
					},
				},
			},
		})
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			user,
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: constant.JSONObject("json_object"),
			},
		},
		Temperature: openai.Float(float64(o.temperature)),
	})
	if err != nil {
		log.Error().Err(err).Str("req_id", rid).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("❌ OpenAI request failed")
		return "", classifyOpenAIError(model, err)
	}
	if len(completion.Choices) == 0 {
		return "", apperrors.Newf(apperrors.KindTransport, "openai model %s returned no choices", model)
	}

	log.Debug().Str("req_id", rid).Str("model", model).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("📊 OpenAI response received")
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// classifyOpenAIError keeps the remote status and message in the tagged error.
func classifyOpenAIError(model string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = apiErr.RawJSON()
		}
		return apperrors.New(apperrors.FromStatus(apiErr.StatusCode),
			fmt.Sprintf("openai model %s: status %d: %s", model, apiErr.StatusCode, message), err)
	}
	return apperrors.New(apperrors.KindTransport, fmt.Sprintf("openai model %s request failed", model), err)
}

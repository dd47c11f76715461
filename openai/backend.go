// Package openai implements speech.Backend for OpenAI and OpenAI-compatible
// servers: Whisper for audio, chat completions for text prompts.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"audioscribe/speech"
)

const (
	// DefaultModel is the chat model used for translation.
	DefaultModel = goopenai.GPT4oMini

	// DefaultTranscriptionModel is the speech-to-text model.
	DefaultTranscriptionModel = goopenai.Whisper1

	// DefaultTimeout for API requests
	DefaultTimeout = 2 * time.Minute
)

// Backend talks to an OpenAI-compatible API.
type Backend struct {
	client             *goopenai.Client
	config             goopenai.ClientConfig
	model              string
	transcriptionModel string
	log                zerolog.Logger
}

var _ speech.Backend = (*Backend)(nil)

// Option configures the Backend
type Option func(*Backend)

// WithBaseURL points the backend at a compatible server, e.g. a local
// whisper.cpp or vLLM endpoint.
func WithBaseURL(baseURL string) Option {
	return func(b *Backend) {
		parsed, err := url.Parse(baseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return
		}
		b.config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(b *Backend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithTranscriptionModel sets the audio transcription model.
func WithTranscriptionModel(model string) Option {
	return func(b *Backend) {
		if model != "" {
			b.transcriptionModel = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		b.config.HTTPClient = client
	}
}

// WithLogger sets the backend logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// NewBackend creates an OpenAI backend.
func NewBackend(apiKey string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}

	b := &Backend{
		config:             cfg,
		model:              DefaultModel,
		transcriptionModel: DefaultTranscriptionModel,
		log:                zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.client = goopenai.NewClientWithConfig(b.config)
	return b, nil
}

// NewBackendFromEnv creates a backend using OPENAI_API_KEY.
func NewBackendFromEnv(opts ...Option) (*Backend, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return NewBackend(apiKey, opts...)
}

// Name implements speech.Backend.
func (b *Backend) Name() string { return "OpenAI" }

// Model returns the chat model.
func (b *Backend) Model() string { return b.model }

// Generate implements speech.Backend.
func (b *Backend) Generate(ctx context.Context, req speech.Request) (string, error) {
	if req.Audio != nil {
		return b.transcribe(ctx, req)
	}
	return b.complete(ctx, req)
}

func (b *Backend) transcribe(ctx context.Context, req speech.Request) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(req.Audio.Data)
	if err != nil {
		return "", fmt.Errorf("invalid audio encoding: %w", err)
	}

	b.log.Debug().
		Str("model", b.transcriptionModel).
		Str("mime_type", req.Audio.MIMEType).
		Int("bytes", len(audio)).
		Msg("POST audio/transcriptions")

	resp, err := b.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    b.transcriptionModel,
		FilePath: FileName(req.Audio.MIMEType),
		Reader:   bytes.NewReader(audio),
		Prompt:   req.Prompt,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", unwrapError(err)
	}
	return resp.Text, nil
}

func (b *Backend) complete(ctx context.Context, req speech.Request) (string, error) {
	model := b.model
	if req.Model != "" && !strings.HasPrefix(req.Model, "gemini") {
		model = req.Model
	}

	b.log.Debug().Str("model", model).Int("prompt_len", len(req.Prompt)).Msg("POST chat/completions")

	resp, err := b.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", unwrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// APIError is a server-reported error. Its message is the server's own,
// without the client library's status prefix.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

func unwrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return err
}

// FileName returns an upload filename whose extension matches mimeType, as
// the transcription endpoint infers the format from it.
func FileName(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return "audio.mp3"
	case "audio/wav":
		return "audio.wav"
	case "audio/ogg":
		return "audio.ogg"
	case "video/mp4":
		return "audio.mp4"
	case "audio/webm":
		return "audio.webm"
	}
	return "audio"
}

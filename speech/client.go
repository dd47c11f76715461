// Package speech turns audio into text and text into Hindi through a
// generative backend.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// TranscriptionPrompt is sent alongside every audio clip.
const TranscriptionPrompt = "Transcribe this audio file. Provide only the transcribed text in its original language, with appropriate punctuation and capitalization."

var (
	ErrMissingAudio         = errors.New("Audio data or MIME type is missing.")
	ErrEmptyTranscription   = errors.New("The API returned an empty transcription.")
	ErrUnknownTranscription = errors.New("An unknown error occurred while communicating with the Gemini API.")

	ErrMissingText        = errors.New("Text to translate is missing.")
	ErrEmptyTranslation   = errors.New("The API returned an empty translation.")
	ErrUnknownTranslation = errors.New("An unknown error occurred while translating.")
)

// InlineAudio is base64 audio carried inside a request.
type InlineAudio struct {
	MIMEType string
	Data     string
}

// Request is one generate call. With Audio set it is the
// {audio, instruction} form, otherwise a plain instruction.
type Request struct {
	Model  string
	Audio  *InlineAudio
	Prompt string
}

// Backend is a generative model endpoint.
type Backend interface {
	// Name is the display name used in error messages, e.g. "Gemini".
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendError wraps a transport or API failure with the backend name.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Backend, e.Err.Error())
}

func (e *BackendError) Unwrap() error { return e.Err }

// Client runs transcription and translation requests against a Backend.
type Client struct {
	backend Backend
	model   string
	log     zerolog.Logger
}

// Option configures the Client
type Option func(*Client)

// WithModel sets the model name passed to the backend.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for backend.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		model:   DefaultModel,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// BackendName returns the backend display name.
func (c *Client) BackendName() string { return c.backend.Name() }

// TranscribeAudio transcribes base64 audio. There is no retry.
func (c *Client) TranscribeAudio(ctx context.Context, base64Audio, mimeType string) (string, error) {
	if base64Audio == "" || mimeType == "" {
		return "", ErrMissingAudio
	}

	c.log.Debug().
		Str("backend", c.backend.Name()).
		Str("model", c.model).
		Str("mime_type", mimeType).
		Int("payload_len", len(base64Audio)).
		Msg("transcribing audio")

	text, err := c.backend.Generate(ctx, Request{
		Model:  c.model,
		Audio:  &InlineAudio{MIMEType: mimeType, Data: base64Audio},
		Prompt: TranscriptionPrompt,
	})
	if err != nil {
		c.log.Error().Err(err).Str("backend", c.backend.Name()).Msg("transcription request failed")
		return "", c.wrap(err, ErrUnknownTranscription)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyTranscription
	}
	return text, nil
}

// TranslateText translates text into Devanagari Hindi.
func (c *Client) TranslateText(ctx context.Context, text string, lang Language) (string, error) {
	if text == "" {
		return "", ErrMissingText
	}
	prompt, err := BuildTranslationPrompt(text, lang)
	if err != nil {
		return "", err
	}

	c.log.Debug().
		Str("backend", c.backend.Name()).
		Str("language", string(lang)).
		Int("text_len", len(text)).
		Msg("translating text")

	out, err := c.backend.Generate(ctx, Request{Model: c.model, Prompt: prompt})
	if err != nil {
		c.log.Error().Err(err).Str("backend", c.backend.Name()).Msg("translation request failed")
		return "", c.wrap(err, ErrUnknownTranslation)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

// wrap prefixes err with the backend name. An error with no message is
// reported as unknown.
func (c *Client) wrap(err, unknown error) error {
	if err == nil || err.Error() == "" {
		return unknown
	}
	return &BackendError{Backend: c.backend.Name(), Err: err}
}

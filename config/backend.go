package config

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/rs/zerolog"

	"audioscribe/capture"
	"audioscribe/gemini"
	"audioscribe/openai"
	"audioscribe/speech"
)

// NewBackend builds the speech backend for the selected provider.
func (c *Config) NewBackend(log zerolog.Logger) (speech.Backend, error) {
	switch c.Provider {
	case ProviderGemini:
		opts := []gemini.ClientOption{
			gemini.WithTimeout(c.RequestTimeout),
			gemini.WithLogger(log.With().Str("component", "gemini").Logger()),
		}
		if c.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.Gemini.BaseURL))
		}
		return gemini.NewClient(c.Gemini.APIKey, opts...)

	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithHTTPClient(&http.Client{Timeout: c.RequestTimeout}),
			openai.WithModel(c.OpenAI.Model),
			openai.WithTranscriptionModel(c.OpenAI.TranscriptionModel),
			openai.WithLogger(log.With().Str("component", "openai").Logger()),
		}
		if c.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.OpenAI.BaseURL))
		}
		return openai.NewBackend(c.OpenAI.APIKey, opts...)
	}
	return nil, fmt.Errorf("unknown provider %q", c.Provider)
}

// NewSpeechClient wraps the configured backend in a speech.Client.
func (c *Config) NewSpeechClient(log zerolog.Logger) (*speech.Client, error) {
	backend, err := c.NewBackend(log)
	if err != nil {
		return nil, err
	}
	return speech.NewClient(backend,
		speech.WithModel(c.SpeechModel()),
		speech.WithLogger(log.With().Str("component", "speech").Logger()),
	), nil
}

// FFmpegDevice returns the microphone device, filling in the platform's
// default input where none is configured.
func (c *Config) FFmpegDevice() *capture.FFmpegDevice {
	format, device := capture.DefaultInput(runtime.GOOS)
	if c.Recorder.InputFormat != "" {
		format = c.Recorder.InputFormat
	}
	if c.Recorder.InputDevice != "" {
		device = c.Recorder.InputDevice
	}
	return &capture.FFmpegDevice{
		Binary:      c.Recorder.FFmpeg,
		InputFormat: format,
		InputDevice: device,
	}
}

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audioscribe/speech"
)

const (
	// BaseURL is the Google AI Studio API base URL
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout for API requests
	DefaultTimeout = 2 * time.Minute

	apiKeyHeader   = "x-goog-api-key"
	debugBodyLimit = 2000
)

// EnvKeys are the environment variables checked for an API key, in order.
var EnvKeys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// Client talks to the generateContent endpoint. It sends audio inline as
// base64, so requests are bounded by the 10MB upload cap.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ speech.Backend = (*Client)(nil)

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL points the client at another server. Values that are not
// absolute http(s) URLs are ignored.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if u, ok := cleanBaseURL(baseURL); ok {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger traces requests at debug level. The API key is never logged.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for apiKey.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIKeyFromEnv returns the first API key found in EnvKeys.
func APIKeyFromEnv() string {
	for _, k := range EnvKeys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// NewClientFromEnv creates a client from the first of EnvKeys that is set.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	apiKey := APIKeyFromEnv()
	if apiKey == "" {
		return nil, fmt.Errorf("none of %s is set", strings.Join(EnvKeys, ", "))
	}
	return NewClient(apiKey, opts...)
}

// Name implements speech.Backend.
func (c *Client) Name() string { return "Gemini" }

// Generate implements speech.Backend. The audio part, if any, precedes the
// instruction.
func (c *Client) Generate(ctx context.Context, req speech.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	var parts []Part
	if req.Audio != nil {
		parts = append(parts, Part{InlineData: &Blob{MIMEType: req.Audio.MIMEType, Data: req.Audio.Data}})
	}
	parts = append(parts, Part{Text: req.Prompt})

	resp, err := c.GenerateContent(ctx, model, &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", err
	}
	if err := resp.blockErr(); err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GenerateContent POSTs req to models/{model}:generateContent.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.endpoint(model)
	c.log.Debug().
		Str("url", endpoint).
		Bool("audio", hasAudio(req)).
		Int("body_bytes", len(body)).
		Msg("POST generateContent")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.traceResponse(resp.StatusCode, time.Since(start), raw)

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var out GenerateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if u := out.UsageMetadata; u != nil {
		c.log.Debug().
			Int("prompt_tokens", u.PromptTokenCount).
			Int("output_tokens", u.CandidatesTokenCount).
			Msg("token usage")
	}
	return &out, nil
}

func (c *Client) endpoint(model string) string {
	return c.baseURL + "/models/" + url.PathEscape(model) + ":generateContent"
}

func (c *Client) traceResponse(status int, elapsed time.Duration, raw []byte) {
	e := c.log.Debug()
	if !e.Enabled() {
		return
	}
	if len(raw) > debugBodyLimit {
		raw = raw[:debugBodyLimit]
	}
	e.Int("status", status).Dur("elapsed", elapsed).Bytes("body", raw).Msg("generateContent response")
}

// decodeError prefers the server's own message; otherwise the raw body is
// reported with the status code.
func decodeError(status int, raw []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return &APIError{StatusCode: status, Message: env.Error.Message, Status: env.Error.Status}
	}
	msg := fmt.Sprintf("status %d", status)
	if body := strings.TrimSpace(string(raw)); body != "" {
		msg += ": " + body
	}
	return &APIError{StatusCode: status, Message: msg}
}

func cleanBaseURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return strings.TrimSuffix(raw, "/"), true
}

func hasAudio(req *GenerateContentRequest) bool {
	for _, content := range req.Contents {
		for _, p := range content.Parts {
			if p.InlineData != nil {
				return true
			}
		}
	}
	return false
}

// GetAPIKeyHelp returns help text for setting up the API key
func GetAPIKeyHelp() string {
	return `Audioscribe needs a Google Gemini API key to transcribe and translate.

1. Open https://aistudio.google.com/apikey
2. Sign in and click "Create API key"
3. Export it before running audioscribe:

   export GEMINI_API_KEY="your-api-key"

   or put GEMINI_API_KEY=your-api-key in a .env file next to it.

GOOGLE_API_KEY and API_KEY are also read, in that order.`
}

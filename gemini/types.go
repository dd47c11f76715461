// Package gemini provides a client for the Google Gemini generateContent API
// and implements speech.Backend on top of it.
package gemini

import (
	"fmt"
	"strings"
)

// Model names accepted by the generateContent endpoint.
const (
	ModelGemini25Flash = "gemini-2.5-flash"
	ModelGemini25Pro   = "gemini-2.5-pro"
	ModelGemini20Flash = "gemini-2.0-flash"

	// DefaultModel handles both audio transcription and translation.
	DefaultModel = ModelGemini25Flash
)

// APIError is a non-200 reply. Status is the RPC status name, e.g.
// RESOURCE_EXHAUSTED, when the server sent one.
type APIError struct {
	StatusCode int
	Message    string
	Status     string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return e.Message + ": " + e.Status
	}
	return e.Message
}

// errorEnvelope is the JSON error body Google APIs return.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateContentRequest is the body of a generateContent call. Only the
// fields a single-turn audio or text request needs are modelled.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// Content is one turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is either text or an inline base64 blob.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries base64 media, here always audio.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerateContentResponse is the reply to generateContent.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
}

type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

// PromptFeedback is set when the request itself was blocked.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Text joins the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// blockedFinish are finish reasons that mean the output was withheld.
var blockedFinish = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// blockErr reports a reply that carries no text because it was filtered.
func (r *GenerateContentResponse) blockErr() error {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) > 0 && r.Text() == "" {
		if reason := r.Candidates[0].FinishReason; blockedFinish[reason] {
			return fmt.Errorf("response blocked: %s", reason)
		}
	}
	return nil
}

package speech

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubBackend struct {
	text string
	err  error
	reqs []Request
}

func (s *stubBackend) Name() string { return "Gemini" }

func (s *stubBackend) Generate(_ context.Context, req Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.text, s.err
}

// echoBackend returns the quoted text of a translation prompt unchanged, like
// a model asked to translate text that is already Devanagari.
type echoBackend struct{}

func (echoBackend) Name() string { return "Echo" }

func (echoBackend) Generate(_ context.Context, req Request) (string, error) {
	const marker = `Text to translate: "`
	i := strings.Index(req.Prompt, marker)
	if i < 0 {
		return "", errors.New("no text in prompt")
	}
	return strings.TrimSuffix(req.Prompt[i+len(marker):], `"`), nil
}

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestTranscribeAudio(t *testing.T) {
	b := &stubBackend{text: "hello world"}
	c := NewClient(b)

	got, err := c.TranscribeAudio(context.Background(), "aGVsbG8=", "audio/mpeg")
	if err != nil {
		t.Fatalf("TranscribeAudio() failed: %v", err)
	}
	if got != "hello world" {
		t.Errorf("TranscribeAudio() = %q, want hello world", got)
	}

	if len(b.reqs) != 1 {
		t.Fatalf("backend called %d times, want 1", len(b.reqs))
	}
	req := b.reqs[0]
	if req.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", req.Model, DefaultModel)
	}
	if req.Audio == nil || req.Audio.Data != "aGVsbG8=" || req.Audio.MIMEType != "audio/mpeg" {
		t.Errorf("Audio = %+v", req.Audio)
	}
	if req.Prompt != TranscriptionPrompt {
		t.Errorf("Prompt = %q", req.Prompt)
	}
}

func TestTranscribeAudio_Errors(t *testing.T) {
	tests := []struct {
		name    string
		audio   string
		mime    string
		backend *stubBackend
		wantErr error
		wantMsg string
	}{
		{"missing audio", "", "audio/mpeg", &stubBackend{}, ErrMissingAudio, "Audio data or MIME type is missing."},
		{"missing mime", "aGk=", "", &stubBackend{}, ErrMissingAudio, ""},
		{"empty response", "aGk=", "audio/mpeg", &stubBackend{text: ""}, ErrEmptyTranscription, "The API returned an empty transcription."},
		{"whitespace response", "aGk=", "audio/mpeg", &stubBackend{text: " \n\t"}, ErrEmptyTranscription, ""},
		{"unknown", "aGk=", "audio/mpeg", &stubBackend{err: emptyErr{}}, ErrUnknownTranscription, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.backend)
			_, err := c.TranscribeAudio(context.Background(), tt.audio, tt.mime)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestTranscribeAudio_NoCallOnMissingInput(t *testing.T) {
	b := &stubBackend{text: "x"}
	_, _ = NewClient(b).TranscribeAudio(context.Background(), "", "")
	if len(b.reqs) != 0 {
		t.Errorf("backend called %d times, want 0", len(b.reqs))
	}
}

func TestTranscribeAudio_BackendError(t *testing.T) {
	cause := errors.New("rate limited")
	c := NewClient(&stubBackend{err: cause})

	_, err := c.TranscribeAudio(context.Background(), "aGk=", "audio/wav")
	var berr *BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("err = %v, want *BackendError", err)
	}
	if err.Error() != "Gemini API error: rate limited" {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("BackendError should unwrap to the cause")
	}
}

func TestTranslateText(t *testing.T) {
	b := &stubBackend{text: "नमस्ते"}
	c := NewClient(b, WithModel("custom-model"))

	got, err := c.TranslateText(context.Background(), "hello", LanguageEnglish)
	if err != nil {
		t.Fatalf("TranslateText() failed: %v", err)
	}
	if got != "नमस्ते" {
		t.Errorf("TranslateText() = %q", got)
	}
	req := b.reqs[0]
	if req.Audio != nil {
		t.Error("translation request should not carry audio")
	}
	if req.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", req.Model)
	}
	if !strings.HasSuffix(req.Prompt, `Text to translate: "hello"`) {
		t.Errorf("Prompt = %q", req.Prompt)
	}
}

func TestTranslateText_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		lang    Language
		backend *stubBackend
		wantErr error
	}{
		{"missing text", "", LanguageEnglish, &stubBackend{}, ErrMissingText},
		{"empty response", "hi", LanguageHinglish, &stubBackend{}, ErrEmptyTranslation},
		{"unknown", "hi", LanguageEnglish, &stubBackend{err: emptyErr{}}, ErrUnknownTranslation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.backend).TranslateText(context.Background(), tt.text, tt.lang)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := NewClient(&stubBackend{text: "x"}).TranslateText(context.Background(), "hi", Language("french"))
	if err == nil {
		t.Error("unsupported language should fail")
	}
}

func TestTranslateText_DevanagariIsUnchanged(t *testing.T) {
	c := NewClient(echoBackend{})
	in := "मैं घर जा रहा हूँ"

	for _, lang := range Languages {
		got, err := c.TranslateText(context.Background(), in, lang)
		if err != nil {
			t.Fatalf("TranslateText(%s) failed: %v", lang, err)
		}
		if got != in {
			t.Errorf("TranslateText(%s) = %q, want %q", lang, got, in)
		}
	}
}

func TestBuildTranslationPrompt(t *testing.T) {
	tests := []struct {
		lang Language
		want string
	}{
		{LanguageEnglish, `Translate the following English text into Hindi using the Devanagari script. If the provided text is already in Hindi, return it unchanged. Provide only the final translated text. Text to translate: "100% done"`},
		{LanguageHinglish, `Translate the following Hinglish (Romanized Hindi) text into Hindi using the Devanagari script. If the provided text is already in correct Devanagari Hindi, return it unchanged. Provide only the final translated text. Text to translate: "100% done"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			got, err := BuildTranslationPrompt("100% done", tt.lang)
			if err != nil {
				t.Fatalf("BuildTranslationPrompt() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildTranslationPrompt() = %q", got)
			}
		})
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"english", LanguageEnglish, false},
		{"Hinglish", LanguageHinglish, false},
		{" ENGLISH ", LanguageEnglish, false},
		{"hindi", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, %v", tt.in, got, err)
		}
	}
}

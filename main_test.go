package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"audioscribe/capture"
	"audioscribe/gemini"
)

// fakeGemini answers generateContent: audio requests get transcript,
// text-only requests get translation.
func fakeGemini(t *testing.T, transcript, translation string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		text := translation
		if bytes.Contains(body, []byte("inlineData")) {
			text = transcript
		}
		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// setupCLI points the CLI at an empty home, a private state file and the
// given Gemini server.
func setupCLI(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, k := range []string{
		"GOOGLE_API_KEY", "API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"AUDIOSCRIBE_GEMINI_API_KEY", "AUDIOSCRIBE_OPENAI_API_KEY",
		"AUDIOSCRIBE_PROVIDER", "AUDIOSCRIBE_MODEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("AUDIOSCRIBE_GEMINI_BASE_URL", baseURL)
	t.Setenv("AUDIOSCRIBE_STATE_FILE", filepath.Join(dir, "state.json"))
	t.Setenv("AUDIOSCRIBE_LOG_LEVEL", "error")
	return dir
}

func writeWAV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 64)...)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, streams{
		in:  strings.NewReader(stdin),
		out: &out,
		err: &errOut,
	})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func TestRunVersion(t *testing.T) {
	res := runCLI(t, "", "--version")
	if res.code != 0 {
		t.Fatalf("code = %d, want 0", res.code)
	}
	if !strings.Contains(res.stdout, "audioscribe "+version) {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRunHelp(t *testing.T) {
	for _, args := range [][]string{{"help"}, {"--help"}} {
		res := runCLI(t, "", args...)
		if res.code != 0 {
			t.Errorf("%v: code = %d, want 0", args, res.code)
		}
	}
	if res := runCLI(t, "", "help"); !strings.Contains(res.stdout, "COMMANDS:") {
		t.Errorf("help output = %q", res.stdout)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	res := runCLI(t, "", "dance")
	if res.code != 2 {
		t.Errorf("code = %d, want 2", res.code)
	}
	if !strings.Contains(res.stderr, `unknown command "dance"`) {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestRunBadGlobalFlag(t *testing.T) {
	if res := runCLI(t, "", "--nope"); res.code != 2 {
		t.Errorf("code = %d, want 2", res.code)
	}
}

func TestCommandHelp(t *testing.T) {
	srv, _ := fakeGemini(t, "", "")
	setupCLI(t, srv.URL)

	res := runCLI(t, "", "transcribe", "--help")
	if res.code != 0 {
		t.Fatalf("code = %d, want 0", res.code)
	}
	if !strings.Contains(res.stdout, "usage: audioscribe transcribe") || !strings.Contains(res.stdout, "--translate") {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestTranscribeAndHistory(t *testing.T) {
	srv, _ := fakeGemini(t, "Hello world", "")
	dir := setupCLI(t, srv.URL)
	path := writeWAV(t, dir, "greeting.wav")

	res := runCLI(t, "", "transcribe", "--json", path)
	if res.code != 0 {
		t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
	}
	var got transcriptionOutput
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if got.Text != "Hello world" || got.AudioName != "greeting.wav" || got.ID == "" {
		t.Errorf("output = %+v", got)
	}
	if got.Translation != "" {
		t.Errorf("Translation = %q, want none", got.Translation)
	}

	// History is persisted across runs.
	res = runCLI(t, "", "history", "--json")
	var items []transcriptionOutput
	if err := json.Unmarshal([]byte(res.stdout), &items); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if len(items) != 1 || items[0].ID != got.ID {
		t.Fatalf("history = %+v", items)
	}

	res = runCLI(t, "", "history", "list")
	if !strings.Contains(res.stdout, shortID(got.ID)) || !strings.Contains(res.stdout, "greeting.wav") {
		t.Errorf("list = %q", res.stdout)
	}

	res = runCLI(t, "", "history", "show", shortID(got.ID))
	if res.code != 0 || strings.TrimSpace(res.stdout) != "Hello world" {
		t.Errorf("show: code = %d, stdout = %q, stderr = %q", res.code, res.stdout, res.stderr)
	}

	if res = runCLI(t, "", "history", "show", "missing"); res.code != 1 {
		t.Errorf("show missing: code = %d, want 1", res.code)
	}

	if res = runCLI(t, "", "history", "clear"); res.code != 2 {
		t.Errorf("clear without --yes: code = %d, want 2", res.code)
	}
	if res = runCLI(t, "", "history", "clear", "--yes"); res.code != 0 {
		t.Fatalf("clear: code = %d, stderr = %s", res.code, res.stderr)
	}
	res = runCLI(t, "", "history", "--json")
	if strings.TrimSpace(res.stdout) != "[]" {
		t.Errorf("history after clear = %q, want []", res.stdout)
	}
}

func TestTranscribePlainWithTranslation(t *testing.T) {
	srv, calls := fakeGemini(t, "kya haal hai", "क्या हाल है")
	dir := setupCLI(t, srv.URL)
	path := writeWAV(t, dir, "chat.wav")

	res := runCLI(t, "", "transcribe", "--translate", "hinglish", path)
	if res.code != 0 {
		t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
	}
	want := "kya haal hai\n\nक्या हाल है\n"
	if res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestTranscribeCopy(t *testing.T) {
	srv, _ := fakeGemini(t, "copy me", "")
	dir := setupCLI(t, srv.URL)
	path := writeWAV(t, dir, "note.wav")

	tests := []struct {
		name    string
		copyErr error
		want    string
	}{
		{"success", nil, "Copied!"},
		{"failure", errors.New("no clipboard"), "Failed to copy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var copied string
			orig := copyToClipboard
			copyToClipboard = func(s string) error {
				copied = s
				return tt.copyErr
			}
			t.Cleanup(func() { copyToClipboard = orig })

			res := runCLI(t, "", "transcribe", "--copy", path)
			if res.code != 0 {
				t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
			}
			if copied != "copy me" {
				t.Errorf("copied %q", copied)
			}
			if !strings.Contains(res.stderr, tt.want) {
				t.Errorf("stderr = %q, want %q", res.stderr, tt.want)
			}
		})
	}
}

func TestTranscribeBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"rate limited"}}`))
	}))
	t.Cleanup(srv.Close)
	dir := setupCLI(t, srv.URL)
	path := writeWAV(t, dir, "busy.wav")

	res := runCLI(t, "", "transcribe", path)
	if res.code != 1 {
		t.Fatalf("code = %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "Transcription failed. Gemini API error: rate limited") {
		t.Errorf("stderr = %q", res.stderr)
	}

	res = runCLI(t, "", "history", "--json")
	if strings.TrimSpace(res.stdout) != "[]" {
		t.Errorf("failed transcription was saved: %q", res.stdout)
	}
}

func TestTranscribeRejectsFile(t *testing.T) {
	srv, calls := fakeGemini(t, "unused", "")
	dir := setupCLI(t, srv.URL)

	notes := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notes, []byte("just text"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"wrong type", []string{"transcribe", notes}, 1, capture.ErrInvalidType.Error()},
		{"missing file", []string{"transcribe", filepath.Join(dir, "nope.mp3")}, 1, capture.ErrReadFailed.Error()},
		{"no argument", []string{"transcribe"}, 2, "exactly one audio file"},
		{"bad language", []string{"transcribe", "--translate", "french", notes}, 2, "unsupported language"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			if res.code != tt.code {
				t.Errorf("code = %d, want %d", res.code, tt.code)
			}
			if !strings.Contains(res.stderr, tt.want) {
				t.Errorf("stderr = %q, want %q", res.stderr, tt.want)
			}
		})
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestMissingAPIKeyShowsHelp(t *testing.T) {
	srv, _ := fakeGemini(t, "", "")
	dir := setupCLI(t, srv.URL)
	os.Unsetenv("GEMINI_API_KEY")
	path := writeWAV(t, dir, "a.wav")

	res := runCLI(t, "", "transcribe", path)
	if res.code != 1 {
		t.Fatalf("code = %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "gemini.api_key") {
		t.Errorf("stderr = %q, want missing key error", res.stderr)
	}
	firstLine := strings.SplitN(gemini.GetAPIKeyHelp(), "\n", 2)[0]
	if !strings.Contains(res.stderr, firstLine) {
		t.Errorf("stderr missing key help: %q", res.stderr)
	}
}

func TestTranslateCommand(t *testing.T) {
	var prompt atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		prompt.Store(string(body))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"नमस्ते"}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	setupCLI(t, srv.URL)

	res := runCLI(t, "hello there\n", "translate", "--from", "english", "-")
	if res.code != 0 {
		t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
	}
	if res.stdout != "नमस्ते\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
	body, _ := prompt.Load().(string)
	if !strings.Contains(body, "English text into Hindi") || !strings.Contains(body, "hello there") {
		t.Errorf("request body = %s", body)
	}

	res = runCLI(t, "", "translate", "-f", "hinglish", "--json", "kaise", "ho")
	if res.code != 0 {
		t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if got["text"] != "kaise ho" || got["language"] != "hinglish" || got["translation"] != "नमस्ते" {
		t.Errorf("output = %v", got)
	}
}

func TestTranslateUsage(t *testing.T) {
	srv, _ := fakeGemini(t, "", "")
	setupCLI(t, srv.URL)

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"translate", "hi"}},
		{"bad source", []string{"translate", "--from", "tamil", "hi"}},
		{"no text", []string{"translate", "--from", "english"}},
		{"blank stdin", []string{"translate", "--from", "english", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := runCLI(t, "  \n", tt.args...); res.code != 2 {
				t.Errorf("code = %d, want 2 (stderr %q)", res.code, res.stderr)
			}
		})
	}
}

func TestThemeCommand(t *testing.T) {
	srv, _ := fakeGemini(t, "", "")
	setupCLI(t, srv.URL)

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"theme", "light"}, "light"},
		{[]string{"theme"}, "light"},
		{[]string{"theme", "toggle"}, "dark"},
		{[]string{"theme"}, "dark"},
	}
	for _, s := range steps {
		res := runCLI(t, "", s.args...)
		if res.code != 0 || strings.TrimSpace(res.stdout) != s.want {
			t.Errorf("%v: code = %d, stdout = %q, want %q", s.args, res.code, res.stdout, s.want)
		}
	}

	if res := runCLI(t, "", "theme", "purple"); res.code != 2 {
		t.Errorf("invalid theme: code = %d, want 2", res.code)
	}
}

func TestUpdateDevBuild(t *testing.T) {
	res := runCLI(t, "", "update")
	if res.code != 1 || !strings.Contains(res.stderr, "development builds") {
		t.Errorf("code = %d, stderr = %q", res.code, res.stderr)
	}
}

type clipStream struct{ io.Reader }

func (clipStream) Stop() error  { return nil }
func (clipStream) Close() error { return nil }

type fakeMic struct{ data string }

func (m fakeMic) Open(context.Context) (capture.Stream, error) {
	return clipStream{strings.NewReader(m.data)}, nil
}

func TestRecordStopsAfterDuration(t *testing.T) {
	stdin, w := io.Pipe()
	t.Cleanup(func() { w.Close() })

	var errOut bytes.Buffer
	a := &app{std: streams{in: stdin, out: io.Discard, err: &errOut}}

	start := time.Now()
	payload, err := a.record(context.Background(), capture.NewRecorder(fakeMic{data: "opus"}), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("stopped before the duration elapsed")
	}
	if payload.MIMEType != capture.RecordingMIMEType || payload.Size() != len("opus") {
		t.Errorf("payload = %+v", payload)
	}
	if !strings.Contains(errOut.String(), "Recording for") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRecordLeavesStdinForNextPrompt(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		cancel   bool
	}{
		{"duration elapsed", 20 * time.Millisecond, false},
		{"cancelled", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdin, keyboard := net.Pipe()
			t.Cleanup(func() {
				stdin.Close()
				keyboard.Close()
			})
			a := &app{std: streams{in: stdin, out: io.Discard, err: io.Discard}}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				time.AfterFunc(10*time.Millisecond, cancel)
			}
			_, _ = a.record(ctx, capture.NewRecorder(fakeMic{data: "opus"}), tt.duration)

			go keyboard.Write([]byte("next\n"))
			stdin.SetReadDeadline(time.Now().Add(time.Second))
			line, err := bufio.NewReader(stdin).ReadString('\n')
			if err != nil || line != "next\n" {
				t.Errorf("next read = %q, %v; the Enter reader kept stdin", line, err)
			}
		})
	}
}

func TestRecordStopsOnEnter(t *testing.T) {
	a := &app{std: streams{in: strings.NewReader("\n"), out: io.Discard, err: io.Discard}}
	payload, err := a.record(context.Background(), capture.NewRecorder(fakeMic{data: "opus"}), 0)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if payload.Size() != len("opus") {
		t.Errorf("Size = %d", payload.Size())
	}
}

func TestRecordCancelled(t *testing.T) {
	stdin, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	a := &app{std: streams{in: stdin, out: io.Discard, err: io.Discard}}

	ctx, cancel := context.WithCancel(context.Background())
	rec := capture.NewRecorder(fakeMic{data: "opus"})
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := a.record(ctx, rec, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if rec.State() != capture.StateIdle {
		t.Errorf("State = %v, want idle", rec.State())
	}
}

func TestTranscribeWithOpenAI(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/audio/transcriptions":
			w.Write([]byte(`{"text":"good morning"}`))
		case "/v1/chat/completions":
			w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"सुप्रभात"},"finish_reason":"stop"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	dir := setupCLI(t, "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("AUDIOSCRIBE_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")
	path := writeWAV(t, dir, "morning.wav")

	res := runCLI(t, "", "transcribe", "--translate", "english", "--json", path)
	if res.code != 0 {
		t.Fatalf("code = %d, stderr = %s", res.code, res.stderr)
	}
	var got transcriptionOutput
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if got.Text != "good morning" || got.Translation != "सुप्रभात" || got.Language != "english" {
		t.Errorf("output = %+v", got)
	}
	want := []string{"/v1/audio/transcriptions", "/v1/chat/completions"}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"

	"audioscribe/capture"
	"audioscribe/history"
	"audioscribe/logging"
	"audioscribe/speech"
)

// copyToClipboard is swapped out in tests.
var copyToClipboard = clipboard.WriteAll

// transcriptionOutput is the --json form of a transcription.
type transcriptionOutput struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AudioName   string    `json:"audioName"`
	Date        time.Time `json:"date"`
	Translation string    `json:"translation,omitempty"`
	Language    string    `json:"language,omitempty"`
}

// outputOptions are shared by transcribe and record.
type outputOptions struct {
	translate string
	json      bool
	copy      bool
}

func (o *outputOptions) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.translate, "translate", "t", "", "also translate into Hindi from `LANG` (english or hinglish)")
	fs.BoolVar(&o.json, "json", false, "print the result as JSON")
	fs.BoolVar(&o.copy, "copy", false, "copy the transcription to the clipboard")
}

func (o *outputOptions) language() (speech.Language, error) {
	if o.translate == "" {
		return "", nil
	}
	lang, err := speech.ParseLanguage(o.translate)
	if err != nil {
		return "", usagef("--translate: %v", err)
	}
	return lang, nil
}

func (a *app) transcribeCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("transcribe", pflag.ContinueOnError)
	var out outputOptions
	out.register(fs)
	if err := parseFlags(fs, args, a.std, "transcribe [flags] <file>"); err != nil {
		return err
	}
	lang, err := out.language()
	if err != nil {
		return err
	}

	var path string
	switch {
	case fs.NArg() == 1:
		path = fs.Arg(0)
	case fs.NArg() == 0 && a.std.interactive:
		path, err = promptAudioFile()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	default:
		return usagef("transcribe takes exactly one audio file")
	}

	payload, err := capture.FromFile(path)
	if err != nil {
		return err
	}
	return a.transcribe(ctx, payload, lang, out)
}

// promptAudioFile asks for a path when transcribe is run without one.
func promptAudioFile() (string, error) {
	var path string
	input := huh.NewInput().
		Title("Audio file").
		Description("MP3, WAV, OGG or MP4, up to 10MB").
		Placeholder("./recording.mp3").
		Value(&path).
		Validate(func(s string) error {
			info, err := os.Stat(strings.TrimSpace(s))
			if err != nil {
				return errors.New("file not found")
			}
			return capture.Validate(capture.DetectMIMEType(nil, s), info.Size())
		})

	err := huh.NewForm(huh.NewGroup(input)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	return strings.TrimSpace(path), err
}

// transcribe runs one request through a session so the result lands in
// history, then prints it.
func (a *app) transcribe(ctx context.Context, payload capture.AudioPayload, lang speech.Language, out outputOptions) error {
	sess, client, err := a.newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	var item history.Transcription
	withSpinner(a.std, fmt.Sprintf("Transcribing %s with %s...", payload.Name, client.BackendName()), func() {
		item, err = sess.Transcribe(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("Transcription failed. %w", err)
	}

	result := transcriptionOutput{
		ID:        item.ID,
		Text:      item.Text,
		AudioName: item.AudioName,
		Date:      item.Date,
	}

	if lang != "" {
		var text string
		withSpinner(a.std, fmt.Sprintf("Translating from %s...", lang.Label()), func() {
			text, err = sess.Translate(ctx, lang)
		})
		if err != nil {
			return fmt.Errorf("Translation failed: %w", err)
		}
		result.Translation = text
		result.Language = string(lang)
	}

	if out.copy {
		a.copyText(item.Text)
	}
	return a.printTranscription(result, out.json)
}

func (a *app) copyText(text string) {
	if err := copyToClipboard(text); err != nil {
		a.log.Warn().Err(err).Msg("clipboard write failed")
		fmt.Fprintln(a.std.err, errorStyle.Render("Failed to copy"))
		return
	}
	fmt.Fprintln(a.std.err, successStyle.Render("Copied!"))
}

func (a *app) printTranscription(res transcriptionOutput, asJSON bool) error {
	if asJSON {
		return writeJSON(a.std.out, res)
	}

	if !a.std.interactive {
		fmt.Fprintln(a.std.out, res.Text)
		if res.Translation != "" {
			fmt.Fprintln(a.std.out)
			fmt.Fprintln(a.std.out, res.Translation)
		}
		return nil
	}

	fmt.Fprintln(a.std.out, titleStyle.Render("Transcription")+" "+infoStyle.Render(res.AudioName))
	fmt.Fprintln(a.std.out, boxStyle.Render(res.Text))
	if res.Translation != "" {
		label := speech.Language(res.Language).Label()
		fmt.Fprintln(a.std.out, titleStyle.Render("Hindi translation")+" "+infoStyle.Render("from "+label))
		fmt.Fprintln(a.std.out, boxStyle.Render(res.Translation))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (a *app) recordCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("record", pflag.ContinueOnError)
	var out outputOptions
	out.register(fs)
	duration := fs.DurationP("duration", "d", 0, "stop after this long instead of waiting for Enter")
	if err := parseFlags(fs, args, a.std, "record [flags]"); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usagef("record takes no arguments")
	}
	if *duration < 0 {
		return usagef("--duration must not be negative")
	}
	lang, err := out.language()
	if err != nil {
		return err
	}

	dev := a.cfg.FFmpegDevice()
	if _, err := capture.CheckFFmpeg(dev.Binary); err != nil {
		return err
	}
	rec := capture.NewRecorder(dev, capture.WithLogger(logging.WithComponent("recorder")))

	payload, err := a.record(ctx, rec, *duration)
	if err != nil {
		return err
	}
	return a.transcribe(ctx, payload, lang, out)
}

// record captures until Enter is pressed, d elapses, or ctx is done.
func (a *app) record(ctx context.Context, rec *capture.Recorder, d time.Duration) (capture.AudioPayload, error) {
	if err := rec.Start(ctx); err != nil {
		return capture.AudioPayload{}, err
	}

	prompt := "Recording... press Enter to stop."
	if d > 0 {
		prompt = fmt.Sprintf("Recording for %s... press Enter to stop early.", d)
	}
	fmt.Fprintln(a.std.err, titleStyle.Render(prompt))

	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(a.std.in).ReadString('\n')
		close(enter)
	}()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-enter:
	case <-timeout:
		a.abandonRead(enter)
	case <-ctx.Done():
		a.abandonRead(enter)
		rec.Cancel()
		return capture.AudioPayload{}, ctx.Err()
	}

	payload, err := rec.Stop()
	if err != nil {
		return capture.AudioPayload{}, err
	}
	fmt.Fprintln(a.std.err, infoStyle.Render(fmt.Sprintf("Recorded %s (%d bytes)", payload.Name, payload.Size())))
	return payload, nil
}

// abandonRead unblocks the Enter reader when stdin supports read deadlines,
// so the line is not swallowed from a later prompt. A terminal stdin usually
// does not, and its reader stays parked until the process exits.
func (a *app) abandonRead(done <-chan struct{}) {
	dl, ok := a.std.in.(interface{ SetReadDeadline(time.Time) error })
	if !ok || dl.SetReadDeadline(time.Now()) != nil {
		return
	}
	<-done
	_ = dl.SetReadDeadline(time.Time{})
}

func (a *app) translateCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("translate", pflag.ContinueOnError)
	from := fs.StringP("from", "f", "", "source language: english or hinglish")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := parseFlags(fs, args, a.std, "translate --from LANG <text|->"); err != nil {
		return err
	}
	if *from == "" {
		return usagef("translate needs --from english or --from hinglish")
	}
	lang, err := speech.ParseLanguage(*from)
	if err != nil {
		return usagef("--from: %v", err)
	}
	if fs.NArg() == 0 {
		return usagef("translate takes the text to translate, or - to read stdin")
	}

	text := strings.Join(fs.Args(), " ")
	if text == "-" {
		raw, err := io.ReadAll(a.std.in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return usagef("nothing to translate")
	}

	client, err := a.speechClient()
	if err != nil {
		return err
	}

	var translated string
	withSpinner(a.std, fmt.Sprintf("Translating from %s...", lang.Label()), func() {
		translated, err = client.TranslateText(ctx, text, lang)
	})
	if err != nil {
		return fmt.Errorf("Translation failed: %w", err)
	}

	if *asJSON {
		return writeJSON(a.std.out, map[string]string{
			"text":        text,
			"language":    string(lang),
			"translation": translated,
		})
	}
	fmt.Fprintln(a.std.out, translated)
	return nil
}

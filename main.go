package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"audioscribe/config"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#4F46E5", Dark: "#818CF8"}).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"})

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"})

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#A8A8A8"})

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"}).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

const usage = `audioscribe - transcribe and translate speech with Gemini or OpenAI

USAGE:
    audioscribe [GLOBAL OPTIONS]                 Start the terminal UI
    audioscribe [GLOBAL OPTIONS] <command> [ARGS]

COMMANDS:
    transcribe [--translate LANG] [--json] [--copy] <file>
                            Transcribe an MP3, WAV, OGG or MP4 file
    record [--duration 10s] [--translate LANG] [--json] [--copy]
                            Record from the microphone, then transcribe
    translate --from LANG <text|->
                            Translate English or Hinglish text into Hindi
    history [list|show <id>|clear] [--json] [--yes]
                            Show or clear the last five transcriptions
    theme [light|dark|toggle]
                            Show or change the UI theme
    update                  Update to the latest release

GLOBAL OPTIONS:
    -c, --config <file>     Config file (default: ./config.yml or the user config dir)
        --env-file <file>   Environment file (default: ./.env)
    -v, --version           Print version information
    -h, --help              Show this help

LANG is english or hinglish.

ENVIRONMENT:
    GEMINI_API_KEY          Google Gemini API key
    OPENAI_API_KEY          OpenAI API key (with AUDIOSCRIBE_PROVIDER=openai)
    AUDIOSCRIBE_*           Any config key, e.g. AUDIOSCRIBE_LOG_LEVEL=debug
`

// usageError marks bad command-line input; it exits with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// globalOptions are the flags accepted before the command name.
type globalOptions struct {
	config  string
	envFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], streams{
		in:          os.Stdin,
		out:         os.Stdout,
		err:         os.Stderr,
		interactive: isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd()),
	})
	stop()
	os.Exit(code)
}

// streams are the process's standard files; tests substitute buffers.
type streams struct {
	in          io.Reader
	out         io.Writer
	err         io.Writer
	interactive bool
}

func run(ctx context.Context, args []string, std streams) int {
	fs := pflag.NewFlagSet("audioscribe", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(std.err)
	fs.Usage = func() { fmt.Fprint(std.err, usage) }

	var opts globalOptions
	showVersion := fs.BoolP("version", "v", false, "print version information")
	fs.StringVarP(&opts.config, "config", "c", "", "config file")
	fs.StringVar(&opts.envFile, "env-file", "", "environment file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		printVersion(std.out)
		return 0
	}

	err := dispatch(ctx, opts, fs.Args(), std)
	if err == nil {
		return 0
	}
	return reportError(std.err, err)
}

func dispatch(ctx context.Context, opts globalOptions, args []string, std streams) error {
	if len(args) == 0 {
		return runTUI(opts, std)
	}

	cmd, rest := args[0], args[1:]
	if cmd == "help" {
		fmt.Fprint(std.out, usage)
		return nil
	}
	if cmd == "update" {
		return updateCommand(ctx, rest, std)
	}

	commands := map[string]func(*app, context.Context, []string) error{
		"transcribe": (*app).transcribeCommand,
		"record":     (*app).recordCommand,
		"translate":  (*app).translateCommand,
		"history":    (*app).historyCommand,
		"theme":      (*app).themeCommand,
	}
	fn, ok := commands[cmd]
	if !ok {
		return usagef("unknown command %q (run 'audioscribe help')", cmd)
	}

	a, err := newApp(opts, std, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, ctx, rest)
}

// reportError prints err and returns the exit status.
func reportError(w io.Writer, err error) int {
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
		return 2
	}

	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))

	var verr *config.ValidationError
	if errors.As(err, &verr) && verr.MissingAPIKey() {
		provider := config.ProviderGemini
		if strings.HasPrefix(verr.Fields[0].Key, config.ProviderOpenAI) {
			provider = config.ProviderOpenAI
		}
		fmt.Fprintln(w, infoStyle.Render(config.GetAPIKeyHelp(provider)))
	}
	return 1
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "audioscribe %s\n", version)
	fmt.Fprintf(w, "  commit: %s\n", commit)
	fmt.Fprintf(w, "  built:  %s\n", date)
	fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
	fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

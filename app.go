package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"audioscribe/capture"
	"audioscribe/config"
	"audioscribe/history"
	"audioscribe/localstore"
	"audioscribe/logging"
	"audioscribe/prefs"
	"audioscribe/session"
	"audioscribe/speech"
	"audioscribe/tui"
)

// app holds what every command needs: configuration and the history and
// theme kept in the state file.
type app struct {
	cfg     *config.Config
	std     streams
	history *history.Store
	themes  *prefs.Themes
	log     zerolog.Logger
	closer  io.Closer
}

// newApp loads configuration and persisted state. In TUI mode logs go to a
// file so they do not draw over the alt screen.
func newApp(opts globalOptions, std streams, tuiMode bool) (*app, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: opts.config,
		EnvFile:    opts.envFile,
	})
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging()
	if tuiMode && logCfg.File == "" {
		logCfg.File = logging.DefaultFile()
	}
	closer, err := logging.Init(logCfg)
	if err != nil {
		return nil, err
	}
	log := logging.WithComponent("app")
	if cfg.File != "" {
		log.Debug().Str("file", cfg.File).Msg("loaded config file")
	}

	state, err := localstore.Open(cfg.StateFile)
	if err != nil {
		closer.Close()
		return nil, err
	}

	hist := history.NewStore(state, history.WithLogger(logging.WithComponent("history")))
	hist.Load()

	themes := prefs.NewThemes(state, prefs.WithLogger(logging.WithComponent("prefs")))
	prefs.Apply(themes.Load())

	return &app{
		cfg:     cfg,
		std:     std,
		history: hist,
		themes:  themes,
		log:     log,
		closer:  closer,
	}, nil
}

// Close releases the log file.
func (a *app) Close() {
	if err := a.closer.Close(); err != nil {
		fmt.Fprintln(a.std.err, errorStyle.Render("Error closing log: "+err.Error()))
	}
}

// speechClient validates the configuration and builds the client for the
// selected provider.
func (a *app) speechClient() (*speech.Client, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return a.cfg.NewSpeechClient(logging.Logger())
}

// newSession returns a session over the persisted history.
func (a *app) newSession() (*session.Session, *speech.Client, error) {
	client, err := a.speechClient()
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(client, a.history,
		session.WithLogger(logging.WithComponent("session")),
	)
	return sess, client, nil
}

// runTUI starts the terminal UI. Recording is offered when ffmpeg is found.
func runTUI(opts globalOptions, std streams) error {
	a, err := newApp(opts, std, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, _, err := a.newSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	tuiOpts := []tui.Option{
		tui.WithThemes(a.themes),
		tui.WithLogger(logging.WithComponent("tui")),
	}

	dev := a.cfg.FFmpegDevice()
	if _, err := capture.CheckFFmpeg(dev.Binary); err != nil {
		a.log.Warn().Err(err).Msg("recording disabled")
	} else {
		rec := capture.NewRecorder(dev, capture.WithLogger(logging.WithComponent("recorder")))
		tuiOpts = append(tuiOpts, tui.WithRecorder(rec))
	}

	if wd, err := os.Getwd(); err == nil {
		tuiOpts = append(tuiOpts, tui.WithStartDir(wd))
	}

	return tui.Run(sess, tuiOpts...)
}

// withSpinner runs action behind a spinner when attached to a terminal.
func withSpinner(std streams, title string, action func()) {
	if !std.interactive {
		action()
		return
	}
	ran := false
	err := spinner.New().
		Title(title).
		Action(func() {
			ran = true
			action()
		}).
		Run()
	if err != nil && !ran {
		action()
	}
}

// parseFlags parses a command's flags. Help goes to stdout; anything else
// becomes a usage error.
func parseFlags(fs *pflag.FlagSet, args []string, std streams, synopsis string) error {
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	err := fs.Parse(args)
	if err == nil {
		return nil
	}
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(std.out, "usage: audioscribe %s\n\n", synopsis)
		fs.SetOutput(std.out)
		fs.PrintDefaults()
		return err
	}
	return usagef("%s: %v", fs.Name(), err)
}

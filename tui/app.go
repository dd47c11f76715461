package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"audioscribe/capture"
	"audioscribe/history"
	"audioscribe/prefs"
	"audioscribe/session"
	"audioscribe/speech"
)

// Mode selects the active tab of the input view.
type Mode int

const (
	ModeFile Mode = iota
	ModeRecord
	ModeHistory
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "File"
	case ModeRecord:
		return "Record"
	case ModeHistory:
		return "History"
	default:
		return "unknown"
	}
}

const (
	tickInterval = session.DefaultProgressInterval
	copyFeedback = 2 * time.Second

	labelCopied     = "Copied!"
	labelCopyFailed = "Failed to copy"
)

// fileLoadedMsg is sent when a picked file has been read and validated
type fileLoadedMsg struct {
	path    string
	payload capture.AudioPayload
	err     error
}

// transcribedMsg is sent when the backend call for ticket returns
type transcribedMsg struct {
	ticket session.Ticket
	item   history.Transcription
	err    error
}

// translatedMsg is sent when the translation for ticket returns
type translatedMsg struct {
	ticket session.TranslationTicket
	text   string
	err    error
}

// recordStartedMsg is sent once the microphone is open, or failed to open
type recordStartedMsg struct {
	gen int
	err error
}

// recordedMsg carries the finished recording
type recordedMsg struct {
	gen     int
	payload capture.AudioPayload
	err     error
}

type tickMsg time.Time

type copyResetMsg struct{ gen int }

// Option configures the Model
type Option func(*Model)

// WithRecorder enables the Record tab.
func WithRecorder(r *capture.Recorder) Option {
	return func(m *Model) {
		m.recorder = r
	}
}

// WithThemes enables theme toggling.
func WithThemes(t *prefs.Themes) Option {
	return func(m *Model) {
		m.themes = t
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		m.copyFn = write
	}
}

// WithStartDir sets the directory the file picker opens in.
func WithStartDir(dir string) Option {
	return func(m *Model) {
		m.filepicker.CurrentDirectory = dir
	}
}

// WithLogger sets the UI logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) {
		m.log = l
	}
}

// Model is the Bubble Tea model for the transcription app
type Model struct {
	session  *session.Session
	recorder *capture.Recorder
	themes   *prefs.Themes
	copyFn   func(string) error
	log      zerolog.Logger

	// UI Components
	filepicker filepicker.Model
	spinner    spinner.Model
	progress   progress.Model
	viewport   viewport.Model

	// Input state
	mode        Mode
	historyIdx  int
	inputErr    string
	loadingFile string

	// Request tracking; results for any other ticket are ignored
	pending   session.Ticket
	trPending session.TranslationTicket
	recordGen int
	starting  bool
	stopping  bool
	elapsed   time.Duration
	ticking   bool

	// Transient copy feedback
	copyLabel  string
	copyTarget string
	copyGen    int

	// Dimensions
	width  int
	height int

	quitting bool

	// Context for backend calls, cancelled on quit
	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel creates the app model around s.
func NewModel(s *session.Session, opts ...Option) Model {
	fp := filepicker.New()
	fp.AllowedTypes = capture.AllowedExtensions
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.ShowHidden = false
	fp.ShowSize = true
	fp.Height = 10

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		session:    s,
		copyFn:     clipboard.WriteAll,
		log:        zerolog.Nop(),
		filepicker: fp,
		spinner:    sp,
		progress:   p,
		viewport:   viewport.New(72, 10),
		width:      80,
		height:     24,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.filepicker.Init(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		return m.handleTick()

	case fileLoadedMsg:
		if msg.path != m.loadingFile {
			return m, nil
		}
		m.loadingFile = ""
		if msg.err != nil {
			m.inputErr = msg.err.Error()
			return m, nil
		}
		return m.submit(msg.payload)

	case recordStartedMsg:
		if msg.gen != m.recordGen {
			return m, nil
		}
		m.starting = false
		if msg.err != nil {
			m.inputErr = msg.err.Error()
			return m, nil
		}
		return m, m.startTicking()

	case recordedMsg:
		if msg.gen != m.recordGen {
			return m, nil
		}
		m.stopping = false
		m.elapsed = 0
		if msg.err != nil {
			m.inputErr = msg.err.Error()
			return m, nil
		}
		return m.submit(msg.payload)

	case transcribedMsg:
		if msg.ticket.Generation != m.pending.Generation || errors.Is(msg.err, session.ErrStale) {
			return m, nil
		}
		m.pending = session.Ticket{}
		if m.session.View() == session.ViewResult {
			m.historyIdx = 0
			m.showResult()
		}
		return m, nil

	case translatedMsg:
		if msg.ticket.Generation != m.trPending.Generation ||
			msg.ticket.TranscriptionID != m.trPending.TranscriptionID {
			return m, nil
		}
		m.trPending = session.TranslationTicket{}
		m.refreshResult()
		return m, nil

	case copyResetMsg:
		if msg.gen == m.copyGen {
			m.copyLabel = ""
			m.copyTarget = ""
		}
		return m, nil
	}

	// The file picker reads directories asynchronously.
	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)
	return m, cmd
}

// handleKey dispatches key input by view
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		m.cancel()
		if m.recorder != nil {
			m.recorder.Cancel()
		}
		return m, tea.Quit
	case "t":
		m.toggleTheme()
		return m, nil
	}

	switch m.session.View() {
	case session.ViewInput:
		return m.handleInputKey(msg)
	case session.ViewResult:
		return m.handleResultKey(msg)
	case session.ViewError:
		switch msg.String() {
		case "n", "enter":
			return m.startOver()
		}
	}
	// Loading ignores everything else so nothing can resubmit.
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		if m.recordingBusy() {
			return m, nil
		}
		m.mode = (m.mode + 1) % 3
		m.inputErr = ""
		return m, nil
	case "shift+tab":
		if m.recordingBusy() {
			return m, nil
		}
		m.mode = (m.mode + 2) % 3
		m.inputErr = ""
		return m, nil
	case "D":
		m.clearHistory()
		return m, nil
	}

	switch m.mode {
	case ModeRecord:
		return m.handleRecordKey(msg)
	case ModeHistory:
		return m.handleHistoryKey(msg)
	}

	if m.loadingFile != "" {
		return m, nil
	}
	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)
	if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
		m.inputErr = ""
		m.loadingFile = path
		return m, tea.Batch(cmd, loadFile(path))
	}
	if didSelect, _ := m.filepicker.DidSelectDisabledFile(msg); didSelect {
		m.inputErr = capture.ErrInvalidType.Error()
	}
	return m, cmd
}

func (m Model) handleRecordKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.recorder == nil {
		return m, nil
	}
	switch msg.String() {
	case "r":
		if m.recorder.State() != capture.StateIdle || m.starting {
			return m, nil
		}
		m.inputErr = ""
		m.starting = true
		return m, m.startRecording()
	case "s":
		if m.recorder.State() != capture.StateRecording || m.stopping {
			return m, nil
		}
		m.stopping = true
		return m, m.stopRecording()
	case "x":
		m.recorder.Cancel()
		m.recordGen++
		m.starting = false
		m.stopping = false
		m.elapsed = 0
		m.inputErr = ""
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.session.History()
	switch msg.String() {
	case "up", "k":
		if m.historyIdx > 0 {
			m.historyIdx--
		}
	case "down", "j":
		if m.historyIdx < len(items)-1 {
			m.historyIdx++
		}
	case "enter":
		if m.historyIdx < len(items) {
			m.session.SelectHistoryItem(items[m.historyIdx])
			m.pending = session.Ticket{}
			m.trPending = session.TranslationTicket{}
			m.showResult()
		}
	}
	return m, nil
}

func (m Model) handleResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.session.Snapshot()
	switch msg.String() {
	case "c":
		return m.copy("transcription", snap.Transcription.Text)
	case "y":
		if snap.Translation.Text != "" {
			return m.copy("translation", snap.Translation.Text)
		}
	case "e":
		return m.translate(speech.LanguageEnglish)
	case "h":
		return m.translate(speech.LanguageHinglish)
	case "n":
		return m.startOver()
	case "D":
		m.clearHistory()
	case "up", "down", "k", "j", "enter":
		return m.handleHistoryKey(msg)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.ticking = false
	var cmds []tea.Cmd
	active := false

	if m.session.View() == session.ViewLoading {
		cmds = append(cmds, m.progress.SetPercent(m.session.Progress().Percent/100))
		active = true
	}
	if m.recorder != nil && m.recorder.State() == capture.StateRecording {
		m.elapsed = m.recorder.Elapsed()
		active = true
	}
	if active {
		cmds = append(cmds, m.startTicking())
	}
	return m, tea.Batch(cmds...)
}

// submit hands a payload to the session and starts the backend call
func (m Model) submit(p capture.AudioPayload) (tea.Model, tea.Cmd) {
	ticket, err := m.session.Submit(p)
	if err != nil {
		m.log.Debug().Err(err).Str("audio", p.Name).Msg("submit ignored")
		return m, nil
	}
	m.pending = ticket
	m.inputErr = ""
	m.copyLabel = ""
	return m, tea.Batch(
		m.progress.SetPercent(0),
		m.runTranscription(ticket),
		m.startTicking(),
	)
}

func (m Model) translate(lang speech.Language) (tea.Model, tea.Cmd) {
	t, err := m.session.BeginTranslation(lang)
	if err != nil {
		// Pending or nothing displayed.
		return m, nil
	}
	m.trPending = t
	return m, m.runTranslation(t)
}

func (m Model) copy(target, text string) (tea.Model, tea.Cmd) {
	m.copyGen++
	gen := m.copyGen
	m.copyTarget = target
	if err := m.copyFn(text); err != nil {
		m.log.Warn().Err(err).Str("target", target).Msg("clipboard write failed")
		m.copyLabel = labelCopyFailed
	} else {
		m.copyLabel = labelCopied
	}
	return m, tea.Tick(copyFeedback, func(time.Time) tea.Msg {
		return copyResetMsg{gen: gen}
	})
}

func (m Model) startOver() (tea.Model, tea.Cmd) {
	m.session.Reset()
	m.pending = session.Ticket{}
	m.trPending = session.TranslationTicket{}
	m.inputErr = ""
	m.copyLabel = ""
	m.copyTarget = ""
	return m, nil
}

func (m *Model) clearHistory() {
	m.session.ClearHistory()
	m.historyIdx = 0
}

func (m *Model) toggleTheme() {
	if m.themes == nil {
		return
	}
	prefs.Apply(m.themes.Toggle())
}

func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.progress.Width = max(20, width-20)
	m.viewport.Width = max(20, width-8)
	m.viewport.Height = max(5, height-24)
	m.filepicker.Height = max(5, height-22)
	if m.session.View() == session.ViewResult {
		m.refreshResult()
	}
}

// showResult loads the displayed transcription into the viewport
func (m *Model) showResult() {
	m.copyLabel = ""
	m.copyTarget = ""
	m.refreshResult()
	m.viewport.GotoTop()
}

func (m *Model) refreshResult() {
	m.viewport.SetContent(resultContent(m.session.Snapshot(), m.viewport.Width))
}

func (m Model) recordingBusy() bool {
	if m.starting || m.stopping {
		return true
	}
	return m.recorder != nil && m.recorder.State() != capture.StateIdle
}

// loadFile reads and validates path
func loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		p, err := capture.FromFile(path)
		return fileLoadedMsg{path: path, payload: p, err: err}
	}
}

func (m Model) runTranscription(t session.Ticket) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		item, err := s.Run(ctx, t)
		return transcribedMsg{ticket: t, item: item, err: err}
	}
}

func (m Model) runTranslation(t session.TranslationTicket) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		text, err := s.RunTranslation(ctx, t)
		return translatedMsg{ticket: t, text: text, err: err}
	}
}

func (m Model) startRecording() tea.Cmd {
	rec, ctx, gen := m.recorder, m.ctx, m.recordGen
	return func() tea.Msg {
		return recordStartedMsg{gen: gen, err: rec.Start(ctx)}
	}
}

func (m Model) stopRecording() tea.Cmd {
	rec, gen := m.recorder, m.recordGen
	return func() tea.Msg {
		p, err := rec.Stop()
		return recordedMsg{gen: gen, payload: p, err: err}
	}
}

// Getter methods for external access
func (m Model) IsQuitting() bool { return m.quitting }
func (m Model) Mode() Mode       { return m.mode }

// Run runs the app until the user quits.
func Run(s *session.Session, opts ...Option) error {
	model := NewModel(s, opts...)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if m, ok := finalModel.(Model); ok {
		m.cancel()
	}
	return nil
}

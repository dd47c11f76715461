// Package session drives one transcription at a time through the
// input → loading → result | error cycle and records successes in history.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"audioscribe/capture"
	"audioscribe/history"
	"audioscribe/speech"
)

// ViewState is the top-level state of a session.
type ViewState int

const (
	ViewInput ViewState = iota
	ViewLoading
	ViewResult
	ViewError
)

func (v ViewState) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewResult:
		return "result"
	case ViewError:
		return "error"
	default:
		return "input"
	}
}

var (
	// ErrBusy is returned by Submit while a request is loading.
	ErrBusy = errors.New("a transcription is already in progress")
	// ErrStale is returned when a completion no longer matches the session.
	ErrStale = errors.New("request superseded")
)

// Ticket identifies one submitted request. Completions carrying an old
// ticket are dropped.
type Ticket struct {
	Generation uint64
	Payload    capture.AudioPayload
}

// Snapshot is a consistent read of the session for rendering.
type Snapshot struct {
	View          ViewState
	Transcription history.Transcription
	HasResult     bool
	ErrorMessage  string
	Progress      Progress
	Translation   TranslationState
}

// Session is the transcription state machine. It is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	speech *speech.Client
	store  *history.Store

	view       ViewState
	current    history.Transcription
	hasCurrent bool
	errMsg     string
	gen        uint64

	progress         Progress
	tickGen          uint64
	stopTick         chan struct{}
	progressInterval time.Duration
	statusInterval   time.Duration

	translation TranslationState
	trGen       uint64

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now for transcription dates.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithIDGenerator overrides uuid.NewString for transcription IDs.
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) {
		s.newID = newID
	}
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithProgressInterval sets how often simulated progress advances.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.progressInterval = d
		}
	}
}

// WithStatusInterval sets how often the loading status message rotates.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.statusInterval = d
		}
	}
}

// New creates a session in the input state.
func New(client *speech.Client, store *history.Store, opts ...Option) *Session {
	s := &Session{
		speech:           client,
		store:            store,
		view:             ViewInput,
		progressInterval: DefaultProgressInterval,
		statusInterval:   DefaultStatusInterval,
		now:              time.Now,
		newID:            uuid.NewString,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View returns the current view state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		View:          s.view,
		Transcription: s.current,
		HasResult:     s.hasCurrent,
		ErrorMessage:  s.errMsg,
		Progress:      s.progress,
		Translation:   s.translation,
	}
}

// History returns the stored transcriptions, newest first.
func (s *Session) History() []history.Transcription {
	return s.store.Items()
}

// Submit moves to loading and returns the ticket for the new request.
func (s *Session) Submit(payload capture.AudioPayload) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view == ViewLoading {
		return Ticket{}, ErrBusy
	}

	s.gen++
	s.view = ViewLoading
	s.errMsg = ""
	s.current = history.Transcription{}
	s.hasCurrent = false
	s.resetTranslationLocked()
	s.startTickerLocked()

	s.log.Debug().
		Uint64("generation", s.gen).
		Str("audio", payload.Name).
		Str("mime_type", payload.MIMEType).
		Msg("transcription submitted")

	return Ticket{Generation: s.gen, Payload: payload}, nil
}

// Run performs the backend call for t and applies the outcome.
func (s *Session) Run(ctx context.Context, t Ticket) (history.Transcription, error) {
	text, err := s.speech.TranscribeAudio(ctx, t.Payload.Data, t.Payload.MIMEType)
	item, applied := s.Complete(t, text, err)
	if !applied {
		return history.Transcription{}, ErrStale
	}
	if err != nil {
		return history.Transcription{}, err
	}
	return item, nil
}

// Transcribe submits payload and waits for the result.
func (s *Session) Transcribe(ctx context.Context, payload capture.AudioPayload) (history.Transcription, error) {
	t, err := s.Submit(payload)
	if err != nil {
		return history.Transcription{}, err
	}
	return s.Run(ctx, t)
}

// Complete applies the outcome of the request identified by t. It reports
// false, and changes nothing, when t is no longer the current request.
func (s *Session) Complete(t Ticket, text string, err error) (history.Transcription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.gen || s.view != ViewLoading {
		s.log.Debug().
			Uint64("generation", t.Generation).
			Uint64("current", s.gen).
			Str("view", s.view.String()).
			Msg("dropping stale transcription result")
		return history.Transcription{}, false
	}

	s.stopTickerLocked()

	if err != nil {
		s.view = ViewError
		s.errMsg = "Transcription failed. " + err.Error()
		s.log.Error().Err(err).Str("audio", t.Payload.Name).Msg("transcription failed")
		return history.Transcription{}, true
	}

	item := history.Transcription{
		ID:        s.newID(),
		Text:      text,
		AudioName: t.Payload.Name,
		Date:      s.now(),
	}
	s.current = item
	s.hasCurrent = true
	s.view = ViewResult
	s.resetTranslationLocked()
	s.store.Add(item)

	s.log.Info().Str("id", item.ID).Str("audio", item.AudioName).Int("chars", len(item.Text)).Msg("transcription complete")
	return item, true
}

// SelectHistoryItem displays item. History is not changed. A loading request
// is abandoned.
func (s *Session) SelectHistoryItem(item history.Transcription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view == ViewLoading {
		s.abandonLocked()
	}
	if !s.hasCurrent || s.current.ID != item.ID {
		s.resetTranslationLocked()
	}
	s.current = item
	s.hasCurrent = true
	s.errMsg = ""
	s.view = ViewResult
}

// Reset returns to input. From loading the request is abandoned; its late
// completion is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view == ViewInput {
		return
	}
	if s.view == ViewLoading {
		s.abandonLocked()
	}
	s.view = ViewInput
	s.current = history.Transcription{}
	s.hasCurrent = false
	s.errMsg = ""
	s.resetTranslationLocked()
}

// ClearHistory empties the history store.
func (s *Session) ClearHistory() {
	s.store.Clear()
}

// Close stops background work.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickerLocked()
}

func (s *Session) abandonLocked() {
	s.gen++
	s.stopTickerLocked()
	s.log.Debug().Uint64("generation", s.gen).Msg("abandoned in-flight transcription")
}

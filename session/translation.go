package session

import (
	"context"
	"errors"

	"audioscribe/speech"
)

var (
	// ErrTranslationPending is returned while a translation is in flight.
	ErrTranslationPending = errors.New("a translation is already in progress")
	// ErrNothingToTranslate is returned when no transcription is displayed.
	ErrNothingToTranslate = errors.New("no transcription to translate")
)

// TranslationState belongs to the displayed transcription and resets when
// it changes.
type TranslationState struct {
	Text     string
	Source   speech.Language // set while in flight
	InFlight bool
	Err      string
}

// TranslationTicket identifies one translation request.
type TranslationTicket struct {
	Generation      uint64
	TranscriptionID string
	Text            string
	Language        speech.Language
}

// Translation returns the translation state of the displayed transcription.
func (s *Session) Translation() TranslationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translation
}

// BeginTranslation marks a translation in flight. Only one may be pending.
func (s *Session) BeginTranslation(lang speech.Language) (TranslationTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent || s.view != ViewResult || s.current.Text == "" {
		return TranslationTicket{}, ErrNothingToTranslate
	}
	if s.translation.InFlight {
		return TranslationTicket{}, ErrTranslationPending
	}

	s.trGen++
	s.translation = TranslationState{Source: lang, InFlight: true}
	return TranslationTicket{
		Generation:      s.trGen,
		TranscriptionID: s.current.ID,
		Text:            s.current.Text,
		Language:        lang,
	}, nil
}

// FinishTranslation records the outcome. Results for a transcription that is
// no longer displayed are dropped.
func (s *Session) FinishTranslation(t TranslationTicket, text string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.trGen || !s.hasCurrent || s.current.ID != t.TranscriptionID {
		s.log.Debug().Str("id", t.TranscriptionID).Msg("dropping stale translation result")
		return false
	}

	s.translation.InFlight = false
	s.translation.Source = ""
	if err != nil {
		s.translation.Err = "Translation failed: " + err.Error()
		s.log.Error().Err(err).Str("id", t.TranscriptionID).Msg("translation failed")
		return true
	}
	s.translation.Text = text
	return true
}

// Translate translates the displayed transcription.
func (s *Session) Translate(ctx context.Context, lang speech.Language) (string, error) {
	t, err := s.BeginTranslation(lang)
	if err != nil {
		return "", err
	}
	return s.RunTranslation(ctx, t)
}

// RunTranslation performs the backend call for t and records the outcome.
func (s *Session) RunTranslation(ctx context.Context, t TranslationTicket) (string, error) {
	text, err := s.speech.TranslateText(ctx, t.Text, t.Language)
	if !s.FinishTranslation(t, text, err) {
		return "", ErrStale
	}
	return text, err
}

func (s *Session) resetTranslationLocked() {
	s.trGen++
	s.translation = TranslationState{}
}

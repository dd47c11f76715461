// Package history keeps the most recent transcriptions, newest first, and
// persists the list after every change.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxItems is the number of transcriptions kept.
	MaxItems = 5

	// Key is the persisted-state key holding the list.
	Key = "transcriptionHistory"

	// PreviewLength is the default preview length in list views.
	PreviewLength = 100
)

// Transcription is one successful speech-to-text result.
type Transcription struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AudioName string    `json:"audioName"`
	Date      time.Time `json:"date"`
}

// Persister reads and writes raw JSON values by key.
type Persister interface {
	Load(key string) ([]byte, bool, error)
	Save(key string, raw []byte) error
}

// Store is an ordered, bounded transcription list.
type Store struct {
	mu       sync.RWMutex
	items    []Transcription
	capacity int
	persist  Persister
	log      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides MaxItems.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates an empty store. p may be nil for an in-memory store.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		capacity: MaxItems,
		persist:  p,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. Unreadable or
// malformed data is logged and leaves the store empty.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if s.persist == nil {
		return
	}

	raw, ok, err := s.persist.Load(Key)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load history")
		return
	}
	if !ok {
		return
	}

	var items []Transcription
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Error().Err(err).Msg("failed to parse persisted history")
		return
	}
	if len(items) > s.capacity {
		items = items[:s.capacity]
	}
	s.items = items
}

// Add inserts t at the front, drops overflow from the tail and persists.
func (s *Store) Add(t Transcription) {
	s.mu.Lock()
	items := make([]Transcription, 0, s.capacity)
	items = append(items, t)
	items = append(items, s.items...)
	if len(items) > s.capacity {
		items = items[:s.capacity]
	}
	s.items = items
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// Clear empties the list and persists.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.save([]Transcription{})
}

// Items returns a copy of the list, newest first.
func (s *Store) Items() []Transcription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Len returns the number of stored transcriptions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get looks up a transcription by ID.
func (s *Store) Get(id string) (Transcription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return Transcription{}, false
}

func (s *Store) copyLocked() []Transcription {
	out := make([]Transcription, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) save(items []Transcription) {
	if s.persist == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode history")
		return
	}
	if err := s.persist.Save(Key, raw); err != nil {
		s.log.Error().Err(err).Msg("failed to save history")
	}
}

// Truncate shortens text to n characters, appending "..." when cut.
func Truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

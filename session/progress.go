package session

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultProgressInterval = 150 * time.Millisecond
	DefaultStatusInterval   = 2 * time.Second

	// MaxSimulatedProgress is where the bar stalls until the response arrives.
	MaxSimulatedProgress = 95.0

	// InitialStatus is shown when loading starts.
	InitialStatus = "Initializing..."
)

// StatusMessages rotate while loading.
var StatusMessages = []string{
	"Preparing your audio file...",
	"Connecting to Gemini API...",
	"Analyzing audio patterns...",
	"Generating transcription text...",
	"Finalizing the results...",
	"Almost there...",
}

// Progress is the simulated loading indicator. It is cosmetic only.
type Progress struct {
	Percent float64
	Status  string
}

// Progress returns the current loading indicator.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()

	s.progress = Progress{Percent: 0, Status: InitialStatus}
	s.tickGen++
	stop := make(chan struct{})
	s.stopTick = stop
	go s.tick(stop, s.tickGen)
}

func (s *Session) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Session) tick(stop <-chan struct{}, gen uint64) {
	progress := time.NewTicker(s.progressInterval)
	defer progress.Stop()
	status := time.NewTicker(s.statusInterval)
	defer status.Stop()

	idx := 0
	for {
		select {
		case <-stop:
			return
		case <-progress.C:
			s.mu.Lock()
			if s.tickGen == gen && s.stopTick != nil {
				s.progress.Percent = advance(s.progress.Percent, rand.Float64()*2)
			}
			s.mu.Unlock()
		case <-status.C:
			idx = (idx + 1) % len(StatusMessages)
			s.mu.Lock()
			if s.tickGen == gen && s.stopTick != nil {
				s.progress.Status = StatusMessages[idx]
			}
			s.mu.Unlock()
		}
	}
}

func advance(p, inc float64) float64 {
	if p >= MaxSimulatedProgress {
		return p
	}
	return min(p+inc, MaxSimulatedProgress)
}

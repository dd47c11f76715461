package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RecordingMIMEType is the container produced by recording devices.
const RecordingMIMEType = "audio/webm"

// stopTimeout bounds how long Stop waits for the encoder to flush.
const stopTimeout = 5 * time.Second

var (
	ErrPermissionDenied = errors.New("Could not access microphone. Please check permissions.")
	ErrNotRecording     = errors.New("not recording")
	ErrEmptyRecording   = errors.New("recording produced no audio")
)

// PermissionError reports that the microphone could not be opened.
type PermissionError struct {
	Cause error
}

func (e *PermissionError) Error() string { return ErrPermissionDenied.Error() }

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// RecordingState is the recorder lifecycle.
type RecordingState int

const (
	StateIdle RecordingState = iota
	StateRecording
	StateStopped // finalizing
)

func (s RecordingState) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Stream is an open microphone session yielding encoded chunks.
type Stream interface {
	io.ReadCloser
	// Stop asks the encoder to flush and end the stream.
	Stop() error
}

// Device opens microphone streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// take is one recording session.
type take struct {
	stream  Stream
	buf     bytes.Buffer
	done    chan struct{}
	readErr error
	started time.Time
	once    sync.Once
}

func (t *take) pump() {
	defer close(t.done)
	_, t.readErr = io.Copy(&t.buf, t.stream)
}

func (t *take) release() error {
	var err error
	t.once.Do(func() {
		err = t.stream.Close()
	})
	return err
}

// Recorder turns a Device into single-shot recordings.
type Recorder struct {
	mu      sync.Mutex
	device  Device
	state   RecordingState
	cur     *take
	err     error
	opening bool
	gen     uint64 // bumped by Cancel
	now     func() time.Time
	log     zerolog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLogger sets the recorder logger.
func WithLogger(l zerolog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.log = l
	}
}

// NewRecorder creates an idle recorder on device.
func NewRecorder(device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device: device,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the last start error, cleared by the next Start or Cancel.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Elapsed returns how long the current recording has been running.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.state != StateRecording {
		return 0
	}
	return r.now().Sub(r.cur.started)
}

// Start opens the device and begins buffering. It is a no-op while a
// recording is in progress or being opened.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle || r.opening {
		r.mu.Unlock()
		return nil
	}
	r.err = nil
	r.opening = true
	gen := r.gen
	r.mu.Unlock()

	stream, err := r.device.Open(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opening = false

	if err != nil {
		r.log.Error().Err(err).Msg("failed to open microphone")
		r.state = StateIdle
		r.err = &PermissionError{Cause: err}
		return r.err
	}
	if gen != r.gen {
		// Cancelled while opening.
		stream.Close()
		return nil
	}

	t := &take{
		stream:  stream,
		done:    make(chan struct{}),
		started: r.now(),
	}
	go t.pump()

	r.cur = t
	r.state = StateRecording
	r.log.Debug().Msg("recording started")
	return nil
}

// Stop finalizes the recording into a payload and releases the device.
func (r *Recorder) Stop() (AudioPayload, error) {
	r.mu.Lock()
	if r.state != StateRecording || r.cur == nil {
		r.mu.Unlock()
		return AudioPayload{}, ErrNotRecording
	}
	t := r.cur
	r.state = StateStopped
	r.mu.Unlock()

	if err := t.stream.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("encoder did not accept stop request")
	}

	select {
	case <-t.done:
	case <-time.After(stopTimeout):
		r.log.Warn().Dur("timeout", stopTimeout).Msg("encoder did not finish, forcing close")
	}
	if err := t.release(); err != nil {
		r.log.Debug().Err(err).Msg("device close")
	}
	<-t.done

	r.mu.Lock()
	defer r.mu.Unlock()

	// Cancel may have run while we were flushing.
	if r.cur != t {
		return AudioPayload{}, ErrNotRecording
	}
	r.cur = nil
	r.state = StateIdle

	if t.buf.Len() == 0 {
		if t.readErr != nil {
			return AudioPayload{}, t.readErr
		}
		return AudioPayload{}, ErrEmptyRecording
	}

	stamp := r.now().UTC().Format(time.RFC3339)
	r.log.Debug().Int("bytes", t.buf.Len()).Msg("recording finished")
	return AudioPayload{
		Data:     base64.StdEncoding.EncodeToString(t.buf.Bytes()),
		MIMEType: RecordingMIMEType,
		Name:     "recording-" + stamp + ".webm",
	}, nil
}

// Cancel discards the recording, if any, and returns to idle.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	t := r.cur
	r.cur = nil
	r.state = StateIdle
	r.err = nil
	r.gen++
	r.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.release(); err != nil {
		r.log.Debug().Err(err).Msg("device close")
	}
	<-t.done
	r.log.Debug().Msg("recording cancelled")
}

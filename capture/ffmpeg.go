package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// FFmpegDevice records from the system microphone through ffmpeg and emits
// Opus in a WebM container.
type FFmpegDevice struct {
	Binary      string // defaults to "ffmpeg"
	InputFormat string // pulse, avfoundation, dshow; defaults by OS
	InputDevice string // defaults by OS
	SampleRate  int
	Bitrate     string
}

func (d *FFmpegDevice) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "ffmpeg"
}

// DefaultInput returns the input format and device for goos.
func DefaultInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", ""
	default:
		return "pulse", "default"
	}
}

// Args builds the ffmpeg command line.
func (d *FFmpegDevice) Args() ([]string, error) {
	format, device := DefaultInput(runtime.GOOS)
	if d.InputFormat != "" {
		format = d.InputFormat
	}
	if d.InputDevice != "" {
		device = d.InputDevice
	}
	if device == "" {
		return nil, fmt.Errorf("no input device configured for %s (set recorder.input_device)", format)
	}
	if format == "dshow" && !strings.HasPrefix(device, "audio=") {
		device = "audio=" + device
	}

	rate := d.SampleRate
	if rate == 0 {
		rate = 48000
	}
	bitrate := d.Bitrate
	if bitrate == "" {
		bitrate = "64k"
	}

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", fmt.Sprint(rate),
		"-c:a", "libopus",
		"-b:a", bitrate,
		"-f", "webm",
		"pipe:1",
	}, nil
}

// Open starts ffmpeg and waits until it produces output, so a device that
// cannot be opened fails here rather than on the first read.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	args, err := d.Args()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.binary(), args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout), stderr: stderr}
	if _, err := s.out.Peek(1); err != nil {
		waitErr := s.Close()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && waitErr != nil {
			msg = waitErr.Error()
		}
		return nil, fmt.Errorf("ffmpeg produced no audio: %s", msg)
	}
	return s, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Reader
	stderr *tailBuffer

	stopOnce  sync.Once
	closeOnce sync.Once
	waitErr   error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

// Stop sends ffmpeg's interactive quit command so it writes the container
// trailer before exiting.
func (s *ffmpegStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if _, werr := io.WriteString(s.stdin, "q"); werr != nil {
			err = werr
		}
		s.stdin.Close()
	})
	return err
}

// Close kills ffmpeg if it is still running and reaps it.
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.waitErr = err
		}
	})
	return s.waitErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// CheckFFmpeg checks if ffmpeg is installed and returns its version line.
func CheckFFmpeg(binary string) (string, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.Command(binary, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w\n\n%s", err, FFmpegInstallHelp())
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}
	return "ffmpeg installed", nil
}

// FFmpegInstallHelp returns platform-specific installation instructions.
func FFmpegInstallHelp() string {
	switch runtime.GOOS {
	case "darwin":
		return `Recording needs FFmpeg. Install it on macOS:
  brew install ffmpeg`
	case "linux":
		return `Recording needs FFmpeg with PulseAudio support. Install it on Linux:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg`
	case "windows":
		return `Recording needs FFmpeg. Install it on Windows:
  winget install ffmpeg

List capture devices with:
  ffmpeg -list_devices true -f dshow -i dummy
then set recorder.input_device.`
	default:
		return `Please install FFmpeg from: https://ffmpeg.org/download.html`
	}
}

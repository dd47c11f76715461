// Package capture produces base64 audio payloads from files on disk or from
// a live microphone recording.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the largest accepted audio file, in bytes.
const MaxFileSize = 10 * 1024 * 1024

// AllowedMIMETypes is the set of accepted file types.
var AllowedMIMETypes = []string{
	"audio/mpeg",
	"audio/wav",
	"audio/ogg",
	"video/mp4",
}

// AllowedExtensions are the file extensions offered by pickers.
var AllowedExtensions = []string{".mp3", ".wav", ".ogg", ".mp4"}

var (
	ErrInvalidType  = errors.New("Invalid file type. Please upload an MP3, WAV, OGG, or MP4 file.")
	ErrFileTooLarge = errors.New("File is too large. Maximum size is 10MB.")
	ErrReadFailed   = errors.New("Error reading file.")
)

// ValidationError reports a file that was rejected before any request was made.
type ValidationError struct {
	Name  string
	Err   error // one of the sentinels above
	Cause error // underlying I/O error, if any
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// AudioPayload is an encoded audio clip ready to send to a backend.
type AudioPayload struct {
	Data     string // base64, no data-URL prefix
	MIMEType string
	Name     string
}

// Bytes decodes the payload data.
func (p AudioPayload) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// Size returns the decoded length in bytes.
func (p AudioPayload) Size() int {
	return base64.StdEncoding.DecodedLen(len(p.Data)) - strings.Count(p.Data[max(0, len(p.Data)-2):], "=")
}

// IsAllowed reports whether mimeType is on the allow-list.
func IsAllowed(mimeType string) bool {
	for _, m := range AllowedMIMETypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Validate checks the type first, then the size.
func Validate(mimeType string, size int64) error {
	if !IsAllowed(mimeType) {
		return ErrInvalidType
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// FromUpload validates and encodes an upload whose type the caller already
// knows.
func FromUpload(name, mimeType string, r io.Reader, size int64) (AudioPayload, error) {
	if err := Validate(mimeType, size); err != nil {
		return AudioPayload{}, &ValidationError{Name: name, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrReadFailed, Cause: err}
	}
	if int64(len(data)) > MaxFileSize {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrFileTooLarge}
	}

	return AudioPayload{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
		Name:     name,
	}, nil
}

// FromFile reads an audio file from disk. The type is sniffed from the
// content, with the extension as a fallback.
func FromFile(path string) (AudioPayload, error) {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrReadFailed, Cause: err}
	}
	if info.IsDir() {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrInvalidType}
	}

	f, err := os.Open(path)
	if err != nil {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrReadFailed, Cause: err}
	}
	defer f.Close()

	head := make([]byte, 3072)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return AudioPayload{}, &ValidationError{Name: name, Err: ErrReadFailed, Cause: err}
	}
	head = head[:n]

	mimeType := DetectMIMEType(head, path)
	return FromUpload(name, mimeType, io.MultiReader(bytes.NewReader(head), f), info.Size())
}

// DetectMIMEType sniffs the content and normalizes aliases to the names on
// the allow-list.
func DetectMIMEType(head []byte, path string) string {
	if len(head) > 0 {
		m := mimetype.Detect(head)
		for ; m != nil; m = m.Parent() {
			if n := NormalizeMIMEType(m.String()); IsAllowed(n) {
				return n
			}
		}
	}
	return mimeFromExtension(path)
}

// NormalizeMIMEType strips parameters and maps common aliases.
func NormalizeMIMEType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "audio/wav"
	case "audio/mp3", "audio/x-mpeg":
		return "audio/mpeg"
	case "application/ogg", "audio/vorbis", "audio/opus":
		return "audio/ogg"
	}
	return mimeType
}

func mimeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "audio/webm"
	}
	return "application/octet-stream"
}

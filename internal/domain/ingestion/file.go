// Package ingestion turns user-supplied files into previewable, uploadable
// artifacts. Click-selected and dropped files go through the same Acquire
// function; the trigger only matters for logging.
package ingestion

import (
	"bytes"
	"io"
	"mime/multipart"
	"time"
)

type Trigger string

const (
	TriggerClick Trigger = "click"
	TriggerDrop  Trigger = "drop"
)

func (t Trigger) IsValid() bool {
	return t == TriggerClick || t == TriggerDrop
}

// ParseTrigger defaults to click; browsers that cannot tell us are treated
// as a plain file picker.
func ParseTrigger(raw string) Trigger {
	if t := Trigger(raw); t.IsValid() {
		return t
	}
	return TriggerClick
}

// File is an ingested artifact. It is immutable once returned by Acquire.
type File struct {
	Filename   string    `json:"filename"`
	MIMEType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Preview    string    `json:"preview"`
	AcquiredAt time.Time `json:"acquiredAt"`

	Data []byte `json:"-"`
}

// Source is a named byte stream supplied by a file picker or a drop event.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type bytesSource struct {
	name string
	data []byte
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

type failedSource struct {
	name string
	err  error
}

func (s failedSource) Name() string { return s.name }

func (s failedSource) Open() (io.ReadCloser, error) { return nil, s.err }

// FromBytes wraps an in-memory file.
func FromBytes(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

// FromFileHeader copies a multipart part into memory so it outlives the
// request that carried it. A part that cannot be read yields a Source whose
// Open reports the failure, so the error surfaces through the normal
// ingestion path.
func FromFileHeader(h *multipart.FileHeader) Source {
	f, err := h.Open()
	if err != nil {
		return failedSource{name: h.Filename, err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return failedSource{name: h.Filename, err: err}
	}
	return bytesSource{name: h.Filename, data: data}
}

// FromFileHeaders keeps the order of the parts.
func FromFileHeaders(hs []*multipart.FileHeader) []Source {
	out := make([]Source, 0, len(hs))
	for _, h := range hs {
		out = append(out, FromFileHeader(h))
	}
	return out
}

// Names returns the source names in order.
func Names(srcs []Source) []string {
	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, s.Name())
	}
	return out
}

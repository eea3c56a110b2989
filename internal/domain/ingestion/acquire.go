package ingestion

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Acquire reads a source and builds its preview. No size or type policy is
// applied here; callers that want one wrap Acquire.
func Acquire(ctx context.Context, src Source) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Filename: src.Name(), Err: err}
	}

	rc, err := src.Open()
	if err != nil {
		return nil, &Error{Filename: src.Name(), Err: fmt.Errorf("opening: %w", err)}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &Error{Filename: src.Name(), Err: fmt.Errorf("reading: %w", err)}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Filename: src.Name(), Err: err}
	}

	mt := mimetype.Detect(data).String()

	return &File{
		Filename:   src.Name(),
		MIMEType:   mt,
		Size:       int64(len(data)),
		Preview:    DataURI(mt, data),
		AcquiredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// AcquireAll stops at the first failure.
func AcquireAll(ctx context.Context, srcs []Source) ([]*File, error) {
	files := make([]*File, 0, len(srcs))
	for _, src := range srcs {
		f, err := Acquire(ctx, src)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// DataURI encodes data as an RFC 2397 base64 data URI.
func DataURI(mimeType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mimeType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(strings.ReplaceAll(mimeType, " ", ""))
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

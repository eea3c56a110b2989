package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

type brokenSource struct{}

func (brokenSource) Name() string { return "broken.png" }

func (brokenSource) Open() (io.ReadCloser, error) { return io.NopCloser(brokenReader{}), nil }

func TestAcquire_PNG(t *testing.T) {
	f, err := Acquire(context.Background(), FromBytes("rx.png", pngPixel))
	require.NoError(t, err)

	assert.Equal(t, "rx.png", f.Filename)
	assert.Equal(t, "image/png", f.MIMEType)
	assert.Equal(t, int64(len(pngPixel)), f.Size)
	assert.True(t, strings.HasPrefix(f.Preview, "data:image/png;base64,"))
	assert.Equal(t, pngPixel, f.Data)
	assert.False(t, f.AcquiredAt.IsZero())
}

func TestAcquire_PermissiveAboutType(t *testing.T) {
	f, err := Acquire(context.Background(), FromBytes("notes.txt", []byte("take twice daily")))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(f.MIMEType, "text/plain"))
	assert.True(t, strings.HasPrefix(f.Preview, "data:text/plain;charset=utf-8;base64,"))
}

func TestAcquire_ReadFailure(t *testing.T) {
	_, err := Acquire(context.Background(), brokenSource{})
	require.Error(t, err)

	var ingErr *Error
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "broken.png", ingErr.Filename)
}

func TestAcquire_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, FromBytes("rx.png", pngPixel))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireAll_StopsAtFirstFailure(t *testing.T) {
	srcs := []Source{FromBytes("a.png", pngPixel), brokenSource{}, FromBytes("c.png", pngPixel)}

	files, err := AcquireAll(context.Background(), srcs)
	assert.Nil(t, files)
	assert.Error(t, err)

	files, err = AcquireAll(context.Background(), srcs[:1])
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFromFileHeaders_ClickAndDropAreEquivalent(t *testing.T) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range []string{"first.png", "second.png"} {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(pngPixel)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	srcs := FromFileHeaders(req.MultipartForm.File["file"])
	require.NoError(t, req.MultipartForm.RemoveAll())

	assert.Equal(t, []string{"first.png", "second.png"}, Names(srcs))

	files, err := AcquireAll(context.Background(), srcs)
	require.NoError(t, err)
	assert.Equal(t, "image/png", files[1].MIMEType)

	assert.Equal(t, TriggerDrop, ParseTrigger("drop"))
	assert.Equal(t, TriggerClick, ParseTrigger(""))
	assert.Equal(t, TriggerClick, ParseTrigger("paste"))
}

func TestSlot_LatestTicketWins(t *testing.T) {
	var s Slot

	first, err := s.Begin()
	require.NoError(t, err)
	second, err := s.Begin()
	require.NoError(t, err)

	newer := &File{Filename: "newer.png", Preview: "data:image/png;base64,AA=="}
	older := &File{Filename: "older.png", Preview: "data:image/png;base64,AA=="}

	assert.True(t, s.Complete(second, newer))
	assert.False(t, s.Complete(first, older), "stale read must not overwrite")
	assert.Equal(t, newer, s.File())
}

func TestSlot_FailureKeepsPreviousFile(t *testing.T) {
	var s Slot

	t1, _ := s.Begin()
	kept := &File{Filename: "kept.png", Preview: "data:image/png;base64,AA=="}
	require.True(t, s.Complete(t1, kept))

	t2, _ := s.Begin()
	readErr := &Error{Filename: "bad.png", Err: errors.New("boom")}
	assert.True(t, s.Fail(t2, readErr))

	assert.Equal(t, kept, s.File())
	assert.Equal(t, readErr, s.Err())

	t3, _ := s.Begin()
	require.True(t, s.Complete(t3, kept))
	assert.NoError(t, s.Err())
}

func TestSlot_StaleFailureIgnored(t *testing.T) {
	var s Slot

	t1, _ := s.Begin()
	t2, _ := s.Begin()

	assert.False(t, s.Fail(t1, errors.New("late")))
	assert.NoError(t, s.Err())

	assert.True(t, s.Complete(t2, &File{Filename: "ok.png"}))
}

func TestSlot_ClearSupersedesInFlight(t *testing.T) {
	var s Slot

	t1, _ := s.Begin()
	require.NoError(t, s.Clear())

	assert.False(t, s.Complete(t1, &File{Filename: "late.png"}))
	assert.Nil(t, s.File())
}

func TestSlot_Closed(t *testing.T) {
	var s Slot

	t1, _ := s.Begin()
	s.Close()

	assert.False(t, s.Complete(t1, &File{Filename: "late.png"}))
	_, err := s.Begin()
	assert.ErrorIs(t, err, ErrSlotClosed)
	assert.ErrorIs(t, s.Clear(), ErrSlotClosed)
	assert.True(t, s.Closed())
}

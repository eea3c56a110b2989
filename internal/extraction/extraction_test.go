package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewCollectorWith("rxintake_test", reg, reg)
	return NewClient(config.ExtractionConfig{
		BaseURL:            baseURL,
		Timeout:            2 * time.Second,
		BreakerFailures:    2,
		BreakerOpenTimeout: time.Minute,
	}, m, zap.NewNop())
}

func textFile(name, body string) *ingestion.File {
	return &ingestion.File{Filename: name, MIMEType: "text/plain; charset=utf-8", Data: []byte(body)}
}

func TestClient_SendsEveryFileAsFilePart(t *testing.T) {
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, fh := range r.MultipartForm.File["file"] {
			names = append(names, fh.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"extracted_text":"Amoxicillin","structured_text":{"medicine":"Amoxicillin"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/")
	out, err := c.Extract(context.Background(), []*ingestion.File{
		textFile("a.png", "one"),
		textFile("b.png", "two"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png", "b.png"}, names)
	assert.Equal(t, "Amoxicillin", out.ExtractedText)
	assert.JSONEq(t, `{"medicine":"Amoxicillin"}`, string(out.StructuredText))
}

func TestClient_NoFiles(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestClient_NonSuccessIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"tesseract missing"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Extract(context.Background(), []*ingestion.File{textFile("a.png", "x")})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, te.Error(), "tesseract missing")
}

func TestClient_BadJSONIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Extract(context.Background(), []*ingestion.File{textFile("a.png", "x")})

	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Extract(context.Background(), []*ingestion.File{textFile("a.png", "x")})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.True(t, te.Temporary())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	files := []*ingestion.File{textFile("a.png", "x")}

	for i := 0; i < 2; i++ {
		_, err := c.Extract(context.Background(), files)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := c.Extract(context.Background(), files)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"File type not allowed"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Extract(context.Background(), []*ingestion.File{textFile("a.exe", "x")})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestClient_CancelledUploadsDoNotTripBreaker(t *testing.T) {
	release := make(chan struct{})
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"extracted_text":"ok","structured_text":"ok"}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL)
	files := []*ingestion.File{textFile("a.png", "x")}

	for i := 0; i < 3; i++ {
		// Session teardown cancels an upload that is still in flight.
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		_, err := c.Extract(ctx, files)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())

	healthy.Store(true)
	got, err := c.Extract(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.ExtractedText)
}

func TestClient_AgainstStub(t *testing.T) {
	srv := httptest.NewServer(NewStubHandler(zap.NewNop()))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL).Extract(context.Background(), []*ingestion.File{
		textFile("rx.png", "Amoxicillin 500mg three times daily"),
	})
	require.NoError(t, err)

	assert.Equal(t, "rx.png", out.Filename)
	assert.Equal(t, "Amoxicillin 500mg three times daily", out.ExtractedText)

	var structured string
	require.NoError(t, json.Unmarshal(out.StructuredText, &structured))
	assert.Contains(t, structured, "*Medications*")
}

func stubUpload(t *testing.T, h http.Handler, filename string, data []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "-" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestStubHandler(t *testing.T) {
	h := NewStubHandler(zap.NewNop())

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"Backend is running"}`, rec.Body.String())
	})

	t.Run("no file part", func(t *testing.T) {
		rec, out := stubUpload(t, h, "-", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file part", out["error"])
	})

	t.Run("disallowed extension", func(t *testing.T) {
		rec, out := stubUpload(t, h, "notes.txt", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "File type not allowed", out["error"])
	})

	t.Run("binary image has no text", func(t *testing.T) {
		rec, out := stubUpload(t, h, "scan.PNG", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "No text extracted", out["extracted_text"])
		assert.Equal(t, "Unable to process prescription text", out["structured_text"])
	})
}

func TestTransportError_Messages(t *testing.T) {
	assert.Equal(t, "extraction service returned 502", (&TransportError{StatusCode: 502}).Error())
	assert.Equal(t, "extraction request failed: boom", (&TransportError{Err: errors.New("boom")}).Error())
	assert.False(t, (&TransportError{StatusCode: 400}).Temporary())
	assert.False(t, (&TransportError{Err: fmt.Errorf("post: %w", context.Canceled)}).Temporary())
	assert.True(t, (&TransportError{Err: context.DeadlineExceeded}).Temporary())
}

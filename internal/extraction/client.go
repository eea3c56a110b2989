// Package extraction talks to the service that turns prescription images into
// text and structured data.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

const (
	uploadPath      = "/upload"
	fileField       = "file"
	maxResponse     = 4 << 20
	maxErrorSnippet = 512
)

var bufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// Extractor is what the dashboard needs from the extraction service.
type Extractor interface {
	Extract(ctx context.Context, files []*ingestion.File) (dashboard.ProcessedPrescription, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[dashboard.ProcessedPrescription]
	metrics *metrics.Collector
	tracer  trace.Tracer
	log     *zap.Logger
}

func NewClient(cfg config.ExtractionConfig, m *metrics.Collector, log *zap.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		tracer:  otel.Tracer("rxintake/extraction"),
		log:     log.Named("extraction"),
	}

	failures := uint32(cfg.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker[dashboard.ProcessedPrescription](gobreaker.Settings{
		Name:        "extraction",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A caller that went away says nothing about the service.
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var te *TransportError
			if errors.As(err, &te) {
				return !te.Temporary()
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.recordBreaker(to)
		},
	})
	c.recordBreaker(gobreaker.StateClosed)

	return c
}

// Extract sends every file in one multipart request as "file" parts.
func (c *Client) Extract(ctx context.Context, files []*ingestion.File) (dashboard.ProcessedPrescription, error) {
	if len(files) == 0 {
		return dashboard.ProcessedPrescription{}, ErrNoFiles
	}

	ctx, span := c.tracer.Start(ctx, "extraction.Extract",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("extraction.files", len(files))),
	)
	defer span.End()

	start := time.Now()
	result, err := c.breaker.Execute(func() (dashboard.ProcessedPrescription, error) {
		return c.do(ctx, files)
	})
	if c.metrics != nil {
		c.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &TransportError{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dashboard.ProcessedPrescription{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, files []*ingestion.File) (dashboard.ProcessedPrescription, error) {
	body, contentType, err := encodeFiles(files)
	if err != nil {
		return dashboard.ProcessedPrescription{}, &TransportError{Err: fmt.Errorf("encoding multipart body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return dashboard.ProcessedPrescription{}, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return dashboard.ProcessedPrescription{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxResponse)); err != nil {
		return dashboard.ProcessedPrescription{}, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return dashboard.ProcessedPrescription{}, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       snippet(buf.Bytes()),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var out dashboard.ProcessedPrescription
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return dashboard.ProcessedPrescription{}, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return out, nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) recordBreaker(current gobreaker.State) {
	if c.metrics == nil {
		return
	}
	for _, s := range []gobreaker.State{gobreaker.StateClosed, gobreaker.StateHalfOpen, gobreaker.StateOpen} {
		v := 0.0
		if s == current {
			v = 1
		}
		c.metrics.ExtractionBreaker.WithLabelValues(s.String()).Set(v)
	}
}

func encodeFiles(files []*ingestion.File) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, quoteEscaper.Replace(f.Filename)))
		ct := f.MIMEType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet]
	}
	return s
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

// Delivery is one completed registration on its way to the sinks.
type Delivery struct {
	SessionID string               `json:"sessionId"`
	Handoff   registration.Handoff `json:"handoff"`
	At        time.Time            `json:"at"`
}

type HandoffSink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// HandoffDispatcher is the navigation collaborator. Navigate never blocks:
// deliveries are queued for a single worker and dropped with a warning when
// the buffer is full.
type HandoffDispatcher struct {
	sinks      []HandoffSink
	log        *zap.Logger
	metrics    *metrics.Collector
	deliveries chan Delivery
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

const defaultHandoffBuffer = 1_000

func NewHandoffDispatcher(bufferSize int, m *metrics.Collector, log *zap.Logger, sinks ...HandoffSink) *HandoffDispatcher {
	if bufferSize <= 0 {
		bufferSize = defaultHandoffBuffer
	}
	d := &HandoffDispatcher{
		sinks:      sinks,
		log:        log.Named("handoff"),
		metrics:    m,
		deliveries: make(chan Delivery, bufferSize),
		done:       make(chan struct{}),
	}
	go d.worker()
	return d
}

func (d *HandoffDispatcher) Navigate(ctx context.Context, sessionID string, h registration.Handoff) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("handoff after shutdown, dropping", zap.String("session_id", sessionID))
		return
	}

	select {
	case d.deliveries <- Delivery{SessionID: sessionID, Handoff: h, At: time.Now().UTC()}:
	default:
		d.log.Warn("handoff buffer full, dropping delivery",
			zap.String("session_id", sessionID),
			zap.String("target", h.Target),
		)
		if d.metrics != nil {
			d.metrics.HandoffBufferDropped.Inc()
		}
	}
}

// Shutdown drains queued deliveries or gives up when ctx ends.
func (d *HandoffDispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.deliveries)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		d.log.Warn("handoff dispatcher shutdown timed out; some deliveries may be lost")
	}
}

func (d *HandoffDispatcher) worker() {
	defer close(d.done)
	for delivery := range d.deliveries {
		for _, sink := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := sink.Deliver(ctx, delivery)
			cancel()

			outcome := "ok"
			if err != nil {
				outcome = "error"
				d.log.Error("failed to deliver handoff",
					zap.String("sink", sink.Name()),
					zap.String("session_id", delivery.SessionID),
					zap.Error(err),
				)
			}
			if d.metrics != nil {
				d.metrics.HandoffsTotal.WithLabelValues(sink.Name(), outcome).Inc()
			}
		}
	}
}

// LogSink writes every handoff to the log.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, d Delivery) error {
	s.log.Info("registration handed off",
		zap.String("session_id", d.SessionID),
		zap.String("target", d.Handoff.Target),
		zap.Bool("registration_successful", d.Handoff.RegistrationSuccessful),
		zap.String("language", d.Handoff.FormData.LanguagePreference),
		zap.Int("notification_channels", len(d.Handoff.FormData.NotificationPreferences)),
		zap.Bool("has_prescription_image", d.Handoff.FormData.PrescriptionImage != nil),
	)
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes handoffs as JSON keyed by session id.
type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

// imageRef stands in for the prescription image on the wire. The preview is
// the whole file as a data URI and does not fit in a Kafka message.
type imageRef struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type handoffProfile struct {
	registration.Profile
	PrescriptionImage *imageRef `json:"prescriptionImage"`
}

type handoffMessage struct {
	SessionID string `json:"sessionId"`
	Handoff   struct {
		Target                 string         `json:"target"`
		FormData               handoffProfile `json:"formData"`
		RegistrationSuccessful bool           `json:"registrationSuccessful"`
	} `json:"handoff"`
	At time.Time `json:"at"`
}

func newHandoffMessage(d Delivery) handoffMessage {
	var m handoffMessage
	m.SessionID = d.SessionID
	m.At = d.At
	m.Handoff.Target = d.Handoff.Target
	m.Handoff.RegistrationSuccessful = d.Handoff.RegistrationSuccessful
	m.Handoff.FormData.Profile = d.Handoff.FormData
	if img := d.Handoff.FormData.PrescriptionImage; img != nil {
		m.Handoff.FormData.PrescriptionImage = &imageRef{
			Filename: img.Filename,
			MIMEType: img.MIMEType,
			Size:     img.Size,
		}
	}
	return m
}

func (s *KafkaSink) Deliver(ctx context.Context, d Delivery) error {
	value, err := json.Marshal(newHandoffMessage(d))
	if err != nil {
		return fmt.Errorf("encoding handoff: %w", err)
	}
	if err := s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.SessionID),
		Value: value,
		Time:  d.At,
	}); err != nil {
		return fmt.Errorf("publishing handoff: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }

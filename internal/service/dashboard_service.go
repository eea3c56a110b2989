package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/extraction"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

// UploadReceipt acknowledges an upload that was issued to the extraction
// service. Its files are already listed on the dashboard.
type UploadReceipt struct {
	Sequence uint64            `json:"sequence"`
	Files    []string          `json:"files"`
	Trigger  ingestion.Trigger `json:"trigger"`
}

type DashboardService struct {
	sessions    *session.Manager
	extractor   extraction.Extractor
	transcriber dashboard.Transcriber
	reminders   dashboard.ReminderCreator
	metrics     *metrics.Collector
	tracer      trace.Tracer
	log         *zap.Logger
}

func NewDashboardService(
	sessions *session.Manager,
	extractor extraction.Extractor,
	transcriber dashboard.Transcriber,
	reminders dashboard.ReminderCreator,
	m *metrics.Collector,
	log *zap.Logger,
) *DashboardService {
	return &DashboardService{
		sessions:    sessions,
		extractor:   extractor,
		transcriber: transcriber,
		reminders:   reminders,
		metrics:     m,
		tracer:      otel.Tracer("rxintake/dashboard"),
		log:         log.Named("dashboard"),
	}
}

func (s *DashboardService) View(ctx context.Context, id uuid.UUID) (dashboard.View, error) {
	var v dashboard.View
	err := s.do(ctx, id, func(_ *session.Session, c *dashboard.Coordinator) error {
		v = c.View()
		return nil
	})
	return v, err
}

// SetSection leaves the active section unchanged for unknown values and
// reports ErrUnknownSection.
func (s *DashboardService) SetSection(ctx context.Context, id uuid.UUID, section dashboard.Section) (dashboard.View, error) {
	var v dashboard.View
	err := s.do(ctx, id, func(_ *session.Session, c *dashboard.Coordinator) error {
		if !c.SetActiveSection(section) {
			return fmt.Errorf("%w: %q", ErrUnknownSection, section)
		}
		v = c.View()
		return nil
	})
	return v, err
}

// SearchPrescriptions stores term as the current search and returns the
// matching prescriptions.
func (s *DashboardService) SearchPrescriptions(ctx context.Context, id uuid.UUID, term string) ([]dashboard.Prescription, error) {
	var out []dashboard.Prescription
	err := s.do(ctx, id, func(_ *session.Session, c *dashboard.Coordinator) error {
		c.SetSearchTerm(term)
		out = c.FilteredPrescriptions()
		return nil
	})
	return out, err
}

// ToggleReminder flips the reminder's taken flag. Unknown ids change nothing.
func (s *DashboardService) ToggleReminder(ctx context.Context, id uuid.UUID, reminderID int) ([]dashboard.MedicationReminder, error) {
	var out []dashboard.MedicationReminder
	err := s.do(ctx, id, func(_ *session.Session, c *dashboard.Coordinator) error {
		if !c.ToggleMedicationStatus(reminderID) {
			s.log.Debug("toggle for unknown reminder ignored",
				zap.String("session_id", id.String()),
				zap.Int("reminder_id", reminderID),
			)
		}
		out = c.Reminders()
		return nil
	})
	return out, err
}

func (s *DashboardService) CreateReminder(ctx context.Context, id uuid.UUID, draft dashboard.ReminderDraft) (int, error) {
	if _, err := s.sessions.Get(id); err != nil {
		return 0, err
	}
	return s.reminders.CreateReminder(ctx, draft)
}

// Transcribe runs voice input through the transcriber and shows the text on
// the dashboard.
func (s *DashboardService) Transcribe(ctx context.Context, id uuid.UUID) (string, error) {
	if _, err := s.sessions.Get(id); err != nil {
		return "", err
	}

	text, err := s.transcriber.Transcribe(ctx)
	if err != nil {
		return "", fmt.Errorf("transcribing voice input: %w", err)
	}

	err = s.do(ctx, id, func(_ *session.Session, c *dashboard.Coordinator) error {
		c.SetVoiceInput(text)
		return nil
	})
	return text, err
}

// Upload lists the files on the dashboard and sends them to the extraction
// service in the background. A receipt with sequence 0 means there was
// nothing to send.
func (s *DashboardService) Upload(ctx context.Context, id uuid.UUID, trigger ingestion.Trigger, srcs []ingestion.Source) (UploadReceipt, error) {
	names := ingestion.Names(srcs)
	receipt := UploadReceipt{Files: names, Trigger: trigger}

	if len(srcs) == 0 {
		if _, err := s.sessions.Get(id); err != nil {
			return UploadReceipt{}, err
		}
		s.log.Debug("upload event without files", zap.String("session_id", id.String()))
		return receipt, nil
	}

	var sess *session.Session
	err := s.do(ctx, id, func(se *session.Session, c *dashboard.Coordinator) error {
		sess = se
		receipt.Sequence = c.BeginUpload(names)
		return nil
	})
	if err != nil {
		return UploadReceipt{}, err
	}

	seq := receipt.Sequence
	log := s.log.With(
		zap.String("session_id", id.String()),
		zap.Uint64("upload_seq", seq),
		zap.Strings("files", names),
		zap.String("trigger", string(trigger)),
	)

	sess.Go(func(ctx context.Context) {
		result, err := s.extract(ctx, seq, srcs)
		sess.Post(func(st session.State) {
			c := st.Dashboard
			if err != nil {
				log.Warn("prescription upload failed", zap.Error(err))
				c.FailUpload(seq, err)
				s.countUpload(trigger, "failed")
				return
			}
			if !c.CompleteUpload(seq, result) {
				log.Info("older upload result discarded")
				s.countUpload(trigger, "superseded")
				if s.metrics != nil {
					s.metrics.UploadsDiscarded.Inc()
				}
				return
			}
			log.Info("prescription extracted", zap.Int("extracted_chars", len(result.ExtractedText)))
			s.countUpload(trigger, "ok")
		})
	})

	return receipt, nil
}

func (s *DashboardService) extract(ctx context.Context, seq uint64, srcs []ingestion.Source) (dashboard.ProcessedPrescription, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.Upload", trace.WithAttributes(
		attribute.Int64("upload.sequence", int64(seq)),
		attribute.Int("upload.files", len(srcs)),
	))
	defer span.End()

	files, err := ingestion.AcquireAll(ctx, srcs)
	if err == nil {
		var result dashboard.ProcessedPrescription
		result, err = s.extractor.Extract(ctx, files)
		if err == nil {
			return result, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return dashboard.ProcessedPrescription{}, err
}

func (s *DashboardService) do(ctx context.Context, id uuid.UUID, fn func(*session.Session, *dashboard.Coordinator) error) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}

	var inner error
	if err := sess.Do(ctx, func(st session.State) { inner = fn(sess, st.Dashboard) }); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return inner
}

func (s *DashboardService) countUpload(trigger ingestion.Trigger, outcome string) {
	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(trigger), outcome).Inc()
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

// RegistrationView is what the registration page renders.
type RegistrationView struct {
	SessionID          uuid.UUID                `json:"sessionId"`
	State              registration.State       `json:"state"`
	FormSubmitted      bool                     `json:"formSubmitted"`
	Profile            registration.Profile     `json:"profile"`
	Errors             registration.FieldErrors `json:"errors"`
	LastIngestionError string                   `json:"lastIngestionError,omitempty"`
	SubmittedAt        *time.Time               `json:"submittedAt,omitempty"`
	Redirect           *registration.Handoff    `json:"redirect,omitempty"`
}

func buildRegistrationView(id uuid.UUID, f *registration.Form) RegistrationView {
	v := RegistrationView{
		SessionID:     id,
		State:         f.State(),
		FormSubmitted: f.State() != registration.StateEditing,
		Profile:       f.Profile(),
		Errors:        f.Errors(),
		Redirect:      f.Handoff(),
	}
	if err := f.LastIngestionError(); err != nil {
		v.LastIngestionError = err.Error()
	}
	if at := f.SubmittedAt(); !at.IsZero() {
		v.SubmittedAt = &at
	}
	return v
}

// IngestionTicket acknowledges a prescription image read that is still
// running.
type IngestionTicket struct {
	Ticket   ingestion.Ticket  `json:"ticket"`
	Filename string            `json:"filename"`
	Trigger  ingestion.Trigger `json:"trigger"`
}

type IntakeService struct {
	sessions       *session.Manager
	navigator      registration.Navigator
	redirectDelay  time.Duration
	redirectTarget string
	metrics        *metrics.Collector
	tracer         trace.Tracer
	log            *zap.Logger
	now            func() time.Time
}

func NewIntakeService(sessions *session.Manager, nav registration.Navigator, cfg config.IntakeConfig, m *metrics.Collector, log *zap.Logger) *IntakeService {
	return &IntakeService{
		sessions:       sessions,
		navigator:      nav,
		redirectDelay:  cfg.RedirectDelay,
		redirectTarget: cfg.RedirectTarget,
		metrics:        m,
		tracer:         otel.Tracer("rxintake/intake"),
		log:            log.Named("intake"),
		now:            time.Now,
	}
}

func (s *IntakeService) View(ctx context.Context, id uuid.UUID) (RegistrationView, error) {
	var v RegistrationView
	err := s.do(ctx, id, func(sess *session.Session, st session.State) error {
		v = buildRegistrationView(sess.ID, st.Form)
		return nil
	})
	return v, err
}

func (s *IntakeService) SetField(ctx context.Context, id uuid.UUID, field registration.Field, value string) (RegistrationView, error) {
	var v RegistrationView
	err := s.do(ctx, id, func(sess *session.Session, st session.State) error {
		if err := st.Form.SetField(field, value); err != nil {
			return err
		}
		v = buildRegistrationView(sess.ID, st.Form)
		return nil
	})
	return v, err
}

func (s *IntakeService) ToggleAttribute(ctx context.Context, id uuid.UUID, field registration.Field, value string, included bool) (RegistrationView, error) {
	var v RegistrationView
	err := s.do(ctx, id, func(sess *session.Session, st session.State) error {
		if err := st.Form.ToggleAttribute(field, value, included); err != nil {
			return err
		}
		v = buildRegistrationView(sess.ID, st.Form)
		return nil
	})
	return v, err
}

// IngestImage starts reading the first source as the prescription image. The
// result lands on the form when the read finishes; a newer read supersedes
// this one.
func (s *IntakeService) IngestImage(ctx context.Context, id uuid.UUID, trigger ingestion.Trigger, srcs []ingestion.Source) (IngestionTicket, error) {
	if len(srcs) == 0 {
		return IngestionTicket{}, ingestion.ErrNoFiles
	}
	src := srcs[0]

	var (
		sess   *session.Session
		ticket ingestion.Ticket
	)
	err := s.do(ctx, id, func(se *session.Session, st session.State) error {
		t, err := st.Form.BeginImageIngestion()
		if err != nil {
			return err
		}
		sess, ticket = se, t
		return nil
	})
	if err != nil {
		return IngestionTicket{}, err
	}

	log := s.log.With(
		zap.String("session_id", id.String()),
		zap.String("filename", src.Name()),
		zap.String("trigger", string(trigger)),
		zap.Uint64("ticket", uint64(ticket)),
	)

	sess.Go(func(ctx context.Context) {
		file, err := ingestion.Acquire(ctx, src)
		sess.Post(func(st session.State) {
			if err != nil {
				if st.Form.FailImageIngestion(ticket, err) {
					log.Warn("prescription image read failed", zap.Error(err))
				}
				s.countIngestion(trigger, "failed")
				return
			}
			if !st.Form.CompleteImageIngestion(ticket, file) {
				log.Debug("stale prescription image read discarded")
				s.countIngestion(trigger, "superseded")
				return
			}
			log.Info("prescription image ingested",
				zap.String("mime_type", file.MIMEType),
				zap.Int64("size", file.Size),
			)
			s.countIngestion(trigger, "ok")
		})
	})

	return IngestionTicket{Ticket: ticket, Filename: src.Name(), Trigger: trigger}, nil
}

func (s *IntakeService) RemoveImage(ctx context.Context, id uuid.UUID) (RegistrationView, error) {
	var v RegistrationView
	err := s.do(ctx, id, func(sess *session.Session, st session.State) error {
		if err := st.Form.RemoveImage(); err != nil {
			return err
		}
		v = buildRegistrationView(sess.ID, st.Form)
		return nil
	})
	return v, err
}

// Submit validates the profile. When it is valid the form is locked and the
// redirect to the configured target is scheduled after the redirect delay.
// A *registration.ValidationError means the form is still editable.
func (s *IntakeService) Submit(ctx context.Context, id uuid.UUID) (RegistrationView, error) {
	ctx, span := s.tracer.Start(ctx, "intake.Submit", trace.WithAttributes(attribute.String("session.id", id.String())))
	defer span.End()

	var v RegistrationView
	err := s.do(ctx, id, func(sess *session.Session, st session.State) error {
		err := st.Form.Submit(s.now().UTC())
		v = buildRegistrationView(sess.ID, st.Form)
		if err != nil {
			return err
		}

		sess.AfterFunc(s.redirectDelay, func(st session.State) {
			s.redirect(sess, st.Form)
		})
		return nil
	})

	var vErr *registration.ValidationError
	switch {
	case err == nil:
		s.countSubmission("accepted")
		s.log.Info("registration submitted", zap.String("session_id", id.String()))
		return v, nil
	case errors.As(err, &vErr):
		s.countSubmission("invalid")
		span.SetAttributes(attribute.Int("registration.invalid_fields", len(vErr.Fields)))
		return v, err
	default:
		s.countSubmission("rejected")
		return v, err
	}
}

// redirect runs on the session loop.
func (s *IntakeService) redirect(sess *session.Session, f *registration.Form) {
	h, err := f.BeginRedirect(s.redirectTarget)
	if err != nil {
		s.log.Error("redirect not possible",
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.navigator.Navigate(sess.Context(), sess.ID.String(), h)
}

func (s *IntakeService) do(ctx context.Context, id uuid.UUID, fn func(*session.Session, session.State) error) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}

	var inner error
	if err := sess.Do(ctx, func(st session.State) { inner = fn(sess, st) }); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return inner
}

func (s *IntakeService) countSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *IntakeService) countIngestion(trigger ingestion.Trigger, outcome string) {
	if s.metrics != nil {
		s.metrics.IngestionsTotal.WithLabelValues(string(trigger), outcome).Inc()
	}
}

package registration

import (
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/attrset"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
)

// State transitions:
//
//	editing → submitted → redirecting
//
// A failed submission keeps the form in editing. There is no way back from
// submitted; a back transition would be one more entry in the table below.
type State string

const (
	StateEditing     State = "editing"
	StateSubmitted   State = "submitted"
	StateRedirecting State = "redirecting"
)

var transitions = map[State][]State{
	StateEditing:     {StateSubmitted},
	StateSubmitted:   {StateRedirecting},
	StateRedirecting: {},
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Form is the registration state machine. It is not safe for concurrent use;
// a session event loop owns it.
type Form struct {
	state   State
	profile Profile
	errors  FieldErrors
	image   ingestion.Slot

	submittedAt time.Time
	handoff     *Handoff
}

func NewForm() *Form {
	return &Form{
		state:   StateEditing,
		profile: NewProfile(),
		errors:  FieldErrors{},
	}
}

func (f *Form) State() State { return f.state }

func (f *Form) Errors() FieldErrors { return f.errors.Clone() }

func (f *Form) SubmittedAt() time.Time { return f.submittedAt }

// Profile returns a copy; callers cannot reach the form's own sets.
func (f *Form) Profile() Profile {
	p := f.profile.Clone()
	p.PrescriptionImage = f.image.File()
	return p
}

// Handoff is non-nil once the form has entered redirecting.
func (f *Form) Handoff() *Handoff { return f.handoff }

// LastIngestionError is the failure of the most recent prescription image
// read, cleared by the next successful one.
func (f *Form) LastIngestionError() error { return f.image.Err() }

// SetField replaces a scalar field. A successful edit clears any error shown
// for that field; the field is not re-validated until the next submit.
func (f *Form) SetField(field Field, value string) error {
	if err := f.ensureEditable(); err != nil {
		return err
	}
	if !field.IsScalar() {
		if field.IsAttributeSet() || field == FieldPrescriptionImage {
			return fmt.Errorf("%w: %s", ErrWrongFieldKind, field)
		}
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	switch field {
	case FieldFullName:
		f.profile.FullName = value
	case FieldEmail:
		f.profile.Email = value
	case FieldPhoneNumber:
		f.profile.PhoneNumber = value
	case FieldAllergies:
		f.profile.Allergies = value
	case FieldDateOfBirth:
		d, err := ParseDate(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidValue, field)
		}
		f.profile.DateOfBirth = d
	case FieldGender:
		g := Gender(value)
		if value != "" && !g.IsValid() {
			return fmt.Errorf("%w: gender %q", ErrInvalidValue, value)
		}
		f.profile.Gender = g
	case FieldLanguagePreference:
		if value != "" && !IsKnownLanguage(value) {
			return fmt.Errorf("%w: language %q", ErrInvalidValue, value)
		}
		f.profile.LanguagePreference = value
	}

	delete(f.errors, field)
	return nil
}

// ToggleAttribute includes or excludes value in a checkbox group.
func (f *Form) ToggleAttribute(field Field, value string, included bool) error {
	if err := f.ensureEditable(); err != nil {
		return err
	}

	switch field {
	case FieldExistingMedicalConditions:
		if !IsKnownCondition(value) {
			return fmt.Errorf("%w: condition %q", ErrInvalidValue, value)
		}
		f.profile.ExistingMedicalConditions = attrset.Toggle(f.profile.ExistingMedicalConditions, value, included)
	case FieldNotificationPreferences:
		ch := NotificationChannel(value)
		if !ch.IsValid() {
			return fmt.Errorf("%w: notification channel %q", ErrInvalidValue, value)
		}
		f.profile.NotificationPreferences = attrset.Toggle(f.profile.NotificationPreferences, ch, included)
	default:
		if field.IsScalar() || field == FieldPrescriptionImage {
			return fmt.Errorf("%w: %s", ErrWrongFieldKind, field)
		}
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	delete(f.errors, field)
	return nil
}

// BeginImageIngestion reserves the prescription image slot for a new read.
func (f *Form) BeginImageIngestion() (ingestion.Ticket, error) {
	if err := f.ensureEditable(); err != nil {
		return 0, err
	}
	return f.image.Begin()
}

// CompleteImageIngestion stores file if t is the newest read and the form is
// still editable.
func (f *Form) CompleteImageIngestion(t ingestion.Ticket, file *ingestion.File) bool {
	return f.image.Complete(t, file)
}

// FailImageIngestion records a read failure; the previous image stays.
func (f *Form) FailImageIngestion(t ingestion.Ticket, err error) bool {
	return f.image.Fail(t, err)
}

func (f *Form) RemoveImage() error {
	if err := f.ensureEditable(); err != nil {
		return err
	}
	return f.image.Clear()
}

// Submit validates the profile. On failure the errors are shown and the form
// stays in editing; the returned error is a *ValidationError. On success the
// form moves to submitted and the profile is frozen.
func (f *Form) Submit(now time.Time) error {
	if !f.state.CanTransitionTo(StateSubmitted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, StateSubmitted)
	}

	errs := Validate(f.Profile())
	if len(errs) > 0 {
		f.errors = errs
		return &ValidationError{Fields: errs.Clone()}
	}

	f.errors = FieldErrors{}
	f.state = StateSubmitted
	f.submittedAt = now
	f.image.Close()
	return nil
}

// BeginRedirect moves submitted → redirecting and returns the payload for the
// navigation collaborator. It succeeds at most once.
func (f *Form) BeginRedirect(target string) (Handoff, error) {
	if !f.state.CanTransitionTo(StateRedirecting) {
		return Handoff{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, StateRedirecting)
	}

	f.state = StateRedirecting
	h := Handoff{
		Target:                 target,
		FormData:               f.Profile(),
		RegistrationSuccessful: true,
	}
	f.handoff = &h
	return h, nil
}

func (f *Form) ensureEditable() error {
	if f.state != StateEditing {
		return ErrProfileLocked
	}
	return nil
}

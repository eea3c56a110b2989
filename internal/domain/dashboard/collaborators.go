package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrInvalidReminder = errors.New("reminder needs a name, dosage and time")

// Transcriber turns the user's voice input into text.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// ReminderDraft is what the add-reminder form collects.
type ReminderDraft struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Time      string `json:"time"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (d ReminderDraft) Validate() error {
	if d.Name == "" || d.Dosage == "" || d.Time == "" {
		return ErrInvalidReminder
	}
	return nil
}

// ReminderCreator stores a new reminder and returns its id.
type ReminderCreator interface {
	CreateReminder(ctx context.Context, d ReminderDraft) (int, error)
}

const StubTranscript = "Prescription for Amoxicillin 500mg"

// StubTranscriber always hears the same prescription.
type StubTranscriber struct{}

func (StubTranscriber) Transcribe(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return StubTranscript, nil
}

// StubReminderCreator hands out ids without storing anything. The dashboard's
// reminder list is unaffected.
type StubReminderCreator struct {
	next atomic.Int64
}

func NewStubReminderCreator(firstID int) *StubReminderCreator {
	s := &StubReminderCreator{}
	s.next.Store(int64(firstID) - 1)
	return s
}

func (s *StubReminderCreator) CreateReminder(ctx context.Context, d ReminderDraft) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := d.Validate(); err != nil {
		return 0, err
	}
	return int(s.next.Add(1)), nil
}

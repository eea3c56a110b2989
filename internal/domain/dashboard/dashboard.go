// Package dashboard holds the per-session dashboard view: section routing,
// prescription search, medication reminders and the results of prescription
// uploads sent to the extraction service.
package dashboard

import (
	"encoding/json"
	"strings"
	"time"
)

type Section string

const (
	SectionQuickActions  Section = "quickActions"
	SectionPrescriptions Section = "prescriptions"
	SectionReminders     Section = "reminders"
)

var Sections = []Section{SectionQuickActions, SectionPrescriptions, SectionReminders}

func (s Section) IsValid() bool {
	switch s {
	case SectionQuickActions, SectionPrescriptions, SectionReminders:
		return true
	}
	return false
}

type Prescription struct {
	ID           int      `json:"id"`
	Medicine     string   `json:"medicine"`
	Doctor       string   `json:"doctor"`
	Date         string   `json:"date"`
	Dosage       string   `json:"dosage"`
	Frequency    string   `json:"frequency"`
	Interactions []string `json:"interactions"`
}

// FilterPrescriptions returns the prescriptions whose medicine or doctor
// contains term, ignoring case. The input order is kept and the input slice is
// never returned directly.
func FilterPrescriptions(rxs []Prescription, term string) []Prescription {
	needle := strings.ToLower(term)
	out := make([]Prescription, 0, len(rxs))
	for _, rx := range rxs {
		if needle == "" ||
			strings.Contains(strings.ToLower(rx.Medicine), needle) ||
			strings.Contains(strings.ToLower(rx.Doctor), needle) {
			out = append(out, rx)
		}
	}
	return out
}

type MedicationReminder struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Time      string `json:"time"`
	Taken     bool   `json:"taken"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// DefaultReminders seeds a new dashboard; nothing is persisted between
// sessions.
func DefaultReminders() []MedicationReminder {
	return []MedicationReminder{
		{
			ID:        1,
			Name:      "Amoxicillin",
			Dosage:    "500mg",
			Time:      "08:00 AM",
			Taken:     false,
			StartDate: "2024-03-20",
			EndDate:   "2024-03-30",
		},
		{
			ID:        2,
			Name:      "Lisinopril",
			Dosage:    "10mg",
			Time:      "07:00 PM",
			Taken:     true,
			StartDate: "2024-02-15",
			EndDate:   "2024-04-15",
		},
	}
}

// UploadedFile is a file name sent to the extraction service. Entries are
// recorded when the upload is issued, whether or not it later succeeds.
type UploadedFile struct {
	Filename   string    `json:"filename"`
	Sequence   uint64    `json:"sequence"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ProcessedPrescription is the extraction service's answer for one upload.
// StructuredText is either a JSON string or an object, kept verbatim.
type ProcessedPrescription struct {
	Filename       string          `json:"filename,omitempty"`
	ExtractedText  string          `json:"extracted_text"`
	StructuredText json.RawMessage `json:"structured_text"`
	Sequence       uint64          `json:"sequence"`
}

// UploadFailure is the visible error state of the newest failed upload.
type UploadFailure struct {
	Sequence uint64    `json:"sequence"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

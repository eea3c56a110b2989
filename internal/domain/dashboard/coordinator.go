package dashboard

import (
	"time"
)

// Coordinator is one session's dashboard state. It is not safe for
// concurrent use; the session event loop owns it.
type Coordinator struct {
	activeSection Section
	searchTerm    string
	voiceInput    string

	prescriptions []Prescription
	reminders     []MedicationReminder

	uploads    []UploadedFile
	issuedSeq  uint64
	appliedSeq uint64
	processed  *ProcessedPrescription
	lastFail   *UploadFailure

	closed bool
	now    func() time.Time
}

type Option func(*Coordinator)

func WithPrescriptions(rxs []Prescription) Option {
	return func(c *Coordinator) {
		c.prescriptions = append([]Prescription{}, rxs...)
	}
}

func WithReminders(rs []MedicationReminder) Option {
	return func(c *Coordinator) {
		c.reminders = append([]MedicationReminder{}, rs...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		activeSection: SectionQuickActions,
		prescriptions: []Prescription{},
		reminders:     DefaultReminders(),
		uploads:       []UploadedFile{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) ActiveSection() Section { return c.activeSection }

// SetActiveSection ignores unknown sections and reports whether the call took
// effect.
func (c *Coordinator) SetActiveSection(s Section) bool {
	if !s.IsValid() {
		return false
	}
	c.activeSection = s
	return true
}

func (c *Coordinator) SearchTerm() string { return c.searchTerm }

func (c *Coordinator) SetSearchTerm(term string) { c.searchTerm = term }

// FilteredPrescriptions applies the current search term.
func (c *Coordinator) FilteredPrescriptions() []Prescription {
	return FilterPrescriptions(c.prescriptions, c.searchTerm)
}

func (c *Coordinator) Prescriptions() []Prescription {
	return append([]Prescription{}, c.prescriptions...)
}

func (c *Coordinator) Reminders() []MedicationReminder {
	return append([]MedicationReminder{}, c.reminders...)
}

// ToggleMedicationStatus flips Taken on the reminder with the given id. An
// unknown id is a no-op; the result reports whether a reminder matched.
func (c *Coordinator) ToggleMedicationStatus(id int) bool {
	for i := range c.reminders {
		if c.reminders[i].ID == id {
			c.reminders[i].Taken = !c.reminders[i].Taken
			return true
		}
	}
	return false
}

func (c *Coordinator) VoiceInput() string { return c.voiceInput }

func (c *Coordinator) SetVoiceInput(text string) { c.voiceInput = text }

// BeginUpload records the file names of a new upload and returns its
// sequence number. Names are appended immediately, duplicates included.
func (c *Coordinator) BeginUpload(names []string) uint64 {
	c.issuedSeq++
	seq := c.issuedSeq
	if c.closed {
		return seq
	}

	at := c.now().UTC()
	for _, name := range names {
		c.uploads = append(c.uploads, UploadedFile{Filename: name, Sequence: seq, UploadedAt: at})
	}
	return seq
}

// CompleteUpload replaces the processed prescription if seq is newer than the
// one on display. Results of older uploads are discarded so that the last
// upload issued wins regardless of completion order.
func (c *Coordinator) CompleteUpload(seq uint64, result ProcessedPrescription) bool {
	if c.closed || seq <= c.appliedSeq {
		return false
	}
	result.Sequence = seq
	c.processed = &result
	c.appliedSeq = seq
	if c.lastFail != nil && c.lastFail.Sequence <= seq {
		c.lastFail = nil
	}
	return true
}

// FailUpload records err as the visible upload error unless a newer upload
// has already been applied. The processed prescription and uploaded names are
// left alone.
func (c *Coordinator) FailUpload(seq uint64, err error) bool {
	if c.closed || seq <= c.appliedSeq {
		return false
	}
	if c.lastFail != nil && c.lastFail.Sequence > seq {
		return false
	}
	c.lastFail = &UploadFailure{Sequence: seq, Message: err.Error(), At: c.now().UTC()}
	return true
}

func (c *Coordinator) Uploads() []UploadedFile {
	return append([]UploadedFile{}, c.uploads...)
}

// Processed returns a copy of the newest applied result, or nil.
func (c *Coordinator) Processed() *ProcessedPrescription {
	if c.processed == nil {
		return nil
	}
	p := *c.processed
	return &p
}

func (c *Coordinator) LastUploadError() *UploadFailure {
	if c.lastFail == nil {
		return nil
	}
	f := *c.lastFail
	return &f
}

// Close discards the results of uploads still in flight.
func (c *Coordinator) Close() { c.closed = true }

// View is a read-only snapshot for rendering.
type View struct {
	ActiveSection         Section                `json:"activeSection"`
	SearchTerm            string                 `json:"searchTerm"`
	Prescriptions         []Prescription         `json:"prescriptions"`
	Reminders             []MedicationReminder   `json:"reminders"`
	UploadedFiles         []UploadedFile         `json:"uploadedFiles"`
	ProcessedPrescription *ProcessedPrescription `json:"processedPrescription"`
	LastUploadError       *UploadFailure         `json:"lastUploadError"`
	VoiceInput            string                 `json:"voiceInput"`
}

func (c *Coordinator) View() View {
	return View{
		ActiveSection:         c.activeSection,
		SearchTerm:            c.searchTerm,
		Prescriptions:         c.FilteredPrescriptions(),
		Reminders:             c.Reminders(),
		UploadedFiles:         c.Uploads(),
		ProcessedPrescription: c.Processed(),
		LastUploadError:       c.LastUploadError(),
		VoiceInput:            c.voiceInput,
	}
}

package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
)

// Field names match the form's input names so error maps can be rendered
// next to the offending control without translation.
type Field string

const (
	FieldFullName                  Field = "fullName"
	FieldEmail                     Field = "email"
	FieldPhoneNumber               Field = "phoneNumber"
	FieldDateOfBirth               Field = "dateOfBirth"
	FieldGender                    Field = "gender"
	FieldExistingMedicalConditions Field = "existingMedicalConditions"
	FieldAllergies                 Field = "allergies"
	FieldNotificationPreferences   Field = "notificationPreferences"
	FieldLanguagePreference        Field = "languagePreference"
	FieldPrescriptionImage         Field = "prescriptionImage"
)

// IsScalar reports whether the field is edited by plain value replacement.
func (f Field) IsScalar() bool {
	switch f {
	case FieldFullName, FieldEmail, FieldPhoneNumber, FieldDateOfBirth,
		FieldGender, FieldAllergies, FieldLanguagePreference:
		return true
	}
	return false
}

// IsAttributeSet reports whether the field is a checkbox group.
func (f Field) IsAttributeSet() bool {
	return f == FieldExistingMedicalConditions || f == FieldNotificationPreferences
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelApp   NotificationChannel = "app"
)

func (c NotificationChannel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelApp:
		return true
	}
	return false
}

var (
	Genders              = []Gender{GenderMale, GenderFemale, GenderOther}
	NotificationChannels = []NotificationChannel{ChannelSMS, ChannelEmail, ChannelApp}

	MedicalConditions = []string{
		"Diabetes", "Hypertension", "Asthma",
		"Heart Disease", "Arthritis",
	}

	// Language codes are stored lower-cased; only the code is kept.
	Languages = []string{
		"english", "spanish", "french",
		"german", "mandarin", "arabic",
	}
)

func IsKnownCondition(c string) bool { return slices.Contains(MedicalConditions, c) }

func IsKnownLanguage(l string) bool { return slices.Contains(Languages, l) }

const DateLayout = "2006-01-02"

// Date is a calendar date without time of day. The zero value means unset.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Profile is the patient's in-progress or submitted registration data.
type Profile struct {
	FullName                  string                `json:"fullName"`
	Email                     string                `json:"email"`
	PhoneNumber               string                `json:"phoneNumber"`
	DateOfBirth               Date                  `json:"dateOfBirth"`
	Gender                    Gender                `json:"gender"`
	ExistingMedicalConditions []string              `json:"existingMedicalConditions"`
	Allergies                 string                `json:"allergies"`
	NotificationPreferences   []NotificationChannel `json:"notificationPreferences"`
	LanguagePreference        string                `json:"languagePreference"`
	PrescriptionImage         *ingestion.File       `json:"prescriptionImage"`
}

// NewProfile returns an empty profile with non-nil attribute sets.
func NewProfile() Profile {
	return Profile{
		ExistingMedicalConditions: []string{},
		NotificationPreferences:   []NotificationChannel{},
	}
}

// Clone copies the attribute sets. The prescription image is shared; files
// are never mutated after ingestion.
func (p Profile) Clone() Profile {
	out := p
	out.ExistingMedicalConditions = append(make([]string, 0, len(p.ExistingMedicalConditions)), p.ExistingMedicalConditions...)
	out.NotificationPreferences = append(make([]NotificationChannel, 0, len(p.NotificationPreferences)), p.NotificationPreferences...)
	return out
}

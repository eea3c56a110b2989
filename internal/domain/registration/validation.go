package registration

import (
	"regexp"
	"strings"
)

// FieldErrors maps a field to the message shown next to it. Only fields that
// are currently invalid have an entry.
type FieldErrors map[Field]string

func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

const (
	MsgFullNameRequired     = "Full Name is required"
	MsgEmailRequired        = "Email is required"
	MsgEmailInvalid         = "Email is invalid"
	MsgPhoneRequired        = "Phone Number is required"
	MsgPhoneInvalid         = "Invalid phone number"
	MsgDateOfBirthRequired  = "Date of Birth is required"
	MsgGenderRequired       = "Gender is required"
	MsgLanguageRequired     = "Language Preference is required"
	MsgNotificationRequired = "Select at least one notification preference"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// Validate maps a profile to its field errors. It is pure: it never touches
// the profile and returns a fresh map on every call.
func Validate(p Profile) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(p.FullName) == "" {
		errs[FieldFullName] = MsgFullNameRequired
	}

	switch {
	case p.Email == "":
		errs[FieldEmail] = MsgEmailRequired
	case !emailPattern.MatchString(p.Email):
		errs[FieldEmail] = MsgEmailInvalid
	}

	switch {
	case p.PhoneNumber == "":
		errs[FieldPhoneNumber] = MsgPhoneRequired
	case !phonePattern.MatchString(p.PhoneNumber):
		errs[FieldPhoneNumber] = MsgPhoneInvalid
	}

	if p.DateOfBirth.IsZero() {
		errs[FieldDateOfBirth] = MsgDateOfBirthRequired
	}
	if p.Gender == "" {
		errs[FieldGender] = MsgGenderRequired
	}
	if p.LanguagePreference == "" {
		errs[FieldLanguagePreference] = MsgLanguageRequired
	}
	if len(p.NotificationPreferences) == 0 {
		errs[FieldNotificationPreferences] = MsgNotificationRequired
	}

	return errs
}

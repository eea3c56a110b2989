package registration

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrProfileLocked     = errors.New("registration already submitted: profile is read-only")
	ErrUnknownField      = errors.New("unknown registration field")
	ErrWrongFieldKind    = errors.New("field does not accept this kind of change")
	ErrInvalidValue      = errors.New("value is not allowed for this field")
	ErrInvalidTransition = errors.New("invalid registration state transition")
)

// ValidationError carries the per-field messages produced by a failed
// submission attempt.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[Field(k)])
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

package registration

import "context"

// Handoff is what the form passes to navigation once registration succeeds.
type Handoff struct {
	Target                 string  `json:"target"`
	FormData               Profile `json:"formData"`
	RegistrationSuccessful bool    `json:"registrationSuccessful"`
}

// Navigator receives completed registrations. Calls are fire-and-forget; an
// implementation must not block the caller for long.
type Navigator interface {
	Navigate(ctx context.Context, sessionID string, h Handoff)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, sessionID string, h Handoff)

func (fn NavigatorFunc) Navigate(ctx context.Context, sessionID string, h Handoff) {
	fn(ctx, sessionID, h)
}

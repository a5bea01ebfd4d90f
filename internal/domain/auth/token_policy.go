package auth

import "errors"

// Escalation is the retry decision after a failed silent acquisition.
type Escalation int

const (
	// EscalationNone surfaces the error to the caller unchanged.
	EscalationNone Escalation = iota
	// EscalationInteractive retries with an interactive prompt and the same scopes.
	EscalationInteractive
)

func (e Escalation) String() string {
	if e == EscalationInteractive {
		return "interactive"
	}
	return "none"
}

// EscalationFor decides how to react to a silent acquisition error.
// Only ErrInteractionRequired escalates; network and other failures must
// never open an unsolicited prompt.
func EscalationFor(err error) Escalation {
	if err != nil && errors.Is(err, ErrInteractionRequired) {
		return EscalationInteractive
	}
	return EscalationNone
}

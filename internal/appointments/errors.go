package appointments

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoActiveOffer is returned when a selection is attempted before any
// appointment options have been offered.
var ErrNoActiveOffer = errors.New("appointments: no appointment options are currently available to select from")

// FormatError reports a preference field that could not be parsed or that
// violates the resolved query invariants.
type FormatError struct {
	Field  string
	Value  string
	Reason string
	// Inverted is set when the value parsed but ends before the range starts.
	Inverted bool
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("appointments: %s %q %s", e.Field, e.Value, e.Reason)
}

// UserMessage is the re-prompt shown to the user.
func (e *FormatError) UserMessage() string {
	if e.Inverted {
		return "The end of your availability must come after the start. Please check the dates and times you gave me."
	}
	if e.Field == FieldExcludedDates {
		return "Some non-available dates couldn't be parsed. Please use dd/mm/yyyy format separated by ';'."
	}
	return "I couldn't understand the date or time format. Please use dd/mm/yyyy for dates and HH:MM for times."
}

// InvalidSelectionError is returned when the chosen slot is not part of the
// current offer. Alternatives lists the offer in presentation order.
type InvalidSelectionError struct {
	Selected     string
	Alternatives []string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("appointments: invalid slot selection: %s. Available options are: %s",
		e.Selected, strings.Join(e.Alternatives, ", "))
}

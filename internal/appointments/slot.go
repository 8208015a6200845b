package appointments

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout renders calendar dates as dd/mm/yyyy.
	DateLayout = "02/01/2006"
	// TimeLayout renders times of day as 24-hour HH:MM.
	TimeLayout = "15:04"
	// SlotLayout is the canonical slot string. Selection validation compares
	// these strings byte for byte.
	SlotLayout = DateLayout + " ; " + TimeLayout

	// lenient parse layouts accept single digit day, month and hour.
	dateParseLayout = "2/1/2006"
	timeParseLayout = "15:4"

	// AppointmentDuration is the fixed length of a generated appointment.
	AppointmentDuration = 30 * time.Minute
)

// ClockTime is a time of day in minutes since midnight.
type ClockTime int

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Slot is a candidate booking option.
type Slot struct {
	Date time.Time // UTC midnight of the calendar day
	Time ClockTime
}

// At returns the slot start as a UTC timestamp.
func (s Slot) At() time.Time {
	return s.Date.Add(time.Duration(s.Time) * time.Minute)
}

// String renders the canonical dd/mm/yyyy ; HH:MM form.
func (s Slot) String() string {
	return s.At().Format(SlotLayout)
}

// ParseSlot parses a canonical slot string.
func ParseSlot(value string) (Slot, error) {
	at, err := time.Parse(SlotLayout, value)
	if err != nil {
		return Slot{}, fmt.Errorf("appointments: parse slot %q: %w", value, err)
	}
	return Slot{
		Date: truncateDay(at),
		Time: NewClockTime(at.Hour(), at.Minute()),
	}, nil
}

// Offer is the ordered set of canonical slot strings currently presented to
// the user. There is at most one active offer per session.
type Offer []string

// NewOffer renders generated slots into an offer, preserving order.
func NewOffer(slots []Slot) Offer {
	offer := make(Offer, 0, len(slots))
	for _, s := range slots {
		offer = append(offer, s.String())
	}
	return offer
}

// Contains reports whether candidate is byte-identical to an offered slot.
func (o Offer) Contains(candidate string) bool {
	for _, s := range o {
		if s == candidate {
			return true
		}
	}
	return false
}

// Strings returns a copy of the offered slot strings.
func (o Offer) Strings() []string {
	out := make([]string, len(o))
	copy(out, o)
	return out
}

// Numbered renders the offer as a 1-based numbered list.
func (o Offer) Numbered() string {
	var b strings.Builder
	for i, s := range o {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

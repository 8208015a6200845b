package appointments

import (
	"strings"
	"time"
)

// Preference field names. They double as tool argument names and dialogue
// slot names.
const (
	FieldStartDate     = "user_availability_start_date"
	FieldEndDate       = "user_availability_end_date"
	FieldStartTime     = "user_availability_start_time"
	FieldEndTime       = "user_availability_end_time"
	FieldProvider      = "preferred_doctor"
	FieldExcludedDates = "non_available_days"
)

// Any is the sentinel for an unspecified preference.
const Any = "any"

const (
	defaultSearchDays = 14
	defaultStartTime  = ClockTime(9 * 60)
	defaultEndTime    = ClockTime(17 * 60)
)

// PartialQuery holds raw preference values: a formatted value, "any", or
// empty.
type PartialQuery struct {
	StartDate     string `json:"user_availability_start_date" jsonschema:"Start date for availability in dd/mm/yyyy format. Use 'any' if not specified."`
	EndDate       string `json:"user_availability_end_date" jsonschema:"End date for availability in dd/mm/yyyy format. Use 'any' if not specified."`
	StartTime     string `json:"user_availability_start_time" jsonschema:"Start time for availability in HH:MM format (24-hour). Use 'any' if not specified."`
	EndTime       string `json:"user_availability_end_time" jsonschema:"End time for availability in HH:MM format (24-hour). Use 'any' if not specified."`
	Provider      string `json:"preferred_doctor" jsonschema:"Name of preferred doctor. Use 'any' if not specified."`
	ExcludedDates string `json:"non_available_days" jsonschema:"Dates user is NOT available, separated by ';' in dd/mm/yyyy format. Use 'any' if none specified."`
}

// Fields returns the raw values keyed by preference field name.
func (p PartialQuery) Fields() map[string]string {
	return map[string]string{
		FieldStartDate:     p.StartDate,
		FieldEndDate:       p.EndDate,
		FieldStartTime:     p.StartTime,
		FieldEndTime:       p.EndTime,
		FieldProvider:      p.Provider,
		FieldExcludedDates: p.ExcludedDates,
	}
}

// Merge overlays extracted values on stored ones. A field from extracted
// wins whenever it is non-empty, including an explicit "any".
func Merge(extracted, stored PartialQuery) PartialQuery {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return PartialQuery{
		StartDate:     pick(extracted.StartDate, stored.StartDate),
		EndDate:       pick(extracted.EndDate, stored.EndDate),
		StartTime:     pick(extracted.StartTime, stored.StartTime),
		EndTime:       pick(extracted.EndTime, stored.EndTime),
		Provider:      pick(extracted.Provider, stored.Provider),
		ExcludedDates: pick(extracted.ExcludedDates, stored.ExcludedDates),
	}
}

// Query is a fully resolved appointment search.
type Query struct {
	StartDate time.Time
	EndDate   time.Time
	StartTime ClockTime
	EndTime   ClockTime
	Provider  string // empty means any provider
	Excluded  []time.Time
}

// IsExcluded reports whether day is one of the excluded dates.
func (q Query) IsExcluded(day time.Time) bool {
	for _, d := range q.Excluded {
		if d.Equal(day) {
			return true
		}
	}
	return false
}

// Normalizer resolves raw preferences into a Query, substituting defaults
// for unspecified values.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
}

// NewNormalizer returns a Normalizer that computes "today" in loc. A nil
// clock defaults to time.Now and a nil location to UTC.
func NewNormalizer(now func() time.Time, loc *time.Location) *Normalizer {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{now: now, loc: loc}
}

// Today returns the current calendar day in the normalizer's location.
func (n *Normalizer) Today() time.Time {
	return truncateDay(n.now().In(n.loc))
}

// Now returns the current wall clock in the normalizer's location.
func (n *Normalizer) Now() time.Time {
	return n.now().In(n.loc)
}

// Resolve merges extracted over stored and normalizes the result.
func (n *Normalizer) Resolve(extracted, stored PartialQuery) (Query, error) {
	return n.Normalize(Merge(extracted, stored))
}

// Normalize applies defaults and validates formats.
func (n *Normalizer) Normalize(raw PartialQuery) (Query, error) {
	var q Query
	var err error

	if isAny(raw.StartDate) {
		q.StartDate = n.Today()
	} else if q.StartDate, err = parseDate(FieldStartDate, raw.StartDate); err != nil {
		return Query{}, err
	}

	if isAny(raw.EndDate) {
		q.EndDate = q.StartDate.AddDate(0, 0, defaultSearchDays)
	} else if q.EndDate, err = parseDate(FieldEndDate, raw.EndDate); err != nil {
		return Query{}, err
	}

	if isAny(raw.StartTime) {
		q.StartTime = defaultStartTime
	} else if q.StartTime, err = parseClock(FieldStartTime, raw.StartTime); err != nil {
		return Query{}, err
	}

	if isAny(raw.EndTime) {
		q.EndTime = defaultEndTime
	} else if q.EndTime, err = parseClock(FieldEndTime, raw.EndTime); err != nil {
		return Query{}, err
	}

	if !isAny(raw.Provider) {
		q.Provider = strings.TrimSpace(raw.Provider)
	}

	if !isAny(raw.ExcludedDates) {
		for _, piece := range strings.Split(raw.ExcludedDates, ";") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			day, err := parseDate(FieldExcludedDates, piece)
			if err != nil {
				return Query{}, err
			}
			if !q.IsExcluded(day) {
				q.Excluded = append(q.Excluded, day)
			}
		}
	}

	if q.EndDate.Before(q.StartDate) {
		return Query{}, &FormatError{Field: FieldEndDate, Value: q.EndDate.Format(DateLayout), Reason: "is before the start date", Inverted: true}
	}
	if q.EndTime <= q.StartTime {
		return Query{}, &FormatError{Field: FieldEndTime, Value: q.EndTime.String(), Reason: "is not after the start time", Inverted: true}
	}
	return q, nil
}

func isAny(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, Any)
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(dateParseLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &FormatError{Field: field, Value: value, Reason: "is not a dd/mm/yyyy date"}
	}
	return d, nil
}

func parseClock(field, value string) (ClockTime, error) {
	t, err := time.Parse(timeParseLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, &FormatError{Field: field, Value: value, Reason: "is not an HH:MM time"}
	}
	return NewClockTime(t.Hour(), t.Minute()), nil
}

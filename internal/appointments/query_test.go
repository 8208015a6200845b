package appointments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 14 July 2025, mid-morning.
var testNow = time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func date(day, month, year int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func anyQuery() PartialQuery {
	return PartialQuery{
		StartDate:     "any",
		EndDate:       "any",
		StartTime:     "any",
		EndTime:       "any",
		Provider:      "any",
		ExcludedDates: "any",
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)

	for name, raw := range map[string]PartialQuery{
		"lowercase any": anyQuery(),
		"uppercase any": {StartDate: "ANY", EndDate: "Any", StartTime: "aNy", EndTime: "ANY", Provider: "Any", ExcludedDates: "ANY"},
		"empty":         {},
		"whitespace":    {StartDate: "  ", EndDate: " any "},
	} {
		t.Run(name, func(t *testing.T) {
			q, err := n.Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, date(14, 7, 2025), q.StartDate)
			assert.Equal(t, date(28, 7, 2025), q.EndDate)
			assert.Equal(t, NewClockTime(9, 0), q.StartTime)
			assert.Equal(t, NewClockTime(17, 0), q.EndTime)
			assert.Empty(t, q.Provider)
			assert.Empty(t, q.Excluded)
		})
	}
}

func TestNormalize_EndDateDefaultsFromExplicitStart(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)

	q, err := n.Normalize(PartialQuery{StartDate: "01/08/2025"})
	require.NoError(t, err)
	assert.Equal(t, date(1, 8, 2025), q.StartDate)
	assert.Equal(t, date(15, 8, 2025), q.EndDate)
}

func TestNormalize_ExplicitValues(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)

	q, err := n.Normalize(PartialQuery{
		StartDate:     "15/07/2025",
		EndDate:       "5/8/2025",
		StartTime:     "13:30",
		EndTime:       "9:00",
		Provider:      " Smith ",
		ExcludedDates: "",
	})
	require.Error(t, err, "end time before start time must be rejected")

	q, err = n.Normalize(PartialQuery{
		StartDate:     "15/07/2025",
		EndDate:       "5/8/2025",
		StartTime:     "8:15",
		EndTime:       "12:00",
		Provider:      " Smith ",
		ExcludedDates: "16/07/2025; 17/07/2025 ;;16/07/2025",
	})
	require.NoError(t, err)
	assert.Equal(t, date(15, 7, 2025), q.StartDate)
	assert.Equal(t, date(5, 8, 2025), q.EndDate)
	assert.Equal(t, NewClockTime(8, 15), q.StartTime)
	assert.Equal(t, NewClockTime(12, 0), q.EndTime)
	assert.Equal(t, "Smith", q.Provider)
	assert.Equal(t, []time.Time{date(16, 7, 2025), date(17, 7, 2025)}, q.Excluded)
	assert.True(t, q.IsExcluded(date(17, 7, 2025)))
	assert.False(t, q.IsExcluded(date(18, 7, 2025)))
}

func TestNormalize_FormatErrors(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)

	tests := []struct {
		name  string
		raw   PartialQuery
		field string
		msg   string
	}{
		{name: "month out of range", raw: PartialQuery{StartDate: "31/13/2025"}, field: FieldStartDate, msg: "dd/mm/yyyy"},
		{name: "iso date", raw: PartialQuery{EndDate: "2025-07-20"}, field: FieldEndDate, msg: "dd/mm/yyyy"},
		{name: "day out of range", raw: PartialQuery{StartDate: "31/02/2025"}, field: FieldStartDate, msg: "dd/mm/yyyy"},
		{name: "twelve hour time", raw: PartialQuery{StartTime: "9am"}, field: FieldStartTime, msg: "HH:MM"},
		{name: "hour out of range", raw: PartialQuery{EndTime: "25:00"}, field: FieldEndTime, msg: "HH:MM"},
		{name: "bad exclusion", raw: PartialQuery{ExcludedDates: "16/07/2025;tomorrow"}, field: FieldExcludedDates, msg: "separated by ';'"},
		{name: "end before start", raw: PartialQuery{StartDate: "20/07/2025", EndDate: "19/07/2025"}, field: FieldEndDate, msg: "must come after"},
		{name: "empty time window", raw: PartialQuery{StartTime: "10:00", EndTime: "10:00"}, field: FieldEndTime, msg: "must come after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			require.Error(t, err)

			var fe *FormatError
			require.True(t, errors.As(err, &fe), "expected FormatError, got %T", err)
			assert.Equal(t, tt.field, fe.Field)
			assert.Contains(t, fe.UserMessage(), tt.msg)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)
	raw := PartialQuery{
		StartDate:     "any",
		EndDate:       "30/07/2025",
		StartTime:     "10:00",
		EndTime:       "any",
		Provider:      "Jones",
		ExcludedDates: "21/07/2025;22/07/2025",
	}

	first, err := n.Normalize(raw)
	require.NoError(t, err)
	second, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_TodayUsesLocation(t *testing.T) {
	late := time.Date(2025, 7, 14, 23, 30, 0, 0, time.UTC)
	n := NewNormalizer(fixedClock(late), time.FixedZone("UTC+12", 12*60*60))

	q, err := n.Normalize(anyQuery())
	require.NoError(t, err)
	assert.Equal(t, date(15, 7, 2025), q.StartDate)
}

func TestMerge_ExtractedWinsWhenPresent(t *testing.T) {
	stored := PartialQuery{
		StartDate:     "15/07/2025",
		EndDate:       "20/07/2025",
		StartTime:     "10:00",
		EndTime:       "12:00",
		Provider:      "Smith",
		ExcludedDates: "16/07/2025",
	}
	extracted := PartialQuery{
		StartDate: "any",
		EndTime:   "16:00",
	}

	merged := Merge(extracted, stored)
	assert.Equal(t, PartialQuery{
		StartDate:     "any",
		EndDate:       "20/07/2025",
		StartTime:     "10:00",
		EndTime:       "16:00",
		Provider:      "Smith",
		ExcludedDates: "16/07/2025",
	}, merged)
}

func TestResolve_UsesStoredWhenNotExtracted(t *testing.T) {
	n := NewNormalizer(fixedClock(testNow), nil)

	q, err := n.Resolve(PartialQuery{StartTime: "any"}, PartialQuery{StartTime: "11:00", Provider: "Lee"})
	require.NoError(t, err)
	assert.Equal(t, NewClockTime(9, 0), q.StartTime)
	assert.Equal(t, "Lee", q.Provider)
}

func TestPartialQuery_Fields(t *testing.T) {
	fields := PartialQuery{StartDate: "a", ExcludedDates: "b"}.Fields()
	assert.Len(t, fields, 6)
	assert.Equal(t, "a", fields[FieldStartDate])
	assert.Equal(t, "b", fields[FieldExcludedDates])
	assert.Equal(t, "", fields[FieldProvider])
}

package appointments

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constRand always draws the same index, clamped to the range.
type constRand int

func (c constRand) IntN(n int) int {
	return min(int(c), n-1)
}

// seqRand replays a fixed script of draws, cycling when exhausted.
type seqRand struct {
	vals []int
	pos  int
}

func (s *seqRand) IntN(n int) int {
	v := s.vals[s.pos%len(s.vals)]
	s.pos++
	return v % n
}

func mustNormalize(t *testing.T, raw PartialQuery) Query {
	t.Helper()
	q, err := NewNormalizer(fixedClock(testNow), nil).Normalize(raw)
	require.NoError(t, err)
	return q
}

func slotStrings(slots []Slot) []string {
	return NewOffer(slots).Strings()
}

func TestGenerate_AllAnyFillsQuota(t *testing.T) {
	g := NewGenerator(WithRand(constRand(0)))

	slots := g.Generate(mustNormalize(t, anyQuery()))

	assert.Equal(t, []string{
		"14/07/2025 ; 09:00",
		"15/07/2025 ; 09:00",
		"16/07/2025 ; 09:00",
		"17/07/2025 ; 09:00",
		"18/07/2025 ; 09:00",
		"21/07/2025 ; 09:00",
		"22/07/2025 ; 09:00",
		"23/07/2025 ; 09:00",
		"24/07/2025 ; 09:00",
		"25/07/2025 ; 09:00",
	}, slotStrings(slots))
}

func TestGenerate_Properties(t *testing.T) {
	raw := PartialQuery{
		StartDate:     "14/07/2025",
		EndDate:       "08/08/2025",
		StartTime:     "10:00",
		EndTime:       "15:00",
		ExcludedDates: "16/07/2025;22/07/2025;30/07/2025",
	}
	q := mustNormalize(t, raw)
	latest := q.EndTime - ClockTime(AppointmentDuration/time.Minute)

	for seed := uint64(1); seed <= 200; seed++ {
		g := NewGenerator(WithRand(rand.New(rand.NewPCG(seed, seed*7))), WithStrictBackfill())
		slots := g.Generate(q)

		require.LessOrEqual(t, len(slots), DefaultMaxSlots)
		seen := map[string]bool{}
		for _, s := range slots {
			key := s.String()
			assert.False(t, seen[key], "duplicate slot %s (seed %d)", key, seed)
			seen[key] = true

			assert.False(t, isWeekend(s.Date), "weekend slot %s", key)
			assert.False(t, q.IsExcluded(s.Date), "excluded slot %s", key)
			assert.False(t, s.Date.Before(q.StartDate), "slot %s before range", key)
			assert.False(t, s.Date.After(q.EndDate), "slot %s after range", key)
			assert.GreaterOrEqual(t, s.Time, q.StartTime, "slot %s before window", key)
			assert.LessOrEqual(t, s.Time, latest, "slot %s ends after window", key)
			assert.Contains(t, []int{0, 15, 30, 45}, s.Time.Minute())
		}
	}
}

func TestGenerate_DefaultGeneratorIsSafeForConcurrentUse(t *testing.T) {
	g := NewGenerator()
	q := mustNormalize(t, anyQuery())

	done := make(chan []Slot, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- g.Generate(q) }()
	}
	for i := 0; i < 8; i++ {
		slots := <-done
		assert.LessOrEqual(t, len(slots), DefaultMaxSlots)
	}
}

func TestGenerate_EmptyResults(t *testing.T) {
	g := NewGenerator(WithRand(constRand(0)))

	tests := []struct {
		name string
		raw  PartialQuery
	}{
		{
			name: "every weekday excluded",
			raw: PartialQuery{
				StartDate:     "14/07/2025",
				EndDate:       "18/07/2025",
				ExcludedDates: "14/07/2025;15/07/2025;16/07/2025;17/07/2025;18/07/2025",
			},
		},
		{
			name: "weekend only",
			raw:  PartialQuery{StartDate: "19/07/2025", EndDate: "20/07/2025"},
		},
		{
			name: "window outside business hours",
			raw:  PartialQuery{StartTime: "19:00", EndTime: "21:00"},
		},
		{
			name: "window shorter than an appointment",
			raw:  PartialQuery{StartTime: "09:00", EndTime: "09:20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := g.Generate(mustNormalize(t, tt.raw))
			assert.NotNil(t, slots)
			assert.Empty(t, slots)
		})
	}
}

func TestGenerate_ClampsToBusinessHours(t *testing.T) {
	q := mustNormalize(t, PartialQuery{
		StartDate: "14/07/2025",
		EndDate:   "14/07/2025",
		StartTime: "06:00",
		EndTime:   "20:00",
	})

	earliest := NewGenerator(WithRand(constRand(0))).Generate(q)
	require.Len(t, earliest, 1)
	assert.Equal(t, "14/07/2025 ; 08:00", earliest[0].String())

	latest := NewGenerator(WithRand(constRand(100))).Generate(q)
	require.Len(t, latest, 1)
	assert.Equal(t, "14/07/2025 ; 17:45", latest[0].String())
}

func TestGenerate_BackfillSkipsWindowUnlessStrict(t *testing.T) {
	raw := PartialQuery{
		StartDate: "14/07/2025",
		EndDate:   "18/07/2025",
		StartTime: "09:00",
		EndTime:   "10:00",
	}
	// Primary pass: Monday draws 09:00, the rest draw 09:45 which ends
	// after the window. Backfill draws 09:45 for Tuesday to Friday.
	script := []int{0, 0, 0, 3, 0, 3, 0, 3, 0, 3, 0, 3, 0, 3, 0, 3, 0, 3}

	loose := NewGenerator(WithRand(&seqRand{vals: script})).Generate(mustNormalize(t, raw))
	assert.Equal(t, []string{
		"14/07/2025 ; 09:00",
		"15/07/2025 ; 09:45",
		"16/07/2025 ; 09:45",
		"17/07/2025 ; 09:45",
		"18/07/2025 ; 09:45",
	}, slotStrings(loose))

	strict := NewGenerator(WithRand(&seqRand{vals: script}), WithStrictBackfill()).Generate(mustNormalize(t, raw))
	assert.Equal(t, []string{"14/07/2025 ; 09:00"}, slotStrings(strict))
}

func TestGenerate_BackfillDeduplicates(t *testing.T) {
	raw := PartialQuery{
		StartDate: "14/07/2025",
		EndDate:   "15/07/2025",
		StartTime: "09:00",
		EndTime:   "17:00",
	}
	g := NewGenerator(WithRand(constRand(0)))

	slots := g.Generate(mustNormalize(t, raw))
	assert.Equal(t, []string{"14/07/2025 ; 09:00", "15/07/2025 ; 09:00"}, slotStrings(slots))
}

func TestGenerate_AttemptsIncludeExcludedDays(t *testing.T) {
	start := date(14, 7, 2025)
	var excluded []string
	for i := 0; i < 49; i++ {
		excluded = append(excluded, start.AddDate(0, 0, i).Format(DateLayout))
	}
	q := mustNormalize(t, PartialQuery{
		StartDate:     "14/07/2025",
		EndDate:       "31/12/2025",
		ExcludedDates: strings.Join(excluded, ";"),
	})

	slots := NewGenerator(WithRand(constRand(0))).Generate(q)
	assert.Equal(t, []string{"01/09/2025 ; 09:00"}, slotStrings(slots))
}

func TestGenerate_MaxSlotsOption(t *testing.T) {
	g := NewGenerator(WithRand(constRand(0)), WithMaxSlots(3))
	assert.Equal(t, 3, g.MaxSlots())

	slots := g.Generate(mustNormalize(t, anyQuery()))
	assert.Len(t, slots, 3)

	assert.Equal(t, DefaultMaxSlots, NewGenerator(WithMaxSlots(0)).MaxSlots())
}

package appointments

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxSlots is the number of slots a single search aims to produce.
	DefaultMaxSlots = 10
	// maxAttempts bounds the primary date walk.
	maxAttempts = 50

	businessOpenHour  = 8
	businessCloseHour = 18

	fallbackOpenHour  = 9
	fallbackCloseHour = 17
)

var slotMinutes = [...]int{0, 15, 30, 45}

// Rand is the random source used to draw slot times. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Generator produces synthetic appointment slots for a resolved query.
type Generator struct {
	rng            Rand
	maxSlots       int
	strictBackfill bool
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMaxSlots overrides how many slots a search may return.
func WithMaxSlots(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxSlots = n
		}
	}
}

// WithStrictBackfill applies the requested daily window to backfilled slots
// too. By default backfill only honours weekdays and exclusions.
func WithStrictBackfill() GeneratorOption {
	return func(g *Generator) {
		g.strictBackfill = true
	}
}

// WithRand sets the random source. The default source is safe for
// concurrent use; a supplied source must be as well if the Generator is
// shared.
func WithRand(rng Rand) GeneratorOption {
	return func(g *Generator) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// NewGenerator builds a Generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng:      globalRand{},
		maxSlots: DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxSlots returns the configured slot quota.
func (g *Generator) MaxSlots() int {
	return g.maxSlots
}

// Generate returns up to MaxSlots unique slots in generation order. An
// empty result is not an error.
func (g *Generator) Generate(q Query) []Slot {
	openHour, closeHour := businessWindow(q.StartTime, q.EndTime)
	latestStart := q.EndTime - ClockTime(AppointmentDuration/time.Minute)

	inWindow := func(t ClockTime) bool {
		return q.StartTime <= t && t <= latestStart
	}

	slots := make([]Slot, 0, g.maxSlots)
	seen := make(map[string]struct{}, g.maxSlots)
	add := func(s Slot) {
		key := s.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		slots = append(slots, s)
	}

	day := q.StartDate
	for attempts := 0; len(slots) < g.maxSlots && !day.After(q.EndDate) && attempts < maxAttempts; attempts++ {
		if q.IsExcluded(day) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		if !isWeekend(day) {
			t := g.draw(openHour, closeHour)
			if inWindow(t) {
				add(Slot{Date: day, Time: t})
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	if n := len(slots); n > 0 && n < g.maxSlots {
		for i := 0; i < g.maxSlots-n; i++ {
			extra := q.StartDate.AddDate(0, 0, i+1)
			if q.IsExcluded(extra) || isWeekend(extra) || extra.After(q.EndDate) {
				continue
			}
			t := g.draw(openHour, closeHour)
			if g.strictBackfill && !inWindow(t) {
				continue
			}
			add(Slot{Date: extra, Time: t})
		}
	}

	if len(slots) > g.maxSlots {
		slots = slots[:g.maxSlots]
	}
	return slots
}

func (g *Generator) draw(openHour, closeHour int) ClockTime {
	hour := openHour + g.rng.IntN(closeHour-openHour)
	minute := slotMinutes[g.rng.IntN(len(slotMinutes))]
	return NewClockTime(hour, minute)
}

// businessWindow clamps the requested hours to business hours. A request
// that does not overlap business hours falls back to the default window.
func businessWindow(start, end ClockTime) (int, int) {
	open := max(start.Hour(), businessOpenHour)
	closing := min(end.Hour(), businessCloseHour)
	if open >= closing {
		return fallbackOpenHour, fallbackCloseHour
	}
	return open, closing
}

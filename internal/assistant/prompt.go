package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/appointment-assistant/internal/appointments"
)

const systemPromptTemplate = `You are a medical appointment booking assistant. Your job is to:

1. Extract appointment preferences from the user's natural language and query available slots
2. When appointment options are available, help users select one
3. Present results clearly and handle the conversation flow
4. Handle preference changes and negotiation; users can modify their requirements

Current date: %s
Current time: %s

CRITICAL RULES:
- You can ONLY book appointments that are in the currently available slots list
- Never suggest or book appointment times that are not in the available options
- Always use the EXACT slot string format when selecting appointments
- If no suitable slots are available, suggest querying for different criteria
- Always show the earliest %d available appointment slots from all the available slots. Don't show any more. Once the user updates their preference, use the available slots to find the best matches.

IMPORTANT FORMAT REQUIREMENTS:
- Dates: dd/mm/yyyy format (e.g., 15/07/2025)
- Times: HH:MM format in 24-hour time (e.g., 14:30 for 2:30 PM)
- Use "any" for unspecified preferences

Date conversion examples:
- "tomorrow" → calculate and use dd/mm/yyyy
- "next Tuesday" → find next Tuesday's date in dd/mm/yyyy
- "this week" → use current date to end of week
- "afternoon" → 12:00 to 17:00
- "morning" → 09:00 to 12:00

When the user mentions appointment needs, extract preferences and call query_available_appointments.
When the user is choosing from presented options, call select_appointment_slot with the EXACT slot string.
When the user changes search preferences, query new appointments with updated criteria.`

// buildSystemPrompt renders the deciding-call instructions for now and the
// active offer.
func buildSystemPrompt(now time.Time, offer appointments.Offer, displaySlots int) string {
	var b strings.Builder
	fmt.Fprintf(&b, systemPromptTemplate,
		now.Format(appointments.DateLayout),
		now.Format(appointments.TimeLayout),
		displaySlots,
	)
	if len(offer) > 0 {
		b.WriteString("\n\nCurrently available appointment options:\n")
		b.WriteString(offer.Numbered())
		b.WriteString("\nIMPORTANT: You can ONLY select from these exact slots listed above. Do not suggest or select any other appointment times.")
		b.WriteString("\nIf the user is selecting from these options, use the select_appointment_slot function with the EXACT slot string.")
	}
	return b.String()
}

// summarizeSearch is the reply used when the follow-up call returns no text.
func summarizeSearch(result appointments.SearchResult, displaySlots int) string {
	if !result.Success {
		return result.Error
	}
	if len(result.AvailableSlots) == 0 {
		return result.Message
	}
	shown := earliestFirst(result.AvailableSlots)
	if displaySlots > 0 && len(shown) > displaySlots {
		shown = shown[:displaySlots]
	}
	var b strings.Builder
	b.WriteString("Here are the earliest available appointments:\n")
	for i, s := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("Would any of these work for you?")
	return b.String()
}

// earliestFirst returns a chronologically sorted copy. Backfilled slots can
// precede primary ones, so generation order is not date order.
func earliestFirst(slots []string) []string {
	out := make([]string, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := appointments.ParseSlot(out[i])
		b, errB := appointments.ParseSlot(out[j])
		if errA != nil || errB != nil {
			return errA == nil && errB != nil
		}
		return a.At().Before(b.At())
	})
	return out
}

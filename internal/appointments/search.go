package appointments

import (
	"errors"
	"fmt"
)

const anyProviderLabel = "Any doctor"

// SearchCriteria echoes the resolved query back to the caller.
type SearchCriteria struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Provider      string   `json:"preferred_doctor"`
	ExcludedDates []string `json:"excluded_dates"`
}

// SearchResult is the structured result of an availability search. It is
// what the query tool returns to the LLM and the HTTP tool endpoint.
type SearchResult struct {
	Success        bool            `json:"success"`
	AvailableSlots []string        `json:"available_slots"`
	TotalSlots     int             `json:"total_slots"`
	SearchCriteria *SearchCriteria `json:"search_criteria,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Finder runs the normalize-then-generate pipeline.
type Finder struct {
	normalizer *Normalizer
	generator  *Generator
}

// NewFinder wires a Finder.
func NewFinder(normalizer *Normalizer, generator *Generator) *Finder {
	if normalizer == nil {
		normalizer = NewNormalizer(nil, nil)
	}
	if generator == nil {
		generator = NewGenerator()
	}
	return &Finder{normalizer: normalizer, generator: generator}
}

// Normalizer exposes the finder's clock and timezone.
func (f *Finder) Normalizer() *Normalizer {
	return f.normalizer
}

// Search resolves extracted over stored preferences and generates slots.
// On a FormatError the returned offer is nil and the result carries the
// user-facing message; callers must keep their previous offer.
func (f *Finder) Search(extracted, stored PartialQuery) (SearchResult, Offer, error) {
	q, err := f.normalizer.Resolve(extracted, stored)
	if err != nil {
		var fe *FormatError
		msg := err.Error()
		if errors.As(err, &fe) {
			msg = fe.UserMessage()
		}
		return SearchResult{
			Success:        false,
			AvailableSlots: []string{},
			Error:          msg,
		}, nil, err
	}

	offer := NewOffer(f.generator.Generate(q))
	result := SearchResult{
		Success:        true,
		AvailableSlots: offer.Strings(),
		TotalSlots:     len(offer),
		SearchCriteria: criteriaFor(q),
	}
	switch {
	case len(offer) == 0:
		result.Message = "No appointments are available in your specified time range. Please try a different date or time."
	case q.Provider != "":
		result.Message = fmt.Sprintf("Found %d available appointment slots with Dr. %s", len(offer), q.Provider)
	default:
		result.Message = fmt.Sprintf("Found %d available appointment slots", len(offer))
	}
	return result, offer, nil
}

func criteriaFor(q Query) *SearchCriteria {
	c := &SearchCriteria{
		StartDate:     q.StartDate.Format(DateLayout),
		EndDate:       q.EndDate.Format(DateLayout),
		StartTime:     q.StartTime.String(),
		EndTime:       q.EndTime.String(),
		Provider:      q.Provider,
		ExcludedDates: make([]string, 0, len(q.Excluded)),
	}
	if c.Provider == "" {
		c.Provider = anyProviderLabel
	}
	for _, d := range q.Excluded {
		c.ExcludedDates = append(c.ExcludedDates, d.Format(DateLayout))
	}
	return c
}

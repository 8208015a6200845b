// Package booking confirms a validated appointment selection with the
// clinic's booking backend.
package booking

import (
	"context"
	"errors"
	"time"
)

// ErrEmptySlot is returned when a confirmation is requested without a slot.
var ErrEmptySlot = errors.New("booking: slot is required")

// Request describes the slot the patient chose.
type Request struct {
	ConversationID string
	// Slot is the canonical "dd/mm/yyyy ; HH:MM" string from the offer.
	Slot     string
	Provider string
}

// Result is returned by Confirm.
type Result struct {
	Booked    bool      `json:"booked"`
	Reference string    `json:"reference"`
	Slot      string    `json:"slot"`
	Message   string    `json:"message"`
	BookedAt  time.Time `json:"booked_at"`
}

// Confirmer books a selected slot. Real calendar integrations implement it;
// MockConfirmer stands in until one exists.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (Result, error)
}

package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

// MockConfirmer accepts every request and remembers what it booked.
type MockConfirmer struct {
	mu       sync.Mutex
	bookings map[string]Result
	logger   *logging.Logger
	now      func() time.Time
}

// NewMockConfirmer creates an in-memory confirmer.
func NewMockConfirmer(logger *logging.Logger) *MockConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &MockConfirmer{
		bookings: make(map[string]Result),
		logger:   logger,
		now:      time.Now,
	}
}

func (m *MockConfirmer) Confirm(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	slot := strings.TrimSpace(req.Slot)
	if slot == "" {
		return Result{}, ErrEmptySlot
	}

	res := Result{
		Booked:    true,
		Reference: "appt_" + uuid.NewString(),
		Slot:      slot,
		Message:   fmt.Sprintf("Appointment booked for %s", slot),
		BookedAt:  m.now().UTC(),
	}

	m.mu.Lock()
	m.bookings[res.Reference] = res
	m.mu.Unlock()

	m.logger.Info("mock booking confirmed",
		"conversation_id", req.ConversationID,
		"reference", res.Reference,
		"slot", slot,
	)
	return res, nil
}

// Lookup returns a previously confirmed booking.
func (m *MockConfirmer) Lookup(reference string) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.bookings[reference]
	return res, ok
}

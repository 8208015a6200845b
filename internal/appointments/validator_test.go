package appointments

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOffer = Offer{
	"14/07/2025 ; 09:00",
	"15/07/2025 ; 10:30",
	"16/07/2025 ; 14:45",
}

func TestValidate_AcceptsOfferedSlot(t *testing.T) {
	sel, err := Validate("15/07/2025 ; 10:30", testOffer)
	require.NoError(t, err)
	assert.Equal(t, "15/07/2025 ; 10:30", sel.Value)
	assert.Equal(t, date(15, 7, 2025), sel.Slot.Date)
	assert.Equal(t, NewClockTime(10, 30), sel.Slot.Time)
}

func TestValidate_RejectsNearMisses(t *testing.T) {
	for _, candidate := range []string{
		"",
		"15/07/2025;10:30",
		" 15/07/2025 ; 10:30",
		"15/07/2025 ; 10:30 ",
		"15/7/2025 ; 10:30",
		"15/07/2025 ; 10:31",
	} {
		t.Run(candidate, func(t *testing.T) {
			_, err := Validate(candidate, testOffer)
			require.Error(t, err)

			var invalid *InvalidSelectionError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, candidate, invalid.Selected)
			assert.Equal(t, []string(testOffer), invalid.Alternatives)
			assert.Contains(t, err.Error(), "Available options are: 14/07/2025 ; 09:00, 15/07/2025 ; 10:30, 16/07/2025 ; 14:45")
		})
	}
}

func TestValidate_NoActiveOffer(t *testing.T) {
	for _, offer := range []Offer{nil, {}} {
		_, err := Validate("14/07/2025 ; 09:00", offer)
		assert.ErrorIs(t, err, ErrNoActiveOffer)
	}
}

func TestValidate_AlternativesAreACopy(t *testing.T) {
	offer := Offer{"14/07/2025 ; 09:00"}
	_, err := Validate("nope", offer)

	var invalid *InvalidSelectionError
	require.True(t, errors.As(err, &invalid))
	invalid.Alternatives[0] = "changed"
	assert.Equal(t, "14/07/2025 ; 09:00", offer[0])
}

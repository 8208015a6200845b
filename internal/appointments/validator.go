package appointments

// Selection is a confirmed choice from the active offer.
type Selection struct {
	Value string // canonical slot string, identical to the offered entry
	Slot  Slot
}

// Validate checks candidate against the offer with exact string equality.
// No whitespace or format tolerance is applied.
func Validate(candidate string, offer Offer) (Selection, error) {
	if len(offer) == 0 {
		return Selection{}, ErrNoActiveOffer
	}
	if !offer.Contains(candidate) {
		return Selection{}, &InvalidSelectionError{
			Selected:     candidate,
			Alternatives: offer.Strings(),
		}
	}
	sel := Selection{Value: candidate}
	if slot, err := ParseSlot(candidate); err == nil {
		sel.Slot = slot
	}
	return sel, nil
}

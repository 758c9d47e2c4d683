package types

import "time"

// FillStatus tracks the verified fill state of one leg's order,
// polled from the exchange until it is fully filled or verification
// times out.
type FillStatus struct {
	OrderID      string
	TokenID      TokenId
	Outcome      string
	OriginalSize Volume
	SizeFilled   Volume
	ActualPrice  Price
	FullyFilled  bool
	Status       string
	VerifiedAt   time.Time
	Error        error
}

// RemainingSize is the portion of OriginalSize not yet matched.
func (f FillStatus) RemainingSize() Volume {
	if f.SizeFilled.Cmp(f.OriginalSize) >= 0 {
		return ZeroVolume
	}
	return f.OriginalSize.Sub(f.SizeFilled)
}

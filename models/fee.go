package models

import (
	"fmt"
	"strconv"
)

type FeeKind string

const (
	FeeFree FeeKind = "free"
	FeePaid FeeKind = "paid"
)

// EntryFee is either Free or Paid with an optional amount. A Paid fee with
// no amount means the price varies. Build values with FreeEntry and
// PaidEntry so a free fee never carries an amount.
type EntryFee struct {
	Kind   FeeKind  `json:"kind" bson:"kind"`
	Amount *float64 `json:"amount,omitempty" bson:"amount,omitempty"`
}

func FreeEntry() EntryFee {
	return EntryFee{Kind: FeeFree}
}

func PaidEntry(amount *float64) EntryFee {
	if amount == nil {
		return EntryFee{Kind: FeePaid}
	}
	a := *amount
	return EntryFee{Kind: FeePaid, Amount: &a}
}

func (f EntryFee) IsPaid() bool { return f.Kind == FeePaid }

func (f EntryFee) Varies() bool { return f.Kind == FeePaid && f.Amount == nil }

// AmountText renders the amount for a form input; empty when free or varies.
func (f EntryFee) AmountText() string {
	if f.Kind != FeePaid || f.Amount == nil {
		return ""
	}
	return strconv.FormatFloat(*f.Amount, 'f', -1, 64)
}

func (f EntryFee) String() string {
	switch {
	case f.Kind != FeePaid:
		return "Free"
	case f.Amount == nil:
		return "Paid (varies)"
	default:
		return fmt.Sprintf("Paid (%s)", f.AmountText())
	}
}

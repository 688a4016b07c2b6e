package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Ledger validates discount codes against temporal and usage rules by
// looking them up from a Repository.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Validate checks every code against "today" and returns the full discount
// records in input order. An empty or nil code list returns an empty slice
// without any lookup. Validation fails fast on the first offending code with
// an InvalidDiscountError; it does not aggregate failures.
func (l *Ledger) Validate(ctx context.Context, codes []string) ([]Discount, error) {
	if len(codes) == 0 {
		return []Discount{}, nil
	}

	today := dateOf(l.now())

	discounts := make([]Discount, 0, len(codes))
	for _, code := range codes {
		d, err := l.repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &InvalidDiscountError{Code: code, Reason: ReasonNotFound}
			}
			return nil, errors.Wrapf(err, "lookup discount %q", code)
		}

		switch {
		case today.After(dateOf(d.ValidUntil)):
			return nil, &InvalidDiscountError{Code: code, Reason: ReasonExpired}
		case today.Before(dateOf(d.ValidFrom)):
			return nil, &InvalidDiscountError{Code: code, Reason: ReasonNotYetValid}
		case d.RemainingUses <= 0:
			return nil, &InvalidDiscountError{Code: code, Reason: ReasonNoRemainingUses}
		}

		discounts = append(discounts, *d)
	}

	return discounts, nil
}

// dateOf truncates a timestamp to date granularity in UTC, making the
// validity window inclusive on both ends.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

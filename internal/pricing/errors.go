package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedCurrency is returned when the currency has no rate curve.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrUnsupportedTerm is returned when the curve has no tenor for the requested term.
	ErrUnsupportedTerm = errors.New("unsupported term")
	// ErrInvalidAmount is returned for NaN or infinite amounts.
	ErrInvalidAmount = errors.New("amount must be a finite number")
)

// PricingError carries the offending request values. Match with errors.Is against the sentinels.
type PricingError struct {
	Kind     error
	Currency string
	Years    int
}

func (e *PricingError) Error() string {
	switch e.Kind {
	case ErrUnsupportedCurrency:
		return fmt.Sprintf("%v: %q", e.Kind, e.Currency)
	case ErrUnsupportedTerm:
		return fmt.Sprintf("%v: %d years for %s", e.Kind, e.Years, e.Currency)
	default:
		return e.Kind.Error()
	}
}

// Unwrap returns the sentinel error kind.
func (e *PricingError) Unwrap() error {
	return e.Kind
}

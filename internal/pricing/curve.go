package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RateCurve maps a currency code to its market rates by term in years.
// Rates are stored in percent (3.012 means 3.012%).
type RateCurve map[string]map[int]decimal.Decimal

// CurvePoint is one tenor of a currency curve.
type CurvePoint struct {
	Years   int
	RatePct float64
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// referenceCurve is shared by every Pricer and never mutated after init.
var referenceCurve = RateCurve{
	"EUR": {
		1: pct("2.336"), 2: pct("2.457"), 3: pct("2.627"), 4: pct("2.823"), 5: pct("3.012"),
		6: pct("3.1735"), 7: pct("3.335"), 8: pct("3.463"), 9: pct("3.577"), 10: pct("3.692"),
		11: pct("3.8028"), 12: pct("3.9136"), 13: pct("4.0244"), 14: pct("4.1352"), 15: pct("4.246"),
	},
	"USD": {
		1: pct("4.215"), 2: pct("4.100"), 3: pct("4.127"), 4: pct("4.238"), 5: pct("4.382"),
		6: pct("4.5470"), 7: pct("4.717"), 8: pct("4.873"), 9: pct("5.010"), 10: pct("5.132"),
		11: pct("5.2410"), 12: pct("5.3500"), 13: pct("5.426667"), 14: pct("5.503333"), 15: pct("5.580"),
	},
}

// ReferenceCurve returns the production EUR/USD curve.
func ReferenceCurve() RateCurve {
	return referenceCurve
}

// Rate returns the market rate for (currency, years) as a decimal fraction.
func (rc RateCurve) Rate(currency string, years int) (decimal.Decimal, error) {
	tenors, ok := rc[currency]
	if !ok {
		return decimal.Zero, &PricingError{Kind: ErrUnsupportedCurrency, Currency: currency, Years: years}
	}
	r, ok := tenors[years]
	if !ok {
		return decimal.Zero, &PricingError{Kind: ErrUnsupportedTerm, Currency: currency, Years: years}
	}
	return r.Div(hundred), nil
}

// Currencies lists the supported currency codes in lexical order.
func (rc RateCurve) Currencies() []string {
	out := make([]string, 0, len(rc))
	for c := range rc {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Points returns the tenors of a currency sorted by term.
func (rc RateCurve) Points(currency string) ([]CurvePoint, error) {
	tenors, ok := rc[currency]
	if !ok {
		return nil, &PricingError{Kind: ErrUnsupportedCurrency, Currency: currency}
	}
	out := make([]CurvePoint, 0, len(tenors))
	for y, r := range tenors {
		out = append(out, CurvePoint{Years: y, RatePct: r.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Years < out[j].Years })
	return out, nil
}

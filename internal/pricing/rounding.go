package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingPolicy decides how the net annuity is rounded before it is returned.
// Changing the policy changes the published amounts, so it is fixed per deployment.
type RoundingPolicy string

const (
	// RoundNearest rounds to the nearest whole currency unit, ties to even.
	RoundNearest RoundingPolicy = "nearest"
	// RoundCent rounds to the nearest cent, ties to even.
	RoundCent RoundingPolicy = "cent"
	// RoundCeilThousand rounds up to the next multiple of 1000.
	RoundCeilThousand RoundingPolicy = "ceil_thousand"
)

// ParseRoundingPolicy maps a config value to a policy. Empty selects RoundNearest.
func ParseRoundingPolicy(s string) (RoundingPolicy, error) {
	switch p := RoundingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RoundNearest, nil
	case RoundNearest, RoundCent, RoundCeilThousand:
		return p, nil
	default:
		return "", fmt.Errorf("unknown rounding policy %q", s)
	}
}

// Apply rounds d according to the policy.
func (p RoundingPolicy) Apply(d decimal.Decimal) decimal.Decimal {
	switch p {
	case RoundCent:
		return d.RoundBank(2)
	case RoundCeilThousand:
		return d.RoundCeil(-3)
	default:
		return d.RoundBank(0)
	}
}

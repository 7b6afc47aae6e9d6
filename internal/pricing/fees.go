package pricing

import "github.com/shopspring/decimal"

// Tier breakpoints in currency units. Lower bound inclusive, upper bound exclusive.
var (
	tierBreakLow  = decimal.NewFromInt(10_000_000)
	tierBreakHigh = decimal.NewFromInt(15_000_000)
)

// DefaultCustodyRate is the reference custody fee (0.10%).
var DefaultCustodyRate = decimal.RequireFromString("0.0010")

// tierTable holds the rate for amounts <10M, <15M and >=15M.
type tierTable [3]decimal.Decimal

func (t tierTable) at(amount decimal.Decimal) decimal.Decimal {
	switch {
	case amount.LessThan(tierBreakLow):
		return t[0]
	case amount.LessThan(tierBreakHigh):
		return t[1]
	default:
		return t[2]
	}
}

func rates(a, b, c string) tierTable {
	return tierTable{decimal.RequireFromString(a), decimal.RequireFromString(b), decimal.RequireFromString(c)}
}

var (
	retrocessionTiers      = rates("0.0021", "0.0018", "0.0015")
	managementWithRetro    = rates("0.0049", "0.0042", "0.0035")
	managementWithoutRetro = rates("0.0060", "0.0050", "0.0040")
)

// RetrocessionRate returns the retrocession rate for amount, or zero when retrocession is excluded.
func RetrocessionRate(amount decimal.Decimal, includeRetro bool) decimal.Decimal {
	if !includeRetro {
		return decimal.Zero
	}
	return retrocessionTiers.at(amount)
}

// ManagementRate returns the management fee rate. The with-retrocession table already
// reflects the retrocession economics, so the two tables never mix.
func ManagementRate(amount decimal.Decimal, includeRetro bool) decimal.Decimal {
	if includeRetro {
		return managementWithRetro.at(amount)
	}
	return managementWithoutRetro.at(amount)
}

// ContractFeeRate clamps a caller supplied contract fee to be non-negative.
func ContractFeeRate(fee decimal.Decimal) decimal.Decimal {
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

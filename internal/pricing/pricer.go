// Package pricing computes the projected yearly payout of a lump-sum bond investment
// after management, custody and contract fees.
//
// The engine is a pure function over constant tables: a Pricer holds no mutable state
// and may be shared by any number of goroutines.
package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Rates are published with 6 decimal places.
const ratePlaces = 6

var one = decimal.NewFromInt(1)

// Config selects the deployment-specific constants of the engine.
type Config struct {
	CustodyRate decimal.Decimal
	Rounding    RoundingPolicy
}

// Request is a single pricing query. Currency and Years must exist in the rate curve.
type Request struct {
	Amount              float64
	Currency            string
	Years               int
	IncludeRetrocession bool
	ExtraContractFee    float64
}

// Result is the fee breakdown and net annuity. All rates are decimal fractions.
// RetrocessionRate is informational and is not part of TotalFeeRate.
type Result struct {
	AnnualAnnuity    float64
	MarketRate       float64
	ManagementRate   float64
	RetrocessionRate float64
	CustodyRate      float64
	ContractFee      float64
	TotalFeeRate     float64
}

// Pricer prices annuities against a rate curve.
type Pricer struct {
	curve    RateCurve
	custody  decimal.Decimal
	rounding RoundingPolicy
}

// New validates cfg and returns a Pricer over the reference curve.
func New(cfg Config) (*Pricer, error) {
	return NewWithCurve(ReferenceCurve(), cfg)
}

// NewWithCurve is New with an explicit rate curve.
func NewWithCurve(curve RateCurve, cfg Config) (*Pricer, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("rate curve is empty")
	}
	if cfg.CustodyRate.IsNegative() || cfg.CustodyRate.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("custody rate %s out of range [0, 1)", cfg.CustodyRate)
	}
	rounding, err := ParseRoundingPolicy(string(cfg.Rounding))
	if err != nil {
		return nil, err
	}
	return &Pricer{curve: curve, custody: cfg.CustodyRate, rounding: rounding}, nil
}

// Default returns a Pricer with the reference custody rate and nearest-unit rounding.
func Default() *Pricer {
	return &Pricer{curve: referenceCurve, custody: DefaultCustodyRate, rounding: RoundNearest}
}

// Rounding reports the configured rounding policy.
func (p *Pricer) Rounding() RoundingPolicy { return p.rounding }

// Currencies lists the currencies the curve supports.
func (p *Pricer) Currencies() []string { return p.curve.Currencies() }

// Curve returns the tenor points for currency.
func (p *Pricer) Curve(currency string) ([]CurvePoint, error) { return p.curve.Points(currency) }

// Price computes the net annuity:
//
//	annuity = amount * rate(currency, years) * (1 - (management + custody + contract))
//
// The total fee is not capped; callers bound the contract fee.
func (p *Pricer) Price(req Request) (Result, error) {
	rate, err := p.curve.Rate(req.Currency, req.Years)
	if err != nil {
		return Result{}, err
	}
	if !finite(req.Amount) {
		return Result{}, &PricingError{Kind: ErrInvalidAmount, Currency: req.Currency, Years: req.Years}
	}

	amount := decimal.NewFromFloat(req.Amount)
	contract := decimal.Zero
	if finite(req.ExtraContractFee) {
		contract = ContractFeeRate(decimal.NewFromFloat(req.ExtraContractFee))
	}

	retro := RetrocessionRate(amount, req.IncludeRetrocession)
	management := ManagementRate(amount, req.IncludeRetrocession)
	total := management.Add(p.custody).Add(contract)

	net := amount.Mul(rate).Mul(one.Sub(total))

	return Result{
		AnnualAnnuity:    p.rounding.Apply(net).InexactFloat64(),
		MarketRate:       rate.Round(ratePlaces).InexactFloat64(),
		ManagementRate:   management.Round(ratePlaces).InexactFloat64(),
		RetrocessionRate: retro.Round(ratePlaces).InexactFloat64(),
		CustodyRate:      p.custody.Round(ratePlaces).InexactFloat64(),
		ContractFee:      contract.Round(ratePlaces).InexactFloat64(),
		TotalFeeRate:     total.Round(ratePlaces).InexactFloat64(),
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

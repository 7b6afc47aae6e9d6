package service

import "AnnuityPricer/internal/pricing"

// Quoter prices validated annuity requests.
type Quoter interface {
	Price(req pricing.Request) (pricing.Result, error)
	Curve(currency string) ([]pricing.CurvePoint, error)
}

package usecase

import (
	"errors"
	"fmt"
	"time"

	domrepo "AnnuityPricer/internal/domain/repository"
	"AnnuityPricer/internal/domain/service"
	"AnnuityPricer/internal/pricing"
	applogger "AnnuityPricer/pkg/logger"
)

// QuoteService runs the pricing engine and records what was quoted.
type QuoteService struct {
	quoter  service.Quoter
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewQuoteService(q service.Quoter, metrics domrepo.Metrics, l *applogger.Logger) *QuoteService {
	return &QuoteService{quoter: q, metrics: metrics, l: l}
}

// Quote prices req. Engine errors are returned unchanged so callers can
// match them with errors.Is.
func (s *QuoteService) Quote(req pricing.Request) (pricing.Result, error) {
	start := time.Now()
	res, err := s.quoter.Price(req)
	s.metrics.RecordLatency("quote", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(errorKind(err))
		s.l.Debug("quote rejected",
			applogger.String("devise", req.Currency),
			applogger.Int("duree", req.Years),
			applogger.Error(err))
		return pricing.Result{}, err
	}
	s.metrics.RecordQuote(req.Currency, req.IncludeRetrocession)
	s.l.Debug("quote computed",
		applogger.String("devise", req.Currency),
		applogger.Int("duree", req.Years),
		applogger.Bool("retro", req.IncludeRetrocession),
		applogger.Float64("rente", res.AnnualAnnuity))
	return res, nil
}

// Curve returns the market rate points of currency.
func (s *QuoteService) Curve(currency string) ([]pricing.CurvePoint, error) {
	pts, err := s.quoter.Curve(currency)
	if err != nil {
		s.metrics.RecordError(errorKind(err))
		return nil, fmt.Errorf("curve: %w", err)
	}
	return pts, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, pricing.ErrUnsupportedCurrency):
		return "quote_unsupported_currency"
	case errors.Is(err, pricing.ErrUnsupportedTerm):
		return "quote_unsupported_term"
	case errors.Is(err, pricing.ErrInvalidAmount):
		return "quote_invalid_amount"
	default:
		return "quote"
	}
}

package pricing

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceEURWithRetrocession(t *testing.T) {
	res, err := Default().Price(Request{
		Amount:              5_000_000,
		Currency:            "EUR",
		Years:               5,
		IncludeRetrocession: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MarketRate != 0.03012 {
		t.Fatalf("market rate = %v, want 0.03012", res.MarketRate)
	}
	if res.ManagementRate != 0.0049 {
		t.Fatalf("management = %v, want 0.0049", res.ManagementRate)
	}
	if res.RetrocessionRate != 0.0021 {
		t.Fatalf("retro = %v, want 0.0021", res.RetrocessionRate)
	}
	if res.CustodyRate != 0.001 {
		t.Fatalf("custody = %v, want 0.001", res.CustodyRate)
	}
	if res.TotalFeeRate != 0.0059 {
		t.Fatalf("total = %v, want 0.0059", res.TotalFeeRate)
	}
	// 5,000,000 * 0.03012 * 0.9941 = 149,711.46
	if res.AnnualAnnuity != 149711 {
		t.Fatalf("annuity = %v, want 149711", res.AnnualAnnuity)
	}
}

func TestPriceEURWithoutRetrocession(t *testing.T) {
	res, err := Default().Price(Request{
		Amount:   5_000_000,
		Currency: "EUR",
		Years:    5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ManagementRate != 0.006 {
		t.Fatalf("management = %v, want 0.006", res.ManagementRate)
	}
	if res.RetrocessionRate != 0 {
		t.Fatalf("retro = %v, want 0", res.RetrocessionRate)
	}
	if res.TotalFeeRate != 0.007 {
		t.Fatalf("total = %v, want 0.007", res.TotalFeeRate)
	}
	// 5,000,000 * 0.03012 * 0.993 = 149,545.8
	if res.AnnualAnnuity != 149546 {
		t.Fatalf("annuity = %v, want 149546", res.AnnualAnnuity)
	}
}

func TestPriceUnsupportedCurrency(t *testing.T) {
	_, err := Default().Price(Request{Amount: 1_000_000, Currency: "GBP", Years: 5})
	if !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
	var perr *PricingError
	if !errors.As(err, &perr) || perr.Currency != "GBP" {
		t.Fatalf("expected PricingError for GBP, got %#v", err)
	}
}

func TestPriceUnsupportedTerm(t *testing.T) {
	for _, years := range []int{0, -1, 16, 20} {
		_, err := Default().Price(Request{Amount: 1_000_000, Currency: "USD", Years: years})
		if !errors.Is(err, ErrUnsupportedTerm) {
			t.Fatalf("years=%d: expected ErrUnsupportedTerm, got %v", years, err)
		}
	}
}

func TestPriceCurrencyIsCaseSensitive(t *testing.T) {
	if _, err := Default().Price(Request{Amount: 1, Currency: "eur", Years: 1}); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestPriceRejectsNonFiniteAmount(t *testing.T) {
	_, err := Default().Price(Request{Amount: math.Inf(1), Currency: "EUR", Years: 1})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPriceTierBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		retro      bool
		management float64
		retroRate  float64
	}{
		{"below 10M with retro", 9_999_999.99, true, 0.0049, 0.0021},
		{"10M with retro", 10_000_000, true, 0.0042, 0.0018},
		{"below 15M with retro", 14_999_999, true, 0.0042, 0.0018},
		{"15M with retro", 15_000_000, true, 0.0035, 0.0015},
		{"above 15M with retro", 80_000_000, true, 0.0035, 0.0015},
		{"below 10M without retro", 1_000, false, 0.006, 0},
		{"10M without retro", 10_000_000, false, 0.005, 0},
		{"15M without retro", 15_000_000, false, 0.004, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Default().Price(Request{
				Amount:              tt.amount,
				Currency:            "EUR",
				Years:               10,
				IncludeRetrocession: tt.retro,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.ManagementRate != tt.management {
				t.Fatalf("management = %v, want %v", res.ManagementRate, tt.management)
			}
			if res.RetrocessionRate != tt.retroRate {
				t.Fatalf("retro = %v, want %v", res.RetrocessionRate, tt.retroRate)
			}
		})
	}
}

func TestPriceTotalNeverIncludesRetrocession(t *testing.T) {
	p := Default()
	for _, amount := range []float64{500_000, 10_000_000, 12_500_000, 15_000_000, 40_000_000} {
		for _, retro := range []bool{true, false} {
			res, err := p.Price(Request{
				Amount:              amount,
				Currency:            "USD",
				Years:               7,
				IncludeRetrocession: retro,
				ExtraContractFee:    0.001,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := decimal.NewFromFloat(res.ManagementRate).
				Add(decimal.NewFromFloat(res.CustodyRate)).
				Add(decimal.NewFromFloat(res.ContractFee))
			if !want.Equal(decimal.NewFromFloat(res.TotalFeeRate)) {
				t.Fatalf("amount=%v retro=%v: total %v != management+custody+contract %v",
					amount, retro, res.TotalFeeRate, want)
			}
		}
	}
}

func TestPriceClampsNegativeContractFee(t *testing.T) {
	p := Default()
	clamped, err := p.Price(Request{Amount: 2_000_000, Currency: "EUR", Years: 3, ExtraContractFee: -0.01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	zero, _ := p.Price(Request{Amount: 2_000_000, Currency: "EUR", Years: 3})
	if clamped != zero {
		t.Fatalf("negative contract fee not clamped: %+v vs %+v", clamped, zero)
	}
	if clamped.ContractFee != 0 {
		t.Fatalf("contract fee = %v, want 0", clamped.ContractFee)
	}
}

func TestPriceContractFeeReducesAnnuity(t *testing.T) {
	res, err := Default().Price(Request{
		Amount:           5_000_000,
		Currency:         "EUR",
		Years:            5,
		ExtraContractFee: 0.001,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalFeeRate != 0.008 {
		t.Fatalf("total = %v, want 0.008", res.TotalFeeRate)
	}
	// 150,600 * 0.992 = 149,395.2
	if res.AnnualAnnuity != 149395 {
		t.Fatalf("annuity = %v, want 149395", res.AnnualAnnuity)
	}
}

func TestPriceDeterministicForAllTenors(t *testing.T) {
	p := Default()
	for _, ccy := range p.Currencies() {
		for years := 1; years <= 15; years++ {
			req := Request{Amount: 7_250_000, Currency: ccy, Years: years, IncludeRetrocession: years%2 == 0}
			a, err := p.Price(req)
			if err != nil {
				t.Fatalf("%s/%d: unexpected error: %v", ccy, years, err)
			}
			b, _ := p.Price(req)
			if a != b {
				t.Fatalf("%s/%d: results differ: %+v vs %+v", ccy, years, a, b)
			}
			if a.AnnualAnnuity <= 0 {
				t.Fatalf("%s/%d: expected positive annuity, got %v", ccy, years, a.AnnualAnnuity)
			}
		}
	}
}

func TestPriceConcurrentCallers(t *testing.T) {
	p := Default()
	want, _ := p.Price(Request{Amount: 3_000_000, Currency: "USD", Years: 12, IncludeRetrocession: true})

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Price(Request{Amount: 3_000_000, Currency: "USD", Years: 12, IncludeRetrocession: true})
			if err != nil || got != want {
				errs <- "mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	if len(errs) > 0 {
		t.Fatalf("concurrent results diverged")
	}
}

func TestRoundingPolicies(t *testing.T) {
	// 5,000,000 * 0.03012 * 0.9941 = 149,711.46
	tests := []struct {
		policy RoundingPolicy
		want   float64
	}{
		{RoundNearest, 149711},
		{RoundCent, 149711.46},
		{RoundCeilThousand, 150000},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			p, err := New(Config{CustodyRate: DefaultCustodyRate, Rounding: tt.policy})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			res, err := p.Price(Request{Amount: 5_000_000, Currency: "EUR", Years: 5, IncludeRetrocession: true})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.AnnualAnnuity != tt.want {
				t.Fatalf("annuity = %v, want %v", res.AnnualAnnuity, tt.want)
			}
		})
	}
}

func TestCustodyRateIsConfigurable(t *testing.T) {
	p, err := New(Config{CustodyRate: decimal.RequireFromString("0.0005")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := p.Price(Request{Amount: 5_000_000, Currency: "EUR", Years: 5, IncludeRetrocession: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CustodyRate != 0.0005 || res.TotalFeeRate != 0.0054 {
		t.Fatalf("custody/total = %v/%v, want 0.0005/0.0054", res.CustodyRate, res.TotalFeeRate)
	}
	if p.Rounding() != RoundNearest {
		t.Fatalf("expected default rounding nearest, got %s", p.Rounding())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{CustodyRate: decimal.NewFromInt(-1)}); err == nil {
		t.Fatal("expected error for negative custody")
	}
	if _, err := New(Config{CustodyRate: decimal.NewFromInt(1)}); err == nil {
		t.Fatal("expected error for custody >= 1")
	}
	if _, err := New(Config{CustodyRate: DefaultCustodyRate, Rounding: "floor"}); err == nil {
		t.Fatal("expected error for unknown rounding policy")
	}
	if _, err := NewWithCurve(RateCurve{}, Config{}); err == nil {
		t.Fatal("expected error for empty curve")
	}
}

func TestCurvePoints(t *testing.T) {
	p := Default()
	if got := p.Currencies(); len(got) != 2 || got[0] != "EUR" || got[1] != "USD" {
		t.Fatalf("currencies = %v", got)
	}
	pts, err := p.Curve("USD")
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	if len(pts) != 15 {
		t.Fatalf("expected 15 tenors, got %d", len(pts))
	}
	for i, pt := range pts {
		if pt.Years != i+1 {
			t.Fatalf("tenors not sorted: %v", pts)
		}
	}
	if pts[0].RatePct != 4.215 || pts[14].RatePct != 5.58 {
		t.Fatalf("unexpected USD end points: %v / %v", pts[0], pts[14])
	}
	if _, err := p.Curve("JPY"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

package api

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"AnnuityPricer/internal/domain/models"
	"AnnuityPricer/internal/pricing"
	"AnnuityPricer/internal/service/ratelimit"
	"AnnuityPricer/internal/usecase"
	xhttp "AnnuityPricer/pkg/http"
	xlogger "AnnuityPricer/pkg/logger"

	"github.com/labstack/echo/v4"
)

//go:embed assets/stats.html
var statsHTML []byte

const maxCollectBody = 64 << 10

// HealthChecker reports whether the event store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// PricerEchoHandler serves the simulator API and the usage dashboard.
type PricerEchoHandler struct {
	logger   *xlogger.Logger
	quotes   *usecase.QuoteService
	recorder *usecase.EventRecorder
	export   *usecase.ExportService
	stats    *usecase.StatsService
	health   HealthChecker
	limiter  *ratelimit.Limiter
}

// NewPricerEchoHandler wires the usecases to HTTP. A nil limiter disables
// rate limiting on /collect.
func NewPricerEchoHandler(
	logger *xlogger.Logger,
	quotes *usecase.QuoteService,
	recorder *usecase.EventRecorder,
	export *usecase.ExportService,
	stats *usecase.StatsService,
	health HealthChecker,
	limiter *ratelimit.Limiter,
) *PricerEchoHandler {
	return &PricerEchoHandler{
		logger:   logger,
		quotes:   quotes,
		recorder: recorder,
		export:   export,
		stats:    stats,
		health:   health,
		limiter:  limiter,
	}
}

func (h *PricerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.POST("/compute", h.Compute)
	e.GET("/curve", h.Curve)
	e.POST("/collect", h.Collect)
	e.GET("/events.csv", h.EventsCSV)
	e.GET("/stats", h.Stats)
	e.GET("/stats.html", h.StatsHTML)
}

func (h *PricerEchoHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *PricerEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	err := h.health.Health(ctx)
	if err != nil {
		h.logger.Debug("store unhealthy", xlogger.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "db": err == nil})
}

func (h *PricerEchoHandler) Compute(c echo.Context) error {
	req := &models.ComputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.quotes.Quote(pricing.Request{
		Amount:              req.Amount,
		Currency:            strings.ToUpper(req.Currency),
		Years:               req.Years,
		IncludeRetrocession: strings.EqualFold(strings.TrimSpace(req.Retrocessions), "oui"),
		ExtraContractFee:    req.ContractFee,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, pricingAppError(err))
	}
	return c.JSON(http.StatusOK, models.ComputeResponse{
		AnnualAnnuity:    res.AnnualAnnuity,
		ManagementRate:   res.ManagementRate,
		RetrocessionRate: res.RetrocessionRate,
		CustodyRate:      res.CustodyRate,
		ContractFee:      res.ContractFee,
		TotalFeeRate:     res.TotalFeeRate,
	})
}

func (h *PricerEchoHandler) Curve(c echo.Context) error {
	req := &models.CurveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	currency := strings.ToUpper(req.Currency)
	pts, err := h.quotes.Curve(currency)
	if err != nil {
		return xhttp.AppErrorResponse(c, pricingAppError(err))
	}
	out := models.CurveResponse{Currency: currency, Points: make([]models.CurvePoint, 0, len(pts))}
	for _, p := range pts {
		out.Points = append(out.Points, models.CurvePoint{Years: p.Years, RatePct: p.RatePct})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return c.JSON(http.StatusOK, out)
}

// Collect always answers {"ok":true} once the request is accepted; storage
// failures are logged by the recorder.
func (h *PricerEchoHandler) Collect(c echo.Context) error {
	r := c.Request()
	ip := clientIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many events").WithParam("ip", ip))
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCollectBody))
	if err != nil {
		h.logger.Warn("collect body read failed", xlogger.Error(err))
		body = nil
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		ref = c.QueryParam("ref")
	}

	_, _ = h.recorder.Collect(r.Context(), usecase.CollectInput{
		Body: body,
		IP:   ip,
		UA:   r.UserAgent(),
		Ref:  ref,
	})
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *PricerEchoHandler) EventsCSV(c echo.Context) error {
	out, err := h.export.CSV(c.Request().Context())
	if err != nil {
		h.logger.Warn("serving empty export", xlogger.Error(err))
	}
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (h *PricerEchoHandler) Stats(c echo.Context) error {
	days := usecase.DefaultStatsDays
	if err := echo.QueryParamsBinder(c).Int("days", &days).BindError(); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_BIND",
			Field:   "days",
			Message: "days must be an integer",
		}})
	}
	return c.JSON(http.StatusOK, h.stats.Stats(c.Request().Context(), days))
}

func (h *PricerEchoHandler) StatsHTML(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(http.StatusOK, statsHTML)
}

func pricingAppError(err error) error {
	var pe *pricing.PricingError
	errors.As(err, &pe)
	param := func(e *xhttp.AppError) *xhttp.AppError {
		if pe != nil {
			e = e.WithParam("devise", pe.Currency).WithParam("duree", pe.Years)
		}
		return e.WithError(err)
	}
	switch {
	case errors.Is(err, pricing.ErrUnsupportedCurrency):
		return param(xhttp.NewAppError("ERR_UNSUPPORTED_CURRENCY", "devise", "currency is not supported", http.StatusBadRequest))
	case errors.Is(err, pricing.ErrUnsupportedTerm):
		return param(xhttp.NewAppError("ERR_UNSUPPORTED_TERM", "duree", "term is not available for this currency", http.StatusBadRequest))
	case errors.Is(err, pricing.ErrInvalidAmount):
		return param(xhttp.NewAppError("ERR_INVALID_AMOUNT", "montant_disponible", "amount must be a finite number", http.StatusBadRequest))
	default:
		return xhttp.InternalError("pricing failed").WithError(err)
	}
}

// clientIP prefers proxy headers in the order the CDN sets them.
func clientIP(r *http.Request) string {
	for _, name := range []string{"X-Forwarded-For", "CF-Connecting-IP", "X-Real-IP"} {
		if v := r.Header.Get(name); v != "" {
			if ip := strings.TrimSpace(strings.Split(v, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	applogger "AnnuityPricer/pkg/logger"
)

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSWildcardWithCredentialsEchoesOrigin(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}, AllowCredentials: true}))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := serve(e, http.MethodGet, "/", map[string]string{"Origin": "https://site.example"})
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://site.example" {
		t.Fatalf("allow-origin = %q", got)
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowCredentials) != "true" {
		t.Fatalf("credentials header missing")
	}

	pre := serve(e, http.MethodOptions, "/", map[string]string{"Origin": "https://site.example"})
	if pre.Code != http.StatusNoContent || pre.Header().Get(echo.HeaderAccessControlAllowMethods) != "GET, POST" {
		t.Fatalf("preflight: %d %v", pre.Code, pre.Header())
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://ok.example"}}))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := serve(e, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example"})
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("unknown origin must not be allowed")
	}
	pre := serve(e, http.MethodOptions, "/", map[string]string{"Origin": "https://evil.example"})
	if pre.Code != http.StatusForbidden {
		t.Fatalf("preflight code = %d", pre.Code)
	}
}

func TestRecoverReturns500AndLogs(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Recover(applogger.NewWriter(&buf)))
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })

	rec := serve(e, http.MethodGet, "/boom", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestMetricsLogsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Metrics(applogger.NewWriter(&buf), 0))
	e.GET("/fail", func(c echo.Context) error { return c.NoContent(http.StatusServiceUnavailable) })
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	serve(e, http.MethodGet, "/ok", nil)
	if buf.Len() != 0 {
		t.Fatalf("2xx should not log: %s", buf.String())
	}
	serve(e, http.MethodGet, "/fail", nil)
	if !strings.Contains(buf.String(), `"route":"/fail"`) {
		t.Fatalf("5xx not logged with route: %s", buf.String())
	}
}

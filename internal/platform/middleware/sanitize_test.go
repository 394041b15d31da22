package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func sanitizeOKHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func newSanitizeEcho() *echo.Echo {
	e := echo.New()
	e.Use(SanitizeWithLogger(zerolog.New(os.Stderr)))
	e.GET("/*", sanitizeOKHandler)
	e.POST("/*", sanitizeOKHandler)
	return e
}

func assertRejected(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body rejection
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Error != "validation" || body.Message == "" {
		t.Errorf("unexpected rejection body %+v", body)
	}
}

func TestSanitize_PathTraversal(t *testing.T) {
	for _, p := range []string{"/../../etc/passwd", "/%2e%2e/%2e%2e/etc/passwd", "/%252e%252e/etc/passwd"} {
		t.Run(p, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newSanitizeEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
			assertRejected(t, rec)
		})
	}
}

func TestSanitize_NullByte(t *testing.T) {
	for _, p := range []string{"/file%00.txt", "/test?name=foo%00bar"} {
		t.Run(p, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newSanitizeEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
			assertRejected(t, rec)
		})
	}
}

func TestSanitize_HeaderInjection(t *testing.T) {
	for _, v := range []string{"value\r\nInjected: header", "value\rinjected", "value\ninjected"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Custom", v)
		rec := httptest.NewRecorder()
		newSanitizeEcho().ServeHTTP(rec, req)
		assertRejected(t, rec)
	}
}

func TestSanitize_OversizedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Big", strings.Repeat("A", maxHeaderValueSize+1))
	rec := httptest.NewRecorder()
	newSanitizeEcho().ServeHTTP(rec, req)
	assertRejected(t, rec)
}

func TestSanitize_NormalRequests_PassThrough(t *testing.T) {
	e := newSanitizeEcho()
	paths := []string{
		"/api/v1/patients?status=hospitalized",
		"/api/v1/patients/7b0c2f0e-2b8a-4d51-9d1c-0c1b3f3e9a11/schedule?date=2024-03-01",
		"/api/v1/medications?patient_id=7b0c2f0e-2b8a-4d51-9d1c-0c1b3f3e9a11",
		"/health/storage",
	}
	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("path %s: expected 200, got %d", p, rec.Code)
		}
	}
}

func TestSanitize_QueryMustBeCleanText(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(SanitizeWithLogger(zerolog.New(&buf)))
	e.GET("/*", sanitizeOKHandler)

	values := []string{
		"<script>alert(1)</script>",
		"<b>critical</b>",
		"'; DROP TABLE patient;--",
		`Juan "Perro" & Ana`,
		"javascript:alert(1)",
		"onload=alert(1)",
	}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
			q := req.URL.Query()
			q.Set("status", v)
			req.URL.RawQuery = q.Encode()
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assertRejected(t, rec)
			if !bytes.Contains(buf.Bytes(), []byte("request rejected by sanitizer")) {
				t.Errorf("expected the rejection to be logged, got %q", buf.String())
			}
		})
	}
}

func TestSanitize_QueryKeyMustBeCleanText(t *testing.T) {
	rec := httptest.NewRecorder()
	newSanitizeEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test?%3Cb%3E=1", nil))
	assertRejected(t, rec)
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"null bytes", "hello\x00world", "helloworld"},
		{"control chars", "hello\x01world\x07test\x1Bend", "helloworldtestend"},
		{"keeps newline tab cr", "line1\nline2\ttab\rreturn", "line1\nline2\ttab\rreturn"},
		{"trims", "   hello world   ", "hello world"},
		{"empty", "", ""},
		{"only nulls", "\x00\x00", ""},
		{"unicode", "Dosis única: 2,5 mg/kg vía oral", "Dosis única: 2,5 mg/kg vía oral"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.in); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Paciente estable, come bien", "Paciente estable, come bien"},
		{"tags", "<b>Fiebre</b> controlada", "Fiebre controlada"},
		{"script", "<script>alert(1)</script>ok", "alert(1)ok"},
		{"quotes and ampersand", `Dueño "Juan" & 'Ana'`, "Dueño Juan  Ana"},
		{"stray brackets", "peso < 5 kg > 2 kg", "peso  2 kg"},
		{"whitespace", "  nota \x00 ", "nota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.in); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

package budget

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func TestHandler_CreateTransaction(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.admit(t)

	body := `{"type":"deposit","amount":"100000","description":"Abono en efectivo"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(staffCtx()), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.CreateTransaction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var tx Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tx.NewBalance.String() != "900000" {
		t.Errorf("expected new balance 900000, got %s", tx.NewBalance)
	}
}

func TestHandler_CreateTransaction_BadType(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.admit(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"gift","amount":"1","description":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.CreateTransaction(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetSummary(t *testing.T) {
	h, f, e := newTestHandler()
	p := f.admit(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.CurrentBudget.String() != "800000" || s.Transactions != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestHandler_ListTransactions_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.ListTransactions(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/config"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/budget"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/schedule"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		StorageBackend: config.BackendMemory,
		ProbeTimeout:   time.Second,
		RequestTimeout: 5 * time.Second,
		ClinicTimezone: "UTC",
		DefaultClinic:  "default",
		CORSOrigins:    []string{"http://localhost:3000"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func serve(e http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_Memory(t *testing.T) {
	a := newTestApp(t, testConfig())
	if a.backend != storage.Memory {
		t.Errorf("expected memory backend, got %s", a.backend)
	}
	if a.pool != nil || a.probe != nil {
		t.Error("memory backend must not keep a pool or probe")
	}
}

func TestNewApp_AutoWithoutDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = config.BackendAuto
	a := newTestApp(t, cfg)
	if a.backend != storage.Memory {
		t.Errorf("auto without DATABASE_URL should fall back to memory, got %s", a.backend)
	}
}

func TestNewApp_RemoteWithoutDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = config.BackendRemote
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected an error for remote storage without a database")
	}
}

func TestNewApp_BadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.ClinicTimezone = "Mars/Olympus_Mons"
	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected an error for an unknown time zone")
	}
}

func TestServer_Health(t *testing.T) {
	e := newServer(newTestApp(t, testConfig()))

	rec := serve(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["backend"] != "memory" {
		t.Errorf("expected memory backend, got %q", body["backend"])
	}

	rec = serve(e, http.MethodGet, "/health/storage", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /health/storage, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	e := newServer(newTestApp(t, testConfig()))
	serve(e, http.MethodGet, "/health", "")

	rec := serve(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, name := range []string{"http_requests_total", `storage_backend_info{backend="memory"} 1`} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestServer_JWTRequiredOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "a-shared-secret"
	e := newServer(newTestApp(t, cfg))

	if rec := serve(e, http.MethodGet, "/api/v1/patients", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", rec.Code)
	}
}

func TestServer_AdmitChargeAndSchedule(t *testing.T) {
	a := newTestApp(t, testConfig())
	e := newServer(a)

	rec := serve(e, http.MethodPost, "/api/v1/patients",
		`{"name":"Toby","species":"Canino","owner_name":"Laura","initial_budget":"300000"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p patient.Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode patient: %v", err)
	}

	rec = serve(e, http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/budget/transactions",
		`{"type":"charge","amount":"45000","description":"Hemograma"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("charge: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(e, http.MethodGet, "/api/v1/patients/"+p.ID.String()+"/budget", "")
	var summary budget.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.CurrentBudget.String() != "255000" {
		t.Errorf("expected balance 255000, got %s", summary.CurrentBudget)
	}

	rec = serve(e, http.MethodGet, "/api/v1/patients/"+p.ID.String()+"/schedule?date=2024-03-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: expected 200, got %d", rec.Code)
	}
	var day schedule.Day
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode day: %v", err)
	}
	if day.Date != "2024-03-01" || len(day.Entries) != 0 {
		t.Errorf("expected an empty schedule for 2024-03-01, got %+v", day)
	}
}

func TestSeedDemo(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := auth.WithUser(context.Background(), "seed", []string{auth.RoleAdmin})
	if err := seedDemo(ctx, a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids, err := a.admittedPatients(ctx)
	if err != nil {
		t.Fatalf("admitted patients: %v", err)
	}
	if len(ids) != len(demoPatients) {
		t.Fatalf("expected %d admitted patients, got %d", len(demoPatients), len(ids))
	}

	var out bytes.Buffer
	for _, id := range ids {
		day, err := a.schedule.DaySchedule(ctx, id, a.schedule.Today())
		if err != nil {
			t.Fatalf("day schedule: %v", err)
		}
		if len(day.Entries) == 0 {
			t.Errorf("expected doses for %s today", day.PatientName)
		}
		printDay(&out, day)
	}
	for _, want := range []string{"MEDICATION", "Luna", "Michi", "Buprenorfina"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("printed schedule missing %q", want)
		}
	}
}

func TestPrintDay(t *testing.T) {
	day := &schedule.Day{
		PatientName: "Kira",
		Date:        "2024-03-01",
		Entries: []schedule.Entry{{
			Slot:           schedule.Slot{ClockTime: "08:00", MedicationName: "Meloxicam", Dose: "0.1 mg/kg", Route: "sc"},
			Classification: schedule.Classification{Status: schedule.SlotOverdue, TimeDifferenceMinutes: 150},
		}},
		Totals: schedule.Totals{Slots: 1, Overdue: 1},
	}
	var out bytes.Buffer
	printDay(&out, day)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected summary, header and one row, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "Kira  2024-03-01  1 slots") {
		t.Errorf("unexpected summary line %q", lines[0])
	}
	if !strings.Contains(lines[2], "overdue") || !strings.Contains(lines[2], "150") {
		t.Errorf("unexpected row %q", lines[2])
	}
}

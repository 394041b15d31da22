//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/budget"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/kardex"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/schedule"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/db"
)

func TestMigrations_Idempotent(t *testing.T) {
	clinicID := createClinic(t, "mig")
	ctx := context.Background()
	migrator := db.NewMigrator(pool, db.Migrations)
	schema := db.SchemaName(clinicID)

	applied, err := migrator.Up(ctx, schema)
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected no pending migrations, applied %d", applied)
	}

	statuses, err := migrator.Status(ctx, schema)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %d %s not applied", s.Version, s.Name)
		}
	}
}

func TestPatientLifecycle(t *testing.T) {
	clinicID := createClinic(t, "pat")
	ctx := clinicCtx(t, clinicID)
	s := newStack()

	p := s.admit(t, ctx, "Luna", 250000)

	got, err := s.patients.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CurrentBudget.Equal(decimal.NewFromInt(250000)) || got.Status != patient.StatusHospitalized {
		t.Errorf("unexpected patient after admission: %+v", got)
	}

	got.Status = patient.StatusCritical
	got.Diagnosis = "Parvovirosis"
	if err := s.patients.UpdatePatient(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	critical, total, err := s.patients.ListPatients(ctx, patient.StatusCritical, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || critical[0].ID != p.ID {
		t.Errorf("expected Luna as the only critical patient, got %d", total)
	}

	discharged, err := s.patients.Discharge(ctx, p.ID, "Evolución favorable")
	if err != nil {
		t.Fatalf("discharge: %v", err)
	}
	if discharged.Status != patient.StatusDischarged || discharged.DischargedAt == nil {
		t.Errorf("unexpected discharged patient: %+v", discharged)
	}
	if _, err := s.patients.Discharge(ctx, p.ID, ""); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("expected a conflict on second discharge, got %v", err)
	}

	entries, _, err := s.kardex.List(ctx, p.ID, kardex.CategoryStatus, 0, 0)
	if err != nil {
		t.Fatalf("kardex: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected admission and discharge entries, got %d", len(entries))
	}
}

func TestBudget_CompareAndSwap(t *testing.T) {
	clinicID := createClinic(t, "cas")
	ctx := clinicCtx(t, clinicID)
	s := newStack()
	p := s.admit(t, ctx, "Kira", 100000)

	repo := patient.NewRepoPG(pool)
	err := repo.UpdateBudget(ctx, p.ID, decimal.NewFromInt(99999), decimal.NewFromInt(0))
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected a conflict for a stale balance, got %v", err)
	}

	tx, err := s.budget.ApplyTransaction(ctx, p.ID, budget.TypeDeposit, decimal.NewFromInt(50000), "Abono")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !tx.NewBalance.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("expected 150000 after deposit, got %s", tx.NewBalance)
	}
	if _, err := s.budget.ApplyTransaction(ctx, p.ID, budget.TypeAdjustment, decimal.NewFromInt(-20000), "Corrección"); err != nil {
		t.Fatalf("adjustment: %v", err)
	}

	summary, err := s.budget.GetSummary(ctx, p.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.CurrentBudget.Equal(decimal.NewFromInt(-20000)) || summary.Transactions != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestAdministration_ChargesConfiguredCost(t *testing.T) {
	clinicID := createClinic(t, "adm")
	ctx := clinicCtx(t, clinicID)
	s := newStack()
	p := s.admit(t, ctx, "Michi", 100000)
	m := s.prescribe(t, ctx, p.ID, "Buprenorfina", "Cada 8 horas")

	if err := s.medications.SetCost(ctx, &medication.Cost{MedicationID: m.ID, UnitCost: decimal.NewFromInt(15000)}); err != nil {
		t.Fatalf("set cost: %v", err)
	}
	if err := s.medications.SetCost(ctx, &medication.Cost{MedicationID: m.ID, UnitCost: decimal.NewFromInt(18000)}); err != nil {
		t.Fatalf("update cost: %v", err)
	}

	a := &medication.Administration{MedicationID: m.ID}
	if err := s.medications.RecordAdministration(ctx, a); err != nil {
		t.Fatalf("record: %v", err)
	}
	if a.Cost == nil || !a.Cost.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("expected the upserted unit cost on the administration, got %v", a.Cost)
	}

	got, err := s.patients.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if !got.CurrentBudget.Equal(decimal.NewFromInt(82000)) {
		t.Errorf("expected balance 82000, got %s", got.CurrentBudget)
	}

	txs, _, err := s.budget.ListTransactions(ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != budget.TypeCharge {
		t.Fatalf("expected one charge, got %+v", txs)
	}

	omitted := &medication.Administration{MedicationID: m.ID, Status: medication.OutcomeOmitted}
	if err := s.medications.RecordAdministration(ctx, omitted); err != nil {
		t.Fatalf("record omitted: %v", err)
	}
	if omitted.Cost != nil {
		t.Errorf("omitted dose must carry no cost, got %s", omitted.Cost)
	}

	from := time.Now().Add(-time.Hour)
	admins, total, err := s.medications.ListAdministrations(ctx, medication.AdministrationFilter{PatientID: p.ID, From: &from}, 10, 0)
	if err != nil {
		t.Fatalf("list administrations: %v", err)
	}
	if total != 2 || len(admins) != 2 {
		t.Errorf("expected 2 administrations in the last hour, got %d", total)
	}

	if err := s.medications.DeleteMedication(ctx, m.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("expected a conflict deleting a prescription with administrations, got %v", err)
	}
}

func TestSchedule_DayFromPostgres(t *testing.T) {
	clinicID := createClinic(t, "sch")
	ctx := clinicCtx(t, clinicID)
	s := newStack()
	p := s.admit(t, ctx, "Toby", 0)
	m := s.prescribe(t, ctx, p.ID, "Ampicilina", "Cada 8 horas")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	scheduled := today
	if err := s.medications.RecordAdministration(ctx, &medication.Administration{
		MedicationID:   m.ID,
		AdministeredAt: scheduled.Add(5 * time.Minute),
		ScheduledTime:  &scheduled,
		TimingStatus:   medication.TimingOnTime,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	day, err := s.schedule.DaySchedule(ctx, p.ID, today)
	if err != nil {
		t.Fatalf("day schedule: %v", err)
	}
	if len(day.Entries) != 3 {
		t.Fatalf("expected 3 slots for every 8 hours, got %d", len(day.Entries))
	}
	first := day.Entries[0]
	if first.ClockTime != "00:00" || first.Status != schedule.SlotAdministered || first.Administration == nil {
		t.Errorf("expected the 00:00 slot to match the recorded dose, got %+v", first)
	}
	if first.TimingStatus != medication.TimingOnTime || first.TimeDifferenceMinutes != 5 {
		t.Errorf("expected on-time by 5 minutes, got %s %d", first.TimingStatus, first.TimeDifferenceMinutes)
	}
}

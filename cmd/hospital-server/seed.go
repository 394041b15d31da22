package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/budget"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/schedule"
)

type demoPrescription struct {
	name, dose, frequency string
	route                 medication.Route
	unitCost              int64
}

type demoPatient struct {
	patient patient.Patient
	budget  int64
	meds    []demoPrescription
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

var demoPatients = []demoPatient{
	{
		patient: patient.Patient{
			Name: "Luna", Species: "Canino", Breed: "Labrador", Sex: "hembra",
			AgeYears: intPtr(6), WeightKg: floatPtr(28.4),
			OwnerName: "Carolina Gómez", OwnerPhone: "3001234567",
			Diagnosis: "Gastroenteritis hemorrágica",
		},
		budget: 800000,
		meds: []demoPrescription{
			{"Metronidazol", "15 mg/kg", "Cada 12 horas", medication.RouteIV, 12000},
			{"Maropitant", "1 mg/kg", "Una vez al día", medication.RouteSC, 35000},
			{"Omeprazol", "1 mg/kg", "Cada 24 horas", medication.RouteOral, 0},
		},
	},
	{
		patient: patient.Patient{
			Name: "Michi", Species: "Felino", Breed: "Criollo", Sex: "macho",
			AgeYears: intPtr(3), WeightKg: floatPtr(4.2),
			OwnerName: "Andrés Rojas", OwnerPhone: "3109876543",
			Diagnosis: "Obstrucción uretral", Status: patient.StatusCritical,
		},
		budget: 500000,
		meds: []demoPrescription{
			{"Buprenorfina", "0.02 mg/kg", "Cada 8 horas", medication.RouteIV, 18000},
			{"Ampicilina", "20 mg/kg", "Cada 6 horas", medication.RouteIV, 9000},
		},
	},
}

// seedDemo loads a couple of hospitalized patients with prescriptions that
// started yesterday, so today's schedule has doses in every state.
func seedDemo(ctx context.Context, a *app) error {
	now := time.Now().In(a.loc)
	today := a.schedule.Today()
	y, m, d := today.Date()
	start := time.Date(y, m, d-1, 0, 0, 0, 0, a.loc)
	end := time.Date(y, m, d+4, 23, 59, 0, 0, a.loc)

	for _, dp := range demoPatients {
		p := dp.patient
		p.InitialBudget = decimal.NewFromInt(dp.budget)
		p.AdmittedAt = start.UTC()
		if err := a.patients.AdmitPatient(ctx, &p); err != nil {
			return fmt.Errorf("seed patient %s: %w", p.Name, err)
		}

		for i, rx := range dp.meds {
			med := &medication.Medication{
				PatientID: p.ID, Name: rx.name, Dose: rx.dose, Frequency: rx.frequency,
				Route: rx.route, StartDate: start.UTC(), EndDate: end.UTC(),
			}
			if err := a.medications.CreateMedication(ctx, med); err != nil {
				return fmt.Errorf("seed prescription %s: %w", rx.name, err)
			}
			if rx.unitCost > 0 {
				if err := a.medications.SetCost(ctx, &medication.Cost{
					MedicationID: med.ID, UnitCost: decimal.NewFromInt(rx.unitCost),
				}); err != nil {
					return fmt.Errorf("seed cost %s: %w", rx.name, err)
				}
			}

			// First prescription: today's earliest dose is recorded seven
			// minutes after it was due, once that time has passed.
			if i != 0 {
				continue
			}
			slots := schedule.GenerateSlots(p.ID, []*medication.Medication{med}, today, a.loc)
			if len(slots) == 0 || slots[0].ScheduledTime.Add(7*time.Minute).After(now) {
				continue
			}
			scheduled := slots[0].ScheduledTime
			given := scheduled.Add(7 * time.Minute)
			timing, _ := schedule.TimingOf(scheduled, given)
			if err := a.medications.RecordAdministration(ctx, &medication.Administration{
				MedicationID:   med.ID,
				PatientID:      p.ID,
				AdministeredAt: given.UTC(),
				ScheduledTime:  &scheduled,
				TimingStatus:   timing,
				Notes:          "Sin novedad",
			}); err != nil {
				return fmt.Errorf("seed administration %s: %w", rx.name, err)
			}
		}

		if _, err := a.budget.ApplyTransaction(ctx, p.ID, budget.TypeDeposit,
			decimal.NewFromInt(dp.budget/4), "Abono del propietario"); err != nil {
			return fmt.Errorf("seed deposit %s: %w", p.Name, err)
		}
	}
	return nil
}

package medication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/kardex"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/middleware"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

// DefaultCurrency applies to medication costs created without one.
const DefaultCurrency = "COP"

// Patients is the slice of the patient service that prescriptions need.
type Patients interface {
	EnsurePatient(ctx context.Context, id uuid.UUID) error
	RequireAdmitted(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Biller charges administered doses to the patient's budget and returns
// the ledger transaction id.
type Biller interface {
	Charge(ctx context.Context, patientID uuid.UUID, amount decimal.Decimal, description string) (uuid.UUID, error)
}

// Observer is notified after an administration is stored.
type Observer interface {
	AdministrationRecorded(status, timing string)
}

type Service struct {
	meds     MedicationRepository
	admins   AdministrationRepository
	costs    CostRepository
	patients Patients
	kardex   kardex.Recorder
	tx       storage.Transactor
	biller   Biller
	observer Observer
	timing   TimingFunc
	now      func() time.Time
}

// TimingFunc classifies an administration time against its scheduled time.
type TimingFunc func(scheduled, administered time.Time) Timing

func NewService(meds MedicationRepository, admins AdministrationRepository, costs CostRepository,
	patients Patients, kx kardex.Recorder, tx storage.Transactor) *Service {
	return &Service{
		meds:     meds,
		admins:   admins,
		costs:    costs,
		patients: patients,
		kardex:   kx,
		tx:       tx,
		now:      time.Now,
	}
}

// SetBiller enables charging configured medication costs on administration.
func (s *Service) SetBiller(b Biller) {
	s.biller = b
}

func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// SetTiming lets corrections that move a dose recompute its punctuality.
func (s *Service) SetTiming(fn TimingFunc) {
	s.timing = fn
}

// -- Prescriptions --

func sanitizeMedication(m *Medication) {
	m.Name = middleware.SanitizeText(m.Name)
	m.Dose = middleware.SanitizeText(m.Dose)
	m.Frequency = middleware.SanitizeText(m.Frequency)
	m.Instructions = middleware.SanitizeText(m.Instructions)
	m.PrescribedBy = middleware.SanitizeText(m.PrescribedBy)
}

func validateMedication(op string, m *Medication) error {
	if m.PatientID == uuid.Nil {
		return apperr.Validation(op, "patient_id is required")
	}
	if m.Name == "" {
		return apperr.Validation(op, "name is required")
	}
	if m.Dose == "" {
		return apperr.Validation(op, "dose is required")
	}
	if m.Frequency == "" {
		return apperr.Validation(op, "frequency is required")
	}
	if !m.Route.Valid() {
		return apperr.Validation(op, "invalid route: %s", m.Route)
	}
	if !m.Status.Valid() {
		return apperr.Validation(op, "invalid status: %s", m.Status)
	}
	if m.StartDate.IsZero() || m.EndDate.IsZero() {
		return apperr.Validation(op, "start_date and end_date are required")
	}
	if m.EndDate.Before(m.StartDate) {
		return apperr.Validation(op, "end_date must not be before start_date")
	}
	return nil
}

// CreateMedication prescribes a drug to a hospitalized or critical patient.
func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	sanitizeMedication(m)
	if m.Status == "" {
		m.Status = StatusActive
	}
	if m.PrescribedBy == "" {
		m.PrescribedBy = auth.UserIDFromContext(ctx)
	}
	if err := validateMedication("medication.create", m); err != nil {
		return err
	}
	if m.PrescribedBy == "" {
		return apperr.Validation("medication.create", "prescribed_by is required")
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.RequireAdmitted(ctx, m.PatientID); err != nil {
			return err
		}
		if err := s.meds.Create(ctx, m); err != nil {
			return err
		}
		medID := m.ID
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID:    m.PatientID,
			Category:     kardex.CategoryMedication,
			Content:      fmt.Sprintf("Prescripción: %s %s, %s, vía %s", m.Name, m.Dose, m.Frequency, m.Route),
			CreatedBy:    m.PrescribedBy,
			MedicationID: &medID,
		})
	})
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("medication.list", "invalid status: %s", f.Status)
	}
	return s.meds.Search(ctx, f, limit, offset)
}

// ActiveForPatient returns every active prescription of a patient.
func (s *Service) ActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]*Medication, error) {
	items, _, err := s.meds.Search(ctx, MedicationFilter{PatientID: patientID, Status: StatusActive}, 0, 0)
	return items, err
}

// UpdateMedication edits a prescription. The patient, prescriber and status
// are kept; status moves through ChangeStatus.
func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	sanitizeMedication(m)
	current, err := s.meds.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	m.PatientID = current.PatientID
	m.PrescribedBy = current.PrescribedBy
	m.Status = current.Status
	m.CreatedAt = current.CreatedAt
	if err := validateMedication("medication.update", m); err != nil {
		return err
	}
	return s.meds.Update(ctx, m)
}

// ChangeStatus activates, completes or suspends a prescription and logs the
// change in the kardex.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (*Medication, error) {
	if !status.Valid() {
		return nil, apperr.Validation("medication.change_status", "invalid status: %s", status)
	}
	reason = middleware.SanitizeText(reason)

	var out *Medication
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.meds.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m.Status == status {
			out = m
			return nil
		}
		if status == StatusActive {
			if _, err := s.patients.RequireAdmitted(ctx, m.PatientID); err != nil {
				return err
			}
		}
		prev := m.Status
		m.Status = status
		if err := s.meds.Update(ctx, m); err != nil {
			return err
		}
		content := fmt.Sprintf("%s: %s a %s", m.Name, prev, status)
		if reason != "" {
			content += ". " + reason
		}
		medID := m.ID
		if err := s.kardex.Record(ctx, &kardex.Entry{
			PatientID:    m.PatientID,
			Category:     kardex.CategoryStatus,
			Content:      content,
			MedicationID: &medID,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// DeleteMedication removes a prescription that was never administered.
func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.meds.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := s.admins.CountByMedication(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflictf("medication.delete",
				"medication has %d administration records and cannot be deleted", n)
		}
		return s.meds.Delete(ctx, id)
	})
}

// HasPatientRecords reports whether a patient has prescriptions or
// administrations.
func (s *Service) HasPatientRecords(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, n, err := s.meds.Search(ctx, MedicationFilter{PatientID: patientID}, 1, 0)
	if err != nil || n > 0 {
		return n > 0, err
	}
	_, n, err = s.admins.Search(ctx, AdministrationFilter{PatientID: patientID}, 1, 0)
	return n > 0, err
}

// -- Administrations --

func validateAdministration(op string, a *Administration) error {
	if a.MedicationID == uuid.Nil {
		return apperr.Validation(op, "medication_id is required")
	}
	if a.AdministeredBy == "" {
		return apperr.Validation(op, "administered_by is required")
	}
	if !a.Status.Valid() {
		return apperr.Validation(op, "invalid status: %s", a.Status)
	}
	if !a.TimingStatus.Valid() {
		return apperr.Validation(op, "invalid timing_status: %s", a.TimingStatus)
	}
	if a.TimingStatus != "" && a.ScheduledTime == nil {
		return apperr.Validation(op, "timing_status requires scheduled_time")
	}
	if a.Cost != nil && a.Cost.IsNegative() {
		return apperr.Validation(op, "cost must not be negative")
	}
	return nil
}

// RecordAdministration stores a dose event for an admitted patient. An
// administered dose without an explicit cost is billed at the medication's
// configured unit cost when a Biller is set.
func (s *Service) RecordAdministration(ctx context.Context, a *Administration) error {
	a.Dose = middleware.SanitizeText(a.Dose)
	a.Notes = middleware.SanitizeText(a.Notes)
	a.AdministeredBy = middleware.SanitizeText(a.AdministeredBy)
	if a.Status == "" {
		a.Status = OutcomeAdministered
	}
	if a.AdministeredBy == "" {
		a.AdministeredBy = auth.UserIDFromContext(ctx)
	}
	if a.AdministeredAt.IsZero() {
		a.AdministeredAt = s.now().UTC()
	}
	if a.Status != OutcomeAdministered {
		a.Cost = nil
	}
	if err := validateAdministration("administration.record", a); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.meds.GetByID(ctx, a.MedicationID)
		if err != nil {
			return err
		}
		if a.PatientID != uuid.Nil && a.PatientID != m.PatientID {
			return apperr.Validation("administration.record", "medication belongs to another patient")
		}
		a.PatientID = m.PatientID
		if _, err := s.patients.RequireAdmitted(ctx, m.PatientID); err != nil {
			return err
		}
		if a.Dose == "" {
			a.Dose = m.Dose
		}
		if a.Cost == nil && a.Status == OutcomeAdministered {
			if a.Cost, err = s.unitCost(ctx, m.ID); err != nil {
				return err
			}
		}
		if err := s.admins.Create(ctx, a); err != nil {
			return err
		}

		var txID *uuid.UUID
		if s.biller != nil && a.Cost != nil && a.Cost.IsPositive() {
			id, err := s.biller.Charge(ctx, m.PatientID, *a.Cost, "Administración de "+m.Name)
			if err != nil {
				return err
			}
			txID = &id
		}

		medID := m.ID
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID:     m.PatientID,
			Category:      kardex.CategoryAdministration,
			Content:       administrationSummary(m, a),
			CreatedBy:     a.AdministeredBy,
			MedicationID:  &medID,
			TransactionID: txID,
		})
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Debug().
		Str("medication_id", a.MedicationID.String()).
		Str("status", string(a.Status)).
		Str("timing", string(a.TimingStatus)).
		Msg("administration recorded")
	if s.observer != nil {
		s.observer.AdministrationRecorded(string(a.Status), string(a.TimingStatus))
	}
	return nil
}

func (s *Service) unitCost(ctx context.Context, medicationID uuid.UUID) (*decimal.Decimal, error) {
	c, err := s.costs.GetByMedication(ctx, medicationID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cost := c.UnitCost
	return &cost, nil
}

func administrationSummary(m *Medication, a *Administration) string {
	var b strings.Builder
	switch a.Status {
	case OutcomeOmitted:
		b.WriteString("Dosis omitida: ")
	case OutcomeAdverseReaction:
		b.WriteString("Reacción adversa: ")
	default:
		b.WriteString("Administrado: ")
	}
	fmt.Fprintf(&b, "%s %s", m.Name, a.Dose)
	if a.ScheduledTime != nil {
		fmt.Fprintf(&b, " (programado %s", a.ScheduledTime.Format("15:04"))
		if a.TimingStatus != "" {
			fmt.Fprintf(&b, ", %s", a.TimingStatus)
		}
		b.WriteString(")")
	}
	if a.Notes != "" {
		b.WriteString(". " + a.Notes)
	}
	return b.String()
}

func (s *Service) GetAdministration(ctx context.Context, id uuid.UUID) (*Administration, error) {
	return s.admins.GetByID(ctx, id)
}

func (s *Service) ListAdministrations(ctx context.Context, f AdministrationFilter, limit, offset int) ([]*Administration, int, error) {
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, apperr.Validation("administration.list", "to must be after from")
	}
	return s.admins.Search(ctx, f, limit, offset)
}

// UpdateAdministration corrects a recorded dose. The prescription, patient
// and billed cost are fixed once recorded. Omitted fields keep their
// recorded value, except a timing status left out while the administered or
// scheduled time moves, which is recomputed.
func (s *Service) UpdateAdministration(ctx context.Context, a *Administration) error {
	a.Dose = middleware.SanitizeText(a.Dose)
	a.Notes = middleware.SanitizeText(a.Notes)
	a.AdministeredBy = middleware.SanitizeText(a.AdministeredBy)

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.admins.GetByID(ctx, a.ID)
		if err != nil {
			return err
		}
		a.MedicationID = current.MedicationID
		a.PatientID = current.PatientID
		a.Cost = current.Cost
		a.CreatedAt = current.CreatedAt
		if a.AdministeredBy == "" {
			a.AdministeredBy = current.AdministeredBy
		}
		if a.AdministeredAt.IsZero() {
			a.AdministeredAt = current.AdministeredAt
		}
		if a.Status == "" {
			a.Status = current.Status
		}
		if a.ScheduledTime == nil {
			a.ScheduledTime = current.ScheduledTime
		}
		if a.Dose == "" {
			a.Dose = current.Dose
		}
		if a.Notes == "" {
			a.Notes = current.Notes
		}
		if a.TimingStatus == "" {
			a.TimingStatus = current.TimingStatus
			if a.ScheduledTime != nil && s.timing != nil && moved(current, a) {
				a.TimingStatus = s.timing(*a.ScheduledTime, a.AdministeredAt)
			}
		}
		if err := validateAdministration("administration.update", a); err != nil {
			return err
		}
		if err := s.admins.Update(ctx, a); err != nil {
			return err
		}
		medID := a.MedicationID
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID:    a.PatientID,
			Category:     kardex.CategoryAdministration,
			Content:      fmt.Sprintf("Corrección de administración del %s: %s", a.AdministeredAt.Format("2006-01-02 15:04"), a.Status),
			MedicationID: &medID,
		})
	})
}

func moved(before, after *Administration) bool {
	if !before.AdministeredAt.Equal(after.AdministeredAt) {
		return true
	}
	if before.ScheduledTime == nil {
		return after.ScheduledTime != nil
	}
	return after.ScheduledTime == nil || !before.ScheduledTime.Equal(*after.ScheduledTime)
}

// -- Costs --

func (s *Service) GetCost(ctx context.Context, medicationID uuid.UUID) (*Cost, error) {
	return s.costs.GetByMedication(ctx, medicationID)
}

// SetCost configures the unit cost billed per administered dose.
func (s *Service) SetCost(ctx context.Context, c *Cost) error {
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if len(c.Currency) != 3 {
		return apperr.Validation("medication_cost.set", "currency must be a 3-letter code")
	}
	if c.UnitCost.IsNegative() {
		return apperr.Validation("medication_cost.set", "unit_cost must not be negative")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.meds.GetByID(ctx, c.MedicationID); err != nil {
			return err
		}
		return s.costs.Upsert(ctx, c)
	})
}

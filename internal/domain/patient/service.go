package patient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/kardex"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/middleware"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

// Dependents reports whether clinical records still reference a patient.
type Dependents interface {
	HasPatientRecords(ctx context.Context, patientID uuid.UUID) (bool, error)
}

type Service struct {
	patients   Repository
	files      FileRepository
	kardex     kardex.Recorder
	tx         storage.Transactor
	dependents []Dependents
	now        func() time.Time
}

func NewService(patients Repository, files FileRepository, kx kardex.Recorder, tx storage.Transactor) *Service {
	return &Service{
		patients: patients,
		files:    files,
		kardex:   kx,
		tx:       tx,
		now:      time.Now,
	}
}

// SetDependents makes DeletePatient refuse patients that still have records
// in any of ds.
func (s *Service) SetDependents(ds ...Dependents) {
	s.dependents = ds
}

func sanitizePatient(p *Patient) {
	p.Name = middleware.SanitizeText(p.Name)
	p.Species = middleware.SanitizeText(p.Species)
	p.Breed = middleware.SanitizeText(p.Breed)
	p.Sex = middleware.SanitizeText(p.Sex)
	p.OwnerName = middleware.SanitizeText(p.OwnerName)
	p.OwnerPhone = middleware.SanitizeText(p.OwnerPhone)
	p.OwnerDocument = middleware.SanitizeText(p.OwnerDocument)
	p.Diagnosis = middleware.SanitizeText(p.Diagnosis)
}

func validatePatient(op string, p *Patient) error {
	if p.Name == "" {
		return apperr.Validation(op, "name is required")
	}
	if p.Species == "" {
		return apperr.Validation(op, "species is required")
	}
	if p.OwnerName == "" {
		return apperr.Validation(op, "owner_name is required")
	}
	if !p.Status.Valid() {
		return apperr.Validation(op, "invalid status: %s", p.Status)
	}
	if p.AgeYears != nil && *p.AgeYears < 0 {
		return apperr.Validation(op, "age_years must not be negative")
	}
	if p.WeightKg != nil && *p.WeightKg <= 0 {
		return apperr.Validation(op, "weight_kg must be positive")
	}
	return nil
}

// AdmitPatient registers a patient. The current budget starts at the
// initial budget.
func (s *Service) AdmitPatient(ctx context.Context, p *Patient) error {
	sanitizePatient(p)
	if p.Status == "" {
		p.Status = StatusHospitalized
	}
	if err := validatePatient("patient.admit", p); err != nil {
		return err
	}
	if !p.Status.Admitted() {
		return apperr.Validation("patient.admit", "a patient cannot be admitted as %s", p.Status)
	}
	if p.InitialBudget.IsNegative() {
		return apperr.Validation("patient.admit", "initial_budget must not be negative")
	}
	p.CurrentBudget = p.InitialBudget
	if p.AdmittedAt.IsZero() {
		p.AdmittedAt = s.now().UTC()
	}
	p.DischargedAt = nil
	if p.CreatedBy == "" {
		p.CreatedBy = auth.UserIDFromContext(ctx)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return err
		}
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID: p.ID,
			Category:  kardex.CategoryStatus,
			Content:   fmt.Sprintf("Ingreso: %s (%s). Presupuesto inicial %s", p.Name, p.Species, p.InitialBudget.StringFixed(2)),
			CreatedBy: p.CreatedBy,
		})
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// EnsurePatient fails with a not-found error when id is unknown.
func (s *Service) EnsurePatient(ctx context.Context, id uuid.UUID) error {
	_, err := s.patients.GetByID(ctx, id)
	return err
}

// RequireAdmitted returns the patient if it is hospitalized or critical.
func (s *Service) RequireAdmitted(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.Admitted() {
		return nil, apperr.Validation("patient.require_admitted", "patient %s is %s", p.Name, p.Status)
	}
	return p, nil
}

// UpdatePatient edits demographics and moves between hospitalized and
// critical. Discharge has its own operation; budgets go through the ledger.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	sanitizePatient(p)
	current, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = current.Status
	}
	if err := validatePatient("patient.update", p); err != nil {
		return err
	}
	if p.Status != current.Status {
		if current.Status == StatusDischarged {
			return apperr.Validation("patient.update", "discharged patients cannot change status")
		}
		if p.Status == StatusDischarged {
			return apperr.Validation("patient.update", "use discharge to discharge a patient")
		}
	}
	p.AdmittedAt = current.AdmittedAt
	p.DischargedAt = current.DischargedAt
	p.InitialBudget = current.InitialBudget
	p.CurrentBudget = current.CurrentBudget
	p.CreatedBy = current.CreatedBy
	p.CreatedAt = current.CreatedAt

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		if p.Status == current.Status {
			return nil
		}
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID: p.ID,
			Category:  kardex.CategoryStatus,
			Content:   fmt.Sprintf("Estado: %s a %s", current.Status, p.Status),
		})
	})
}

// Discharge closes the hospitalization. A discharged patient cannot be
// discharged again.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, summary string) (*Patient, error) {
	summary = middleware.SanitizeText(summary)
	var out *Patient
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusDischarged {
			return apperr.Conflictf("patient.discharge", "patient %s is already discharged", p.Name)
		}
		at := s.now().UTC()
		p.Status = StatusDischarged
		p.DischargedAt = &at
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		content := "Alta médica. Saldo final " + p.CurrentBudget.StringFixed(2)
		if summary != "" {
			content += ". " + summary
		}
		if err := s.kardex.Record(ctx, &kardex.Entry{
			PatientID: p.ID,
			Category:  kardex.CategoryStatus,
			Content:   content,
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// DeletePatient removes a patient with no clinical history. Kardex entries
// and ledger rows are never deleted, so a patient that has any is refused.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	for _, d := range s.dependents {
		has, err := d.HasPatientRecords(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflictf("patient.delete", "patient has clinical records and cannot be deleted")
		}
	}
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, status Status, limit, offset int) ([]*Patient, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("patient.list", "invalid status: %s", status)
	}
	return s.patients.List(ctx, status, limit, offset)
}

// SetBudget moves current_budget from prev to next. It is the ledger's
// write path and fails with a conflict if the balance moved underneath.
func (s *Service) SetBudget(ctx context.Context, id uuid.UUID, prev, next decimal.Decimal) error {
	return s.patients.UpdateBudget(ctx, id, prev, next)
}

// -- Files --

func (s *Service) AddFile(ctx context.Context, f *File) error {
	f.FileName = middleware.SanitizeText(f.FileName)
	f.ContentType = middleware.SanitizeString(f.ContentType)
	f.Description = middleware.SanitizeText(f.Description)
	f.StorageURL = middleware.SanitizeString(f.StorageURL)
	if f.PatientID == uuid.Nil {
		return apperr.Validation("patient_file.add", "patient_id is required")
	}
	if f.FileName == "" {
		return apperr.Validation("patient_file.add", "file_name is required")
	}
	if u, err := url.Parse(f.StorageURL); err != nil || u.Scheme == "" || u.Host == "" {
		return apperr.Validation("patient_file.add", "storage_url must be an absolute URL")
	}
	if f.UploadedBy == "" {
		f.UploadedBy = auth.UserIDFromContext(ctx)
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.EnsurePatient(ctx, f.PatientID); err != nil {
			return err
		}
		if err := s.files.Create(ctx, f); err != nil {
			return err
		}
		fileID := f.ID
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID: f.PatientID,
			Category:  kardex.CategoryFile,
			Content:   "Archivo adjunto: " + f.FileName,
			CreatedBy: f.UploadedBy,
			FileID:    &fileID,
		})
	})
}

func (s *Service) ListFiles(ctx context.Context, patientID uuid.UUID) ([]*File, error) {
	if err := s.EnsurePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.files.ListByPatient(ctx, patientID)
}

func (s *Service) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		f, err := s.files.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.files.Delete(ctx, id); err != nil {
			return err
		}
		fileID := f.ID
		return s.kardex.Record(ctx, &kardex.Entry{
			PatientID: f.PatientID,
			Category:  kardex.CategoryFile,
			Content:   "Archivo eliminado: " + f.FileName,
			FileID:    &fileID,
		})
	})
}

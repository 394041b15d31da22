package kardex

import (
	"context"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/middleware"
)

// Recorder is what other domains need to append to the log.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// PatientGuard fails when the patient does not exist.
type PatientGuard interface {
	EnsurePatient(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo  Repository
	guard PatientGuard
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetPatientGuard enables the existence check on entries added through AddEntry.
func (s *Service) SetPatientGuard(g PatientGuard) {
	s.guard = g
}

// Record appends an entry written as a side effect of another operation.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return apperr.Validation("kardex.record", "patient_id is required")
	}
	if e.Category == "" {
		e.Category = CategoryNote
	}
	if !e.Category.Valid() {
		return apperr.Validation("kardex.record", "invalid category: %s", e.Category)
	}
	e.Content = middleware.SanitizeText(e.Content)
	if e.Content == "" {
		return apperr.Validation("kardex.record", "content is required")
	}
	e.CreatedBy = middleware.SanitizeText(e.CreatedBy)
	if e.CreatedBy == "" {
		e.CreatedBy = auth.UserIDFromContext(ctx)
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	e.ID = uuid.Nil
	return s.repo.Create(ctx, e)
}

// AddEntry appends a manual entry written by staff.
func (s *Service) AddEntry(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return apperr.Validation("kardex.add", "patient_id is required")
	}
	if s.guard != nil {
		if err := s.guard.EnsurePatient(ctx, e.PatientID); err != nil {
			return err
		}
	}
	return s.Record(ctx, e)
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID, category Category, limit, offset int) ([]*Entry, int, error) {
	if category != "" && !category.Valid() {
		return nil, 0, apperr.Validation("kardex.list", "invalid category: %s", category)
	}
	return s.repo.ListByPatient(ctx, patientID, category, limit, offset)
}

// HasPatientRecords reports whether the patient has any kardex entry.
func (s *Service) HasPatientRecords(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, n, err := s.repo.ListByPatient(ctx, patientID, "", 1, 0)
	return n > 0, err
}

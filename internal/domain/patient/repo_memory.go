package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

type patientRepoMemory struct {
	rows *storage.Table[Patient]
}

func NewRepoMemory() Repository {
	return &patientRepoMemory{rows: storage.NewTable[Patient]()}
}

func (r *patientRepoMemory) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.rows.Insert(p.ID, *p)
	return nil
}

func (r *patientRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.rows.Get(id)
	if !ok {
		return nil, apperr.NotFound("patient.get", "patient")
	}
	return &p, nil
}

func (r *patientRepoMemory) Update(_ context.Context, p *Patient) error {
	found, _ := r.rows.Modify(p.ID, func(stored *Patient) error {
		initial, current, created := stored.InitialBudget, stored.CurrentBudget, stored.CreatedAt
		*stored = *p
		stored.InitialBudget, stored.CurrentBudget, stored.CreatedAt = initial, current, created
		stored.UpdatedAt = time.Now().UTC()
		p.UpdatedAt = stored.UpdatedAt
		return nil
	})
	if !found {
		return apperr.NotFound("patient.update", "patient")
	}
	return nil
}

func (r *patientRepoMemory) Delete(_ context.Context, id uuid.UUID) error {
	if !r.rows.Delete(id) {
		return apperr.NotFound("patient.delete", "patient")
	}
	return nil
}

func (r *patientRepoMemory) List(_ context.Context, status Status, limit, offset int) ([]*Patient, int, error) {
	rows := r.rows.Select(func(p Patient) bool { return status == "" || p.Status == status })
	storage.NewestFirst(rows, func(p Patient) time.Time { return p.AdmittedAt })
	page, total := storage.Page(rows, limit, offset)
	out := make([]*Patient, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}

func (r *patientRepoMemory) UpdateBudget(_ context.Context, id uuid.UUID, prev, next decimal.Decimal) error {
	found, err := r.rows.Modify(id, func(p *Patient) error {
		if !p.CurrentBudget.Equal(prev) {
			return apperr.Conflictf("patient.update_budget", "balance changed since it was read")
		}
		p.CurrentBudget = next
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if !found {
		return apperr.NotFound("patient.update_budget", "patient")
	}
	return err
}

type fileRepoMemory struct {
	rows *storage.Table[File]
}

func NewFileRepoMemory() FileRepository {
	return &fileRepoMemory{rows: storage.NewTable[File]()}
}

func (r *fileRepoMemory) Create(_ context.Context, f *File) error {
	f.ID = uuid.New()
	f.CreatedAt = time.Now().UTC()
	r.rows.Insert(f.ID, *f)
	return nil
}

func (r *fileRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*File, error) {
	f, ok := r.rows.Get(id)
	if !ok {
		return nil, apperr.NotFound("patient_file.get", "file")
	}
	return &f, nil
}

func (r *fileRepoMemory) Delete(_ context.Context, id uuid.UUID) error {
	if !r.rows.Delete(id) {
		return apperr.NotFound("patient_file.delete", "file")
	}
	return nil
}

func (r *fileRepoMemory) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*File, error) {
	rows := r.rows.Select(func(f File) bool { return f.PatientID == patientID })
	storage.NewestFirst(rows, func(f File) time.Time { return f.CreatedAt })
	out := make([]*File, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

package medication

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

func pointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

type medicationRepoMemory struct {
	rows *storage.Table[Medication]
}

func NewMedicationRepoMemory() MedicationRepository {
	return &medicationRepoMemory{rows: storage.NewTable[Medication]()}
}

func (r *medicationRepoMemory) Create(_ context.Context, m *Medication) error {
	m.ID = uuid.New()
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	r.rows.Insert(m.ID, *m)
	return nil
}

func (r *medicationRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	m, ok := r.rows.Get(id)
	if !ok {
		return nil, apperr.NotFound("medication.get", "medication")
	}
	return &m, nil
}

func (r *medicationRepoMemory) Update(_ context.Context, m *Medication) error {
	m.UpdatedAt = time.Now().UTC()
	if !r.rows.Put(m.ID, *m) {
		return apperr.NotFound("medication.update", "medication")
	}
	return nil
}

func (r *medicationRepoMemory) Delete(_ context.Context, id uuid.UUID) error {
	if !r.rows.Delete(id) {
		return apperr.NotFound("medication.delete", "medication")
	}
	return nil
}

func (r *medicationRepoMemory) Search(_ context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	rows := r.rows.Select(func(m Medication) bool {
		return (f.PatientID == uuid.Nil || m.PatientID == f.PatientID) &&
			(f.Status == "" || m.Status == f.Status)
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StartDate.Before(rows[j].StartDate) })
	page, total := storage.Page(rows, limit, offset)
	return pointers(page), total, nil
}

type administrationRepoMemory struct {
	rows *storage.Table[Administration]
}

func NewAdministrationRepoMemory() AdministrationRepository {
	return &administrationRepoMemory{rows: storage.NewTable[Administration]()}
}

func (r *administrationRepoMemory) Create(_ context.Context, a *Administration) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.rows.Insert(a.ID, *a)
	return nil
}

func (r *administrationRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Administration, error) {
	a, ok := r.rows.Get(id)
	if !ok {
		return nil, apperr.NotFound("administration.get", "administration")
	}
	return &a, nil
}

func (r *administrationRepoMemory) Update(_ context.Context, a *Administration) error {
	a.UpdatedAt = time.Now().UTC()
	if !r.rows.Put(a.ID, *a) {
		return apperr.NotFound("administration.update", "administration")
	}
	return nil
}

func (r *administrationRepoMemory) CountByMedication(_ context.Context, medicationID uuid.UUID) (int, error) {
	rows := r.rows.Select(func(a Administration) bool { return a.MedicationID == medicationID })
	return len(rows), nil
}

func (r *administrationRepoMemory) Search(_ context.Context, f AdministrationFilter, limit, offset int) ([]*Administration, int, error) {
	rows := r.rows.Select(func(a Administration) bool {
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			return false
		}
		if f.MedicationID != uuid.Nil && a.MedicationID != f.MedicationID {
			return false
		}
		if f.From != nil && a.AdministeredAt.Before(*f.From) {
			return false
		}
		if f.To != nil && !a.AdministeredAt.Before(*f.To) {
			return false
		}
		return true
	})
	storage.NewestFirst(rows, func(a Administration) time.Time { return a.AdministeredAt })
	page, total := storage.Page(rows, limit, offset)
	return pointers(page), total, nil
}

type costRepoMemory struct {
	rows *storage.Table[Cost]
}

func NewCostRepoMemory() CostRepository {
	return &costRepoMemory{rows: storage.NewTable[Cost]()}
}

// Costs are keyed by medication id so there is at most one per medication.
func (r *costRepoMemory) GetByMedication(_ context.Context, medicationID uuid.UUID) (*Cost, error) {
	c, ok := r.rows.Get(medicationID)
	if !ok {
		return nil, apperr.NotFound("medication_cost.get", "medication cost")
	}
	return &c, nil
}

func (r *costRepoMemory) Upsert(_ context.Context, c *Cost) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	found, _ := r.rows.Modify(c.MedicationID, func(stored *Cost) error {
		c.ID, c.CreatedAt = stored.ID, stored.CreatedAt
		*stored = *c
		return nil
	})
	if found {
		return nil
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = now
	r.rows.Insert(c.MedicationID, *c)
	return nil
}

package medication

import (
	"context"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search returns every match when limit is not positive.
	Search(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error)
}

type AdministrationRepository interface {
	Create(ctx context.Context, a *Administration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Administration, error)
	Update(ctx context.Context, a *Administration) error
	CountByMedication(ctx context.Context, medicationID uuid.UUID) (int, error)
	// Search orders by administered_at descending and returns every match
	// when limit is not positive.
	Search(ctx context.Context, f AdministrationFilter, limit, offset int) ([]*Administration, int, error)
}

type CostRepository interface {
	GetByMedication(ctx context.Context, medicationID uuid.UUID) (*Cost, error)
	Upsert(ctx context.Context, c *Cost) error
}

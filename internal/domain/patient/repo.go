package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// Update writes demographic and status fields. Budget columns are only
	// changed through UpdateBudget.
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status Status, limit, offset int) ([]*Patient, int, error)
	// UpdateBudget sets current_budget to next only if it still equals prev.
	UpdateBudget(ctx context.Context, id uuid.UUID, prev, next decimal.Decimal) error
}

type FileRepository interface {
	Create(ctx context.Context, f *File) error
	GetByID(ctx context.Context, id uuid.UUID) (*File, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*File, error)
}

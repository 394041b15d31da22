package kardex

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	// ListByPatient returns entries newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, category Category, limit, offset int) ([]*Entry, int, error)
}

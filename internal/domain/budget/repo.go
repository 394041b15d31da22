package budget

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-only.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	// ListByPatient orders newest first and returns every row when limit is
	// not positive.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error)
}

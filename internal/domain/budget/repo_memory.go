package budget

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

type repoMemory struct {
	rows *storage.Table[Transaction]
}

func NewRepoMemory() Repository {
	return &repoMemory{rows: storage.NewTable[Transaction]()}
}

func (r *repoMemory) Create(_ context.Context, tx *Transaction) error {
	tx.ID = uuid.New()
	tx.CreatedAt = time.Now().UTC()
	r.rows.Insert(tx.ID, *tx)
	return nil
}

func (r *repoMemory) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	rows := r.rows.Select(func(tx Transaction) bool { return tx.PatientID == patientID })
	storage.NewestFirst(rows, func(tx Transaction) time.Time { return tx.CreatedAt })
	page, total := storage.Page(rows, limit, offset)
	out := make([]*Transaction, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}

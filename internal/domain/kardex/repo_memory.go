package kardex

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

type repoMemory struct {
	entries *storage.Table[Entry]
}

func NewRepoMemory() Repository {
	return &repoMemory{entries: storage.NewTable[Entry]()}
}

func (r *repoMemory) Create(_ context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if !r.entries.Insert(e.ID, *e) {
		return apperr.Conflictf("kardex.create", "entry %s already exists", e.ID)
	}
	return nil
}

func (r *repoMemory) ListByPatient(_ context.Context, patientID uuid.UUID, category Category, limit, offset int) ([]*Entry, int, error) {
	rows := r.entries.Select(func(e Entry) bool {
		return e.PatientID == patientID && (category == "" || e.Category == category)
	})
	storage.NewestFirst(rows, func(e Entry) time.Time { return e.CreatedAt })

	page, total := storage.Page(rows, limit, offset)
	out := make([]*Entry, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, total, nil
}

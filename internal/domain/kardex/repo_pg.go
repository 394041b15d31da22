package kardex

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const entryCols = `id, patient_id, category, content, created_by, created_at,
	medication_id, file_id, transaction_id`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.Category, &e.Content, &e.CreatedBy, &e.CreatedAt,
		&e.MedicationID, &e.FileID, &e.TransactionID)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO kardex_entry (`+entryCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.PatientID, e.Category, e.Content, e.CreatedBy, e.CreatedAt,
		e.MedicationID, e.FileID, e.TransactionID)
	return apperr.FromDB("kardex.create", err)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, category Category, limit, offset int) ([]*Entry, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM kardex_entry WHERE patient_id = $1 AND ($2::text = '' OR category = $2::text)`,
		patientID, string(category)).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("kardex.count", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+entryCols+` FROM kardex_entry
		WHERE patient_id = $1 AND ($2::text = '' OR category = $2::text)
		ORDER BY created_at DESC LIMIT NULLIF($3::int, 0) OFFSET $4`,
		patientID, string(category), limit, offset)
	if err != nil {
		return nil, 0, apperr.FromDB("kardex.list", err)
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("kardex.scan", err)
		}
		items = append(items, e)
	}
	return items, total, apperr.FromDB("kardex.list", rows.Err())
}

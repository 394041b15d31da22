package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/db"
)

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, name, species, COALESCE(breed, ''), COALESCE(sex, ''), age_years,
	weight_kg::float8, owner_name, COALESCE(owner_phone, ''), COALESCE(owner_document, ''),
	COALESCE(diagnosis, ''), status, admitted_at, discharged_at,
	initial_budget::text, current_budget::text, COALESCE(created_by, ''), created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p             Patient
		initial, curr string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Species, &p.Breed, &p.Sex, &p.AgeYears,
		&p.WeightKg, &p.OwnerName, &p.OwnerPhone, &p.OwnerDocument,
		&p.Diagnosis, &p.Status, &p.AdmittedAt, &p.DischargedAt,
		&initial, &curr, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.InitialBudget, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("initial_budget: %w", err)
	}
	if p.CurrentBudget, err = decimal.NewFromString(curr); err != nil {
		return nil, fmt.Errorf("current_budget: %w", err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (id, name, species, breed, sex, age_years, weight_kg,
			owner_name, owner_phone, owner_document, diagnosis, status,
			admitted_at, discharged_at, initial_budget, current_budget,
			created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.Name, p.Species, p.Breed, p.Sex, p.AgeYears, p.WeightKg,
		p.OwnerName, p.OwnerPhone, p.OwnerDocument, p.Diagnosis, p.Status,
		p.AdmittedAt, p.DischargedAt, p.InitialBudget.String(), p.CurrentBudget.String(),
		p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return apperr.FromDB("patient.create", err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB("patient.get", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient SET name=$2, species=$3, breed=$4, sex=$5, age_years=$6, weight_kg=$7,
			owner_name=$8, owner_phone=$9, owner_document=$10, diagnosis=$11, status=$12,
			discharged_at=$13, updated_at=$14
		WHERE id = $1`,
		p.ID, p.Name, p.Species, p.Breed, p.Sex, p.AgeYears, p.WeightKg,
		p.OwnerName, p.OwnerPhone, p.OwnerDocument, p.Diagnosis, p.Status,
		p.DischargedAt, p.UpdatedAt)
	if err != nil {
		return apperr.FromDB("patient.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient.update", "patient")
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB("patient.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient.delete", "patient")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Patient, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE ($1::text = '' OR status = $1::text)`,
		string(status)).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("patient.count", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+patientCols+` FROM patient
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY admitted_at DESC LIMIT NULLIF($2::int, 0) OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, apperr.FromDB("patient.list", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("patient.scan", err)
		}
		items = append(items, p)
	}
	return items, total, apperr.FromDB("patient.list", rows.Err())
}

func (r *patientRepoPG) UpdateBudget(ctx context.Context, id uuid.UUID, prev, next decimal.Decimal) error {
	conn := db.Conn(ctx, r.pool)
	tag, err := conn.Exec(ctx, `
		UPDATE patient SET current_budget = $3::numeric, updated_at = NOW()
		WHERE id = $1 AND current_budget = $2::numeric`,
		id, prev.String(), next.String())
	if err != nil {
		return apperr.FromDB("patient.update_budget", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1)`, id).Scan(&exists); err != nil {
		return apperr.FromDB("patient.update_budget", err)
	}
	if !exists {
		return apperr.NotFound("patient.update_budget", "patient")
	}
	return apperr.Conflictf("patient.update_budget", "balance changed since it was read")
}

// =========== File Repository ===========

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository {
	return &fileRepoPG{pool: pool}
}

const fileCols = `id, patient_id, file_name, COALESCE(content_type, ''), storage_url,
	COALESCE(description, ''), COALESCE(uploaded_by, ''), created_at`

func scanFile(row pgx.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.PatientID, &f.FileName, &f.ContentType, &f.StorageURL,
		&f.Description, &f.UploadedBy, &f.CreatedAt)
	return &f, err
}

func (r *fileRepoPG) Create(ctx context.Context, f *File) error {
	f.ID = uuid.New()
	f.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_file (id, patient_id, file_name, content_type, storage_url,
			description, uploaded_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		f.ID, f.PatientID, f.FileName, f.ContentType, f.StorageURL,
		f.Description, f.UploadedBy, f.CreatedAt)
	return apperr.FromDB("patient_file.create", err)
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*File, error) {
	f, err := scanFile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+fileCols+` FROM patient_file WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB("patient_file.get", err)
	}
	return f, nil
}

func (r *fileRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patient_file WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB("patient_file.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient_file.delete", "file")
	}
	return nil
}

func (r *fileRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*File, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+fileCols+` FROM patient_file
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, apperr.FromDB("patient_file.list", err)
	}
	defer rows.Close()

	var items []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, apperr.FromDB("patient_file.scan", err)
		}
		items = append(items, f)
	}
	return items, apperr.FromDB("patient_file.list", rows.Err())
}

package medication

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

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

const medCols = `id, patient_id, name, dose, frequency, route, start_date, end_date,
	COALESCE(instructions, ''), prescribed_by, status, created_at, updated_at`

func scanMed(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dose, &m.Frequency, &m.Route,
		&m.StartDate, &m.EndDate, &m.Instructions, &m.PrescribedBy, &m.Status,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medication (id, patient_id, name, dose, frequency, route,
			start_date, end_date, instructions, prescribed_by, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.PatientID, m.Name, m.Dose, m.Frequency, m.Route,
		m.StartDate, m.EndDate, m.Instructions, m.PrescribedBy, m.Status, m.CreatedAt, m.UpdatedAt)
	return apperr.FromDB("medication.create", err)
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMed(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medCols+` FROM medication WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB("medication.get", err)
	}
	return m, nil
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	m.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medication SET name=$2, dose=$3, frequency=$4, route=$5, start_date=$6,
			end_date=$7, instructions=$8, status=$9, updated_at=$10
		WHERE id = $1`,
		m.ID, m.Name, m.Dose, m.Frequency, m.Route, m.StartDate,
		m.EndDate, m.Instructions, m.Status, m.UpdatedAt)
	if err != nil {
		return apperr.FromDB("medication.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medication.update", "medication")
	}
	return nil
}

func (r *medicationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medication WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB("medication.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medication.delete", "medication")
	}
	return nil
}

func (r *medicationRepoPG) Search(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	q := db.NewQuery("medication", medCols).OrderBy("start_date, created_at")
	if f.PatientID != uuid.Nil {
		q.Eq("patient_id", f.PatientID)
	}
	if f.Status != "" {
		q.Eq("status", string(f.Status))
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("medication.count", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB("medication.search", err)
	}
	defer rows.Close()

	var items []*Medication
	for rows.Next() {
		m, err := scanMed(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("medication.scan", err)
		}
		items = append(items, m)
	}
	return items, total, apperr.FromDB("medication.search", rows.Err())
}

// =========== Administration Repository ===========

type administrationRepoPG struct{ pool *pgxpool.Pool }

func NewAdministrationRepoPG(pool *pgxpool.Pool) AdministrationRepository {
	return &administrationRepoPG{pool: pool}
}

const adminCols = `id, medication_id, patient_id, administered_by, administered_at,
	COALESCE(dose_given, ''), COALESCE(notes, ''), status, scheduled_time,
	COALESCE(timing_status, ''), cost::text, created_at, updated_at`

func scanAdmin(row pgx.Row) (*Administration, error) {
	var (
		a    Administration
		cost *string
	)
	err := row.Scan(&a.ID, &a.MedicationID, &a.PatientID, &a.AdministeredBy, &a.AdministeredAt,
		&a.Dose, &a.Notes, &a.Status, &a.ScheduledTime,
		&a.TimingStatus, &cost, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cost != nil {
		d, err := decimal.NewFromString(*cost)
		if err != nil {
			return nil, fmt.Errorf("cost: %w", err)
		}
		a.Cost = &d
	}
	return &a, nil
}

func costArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func timingArg(t Timing) *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}

func (r *administrationRepoPG) Create(ctx context.Context, a *Administration) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO administration (id, medication_id, patient_id, administered_by, administered_at,
			dose_given, notes, status, scheduled_time, timing_status, cost, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric,$12,$13)`,
		a.ID, a.MedicationID, a.PatientID, a.AdministeredBy, a.AdministeredAt,
		a.Dose, a.Notes, a.Status, a.ScheduledTime, timingArg(a.TimingStatus), costArg(a.Cost),
		a.CreatedAt, a.UpdatedAt)
	return apperr.FromDB("administration.create", err)
}

func (r *administrationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Administration, error) {
	a, err := scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+adminCols+` FROM administration WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB("administration.get", err)
	}
	return a, nil
}

func (r *administrationRepoPG) Update(ctx context.Context, a *Administration) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE administration SET administered_by=$2, administered_at=$3, dose_given=$4,
			notes=$5, status=$6, scheduled_time=$7, timing_status=$8, cost=$9::numeric, updated_at=$10
		WHERE id = $1`,
		a.ID, a.AdministeredBy, a.AdministeredAt, a.Dose,
		a.Notes, a.Status, a.ScheduledTime, timingArg(a.TimingStatus), costArg(a.Cost), a.UpdatedAt)
	if err != nil {
		return apperr.FromDB("administration.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("administration.update", "administration")
	}
	return nil
}

func (r *administrationRepoPG) CountByMedication(ctx context.Context, medicationID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM administration WHERE medication_id = $1`, medicationID).Scan(&n)
	return n, apperr.FromDB("administration.count", err)
}

func (r *administrationRepoPG) Search(ctx context.Context, f AdministrationFilter, limit, offset int) ([]*Administration, int, error) {
	q := db.NewQuery("administration", adminCols).OrderBy("administered_at DESC")
	if f.PatientID != uuid.Nil {
		q.Eq("patient_id", f.PatientID)
	}
	if f.MedicationID != uuid.Nil {
		q.Eq("medication_id", f.MedicationID)
	}
	if f.From != nil {
		q.Where("administered_at >= ?", *f.From)
	}
	if f.To != nil {
		q.Where("administered_at < ?", *f.To)
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("administration.count", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB("administration.search", err)
	}
	defer rows.Close()

	var items []*Administration
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("administration.scan", err)
		}
		items = append(items, a)
	}
	return items, total, apperr.FromDB("administration.search", rows.Err())
}

// =========== Cost Repository ===========

type costRepoPG struct{ pool *pgxpool.Pool }

func NewCostRepoPG(pool *pgxpool.Pool) CostRepository {
	return &costRepoPG{pool: pool}
}

func (r *costRepoPG) GetByMedication(ctx context.Context, medicationID uuid.UUID) (*Cost, error) {
	var (
		c    Cost
		unit string
	)
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, medication_id, unit_cost::text, currency, created_at, updated_at
		FROM medication_cost WHERE medication_id = $1`, medicationID).
		Scan(&c.ID, &c.MedicationID, &unit, &c.Currency, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB("medication_cost.get", err)
	}
	if c.UnitCost, err = decimal.NewFromString(unit); err != nil {
		return nil, apperr.Persistence("medication_cost.get", err)
	}
	return &c, nil
}

func (r *costRepoPG) Upsert(ctx context.Context, c *Cost) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medication_cost (id, medication_id, unit_cost, currency, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $5)
		ON CONFLICT (medication_id) DO UPDATE
			SET unit_cost = EXCLUDED.unit_cost, currency = EXCLUDED.currency, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`,
		c.ID, c.MedicationID, c.UnitCost.String(), c.Currency, now).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return apperr.FromDB("medication_cost.upsert", err)
}

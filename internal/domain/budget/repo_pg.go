package budget

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const txCols = `id, patient_id, type, amount::text, description,
	previous_balance::text, new_balance::text, created_by, created_at`

func scanTx(row pgx.Row) (*Transaction, error) {
	var (
		tx                 Transaction
		amount, prev, next string
	)
	if err := row.Scan(&tx.ID, &tx.PatientID, &tx.Type, &amount, &tx.Description,
		&prev, &next, &tx.CreatedBy, &tx.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if tx.PreviousBalance, err = decimal.NewFromString(prev); err != nil {
		return nil, fmt.Errorf("previous_balance: %w", err)
	}
	if tx.NewBalance, err = decimal.NewFromString(next); err != nil {
		return nil, fmt.Errorf("new_balance: %w", err)
	}
	return &tx, nil
}

func (r *repoPG) Create(ctx context.Context, tx *Transaction) error {
	tx.ID = uuid.New()
	tx.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO budget_transaction (id, patient_id, type, amount, description,
			previous_balance, new_balance, created_by, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7::numeric, $8, $9)`,
		tx.ID, tx.PatientID, tx.Type, tx.Amount.String(), tx.Description,
		tx.PreviousBalance.String(), tx.NewBalance.String(), tx.CreatedBy, tx.CreatedAt)
	return apperr.FromDB("budget_transaction.create", err)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	q := db.NewQuery("budget_transaction", txCols).
		Eq("patient_id", patientID).
		OrderBy("created_at DESC")
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, q.CountSQL(), q.Args()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("budget_transaction.count", err)
	}
	rows, err := conn.Query(ctx, q.DataSQL(limit, offset), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB("budget_transaction.list", err)
	}
	defer rows.Close()

	var items []*Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("budget_transaction.scan", err)
		}
		items = append(items, tx)
	}
	return items, total, apperr.FromDB("budget_transaction.list", rows.Err())
}

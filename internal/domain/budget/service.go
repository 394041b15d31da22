package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/kardex"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/middleware"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

// Patients reads and moves a patient's balance.
type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	SetBudget(ctx context.Context, id uuid.UUID, prev, next decimal.Decimal) error
}

// Observer is notified after a transaction is committed.
type Observer interface {
	TransactionApplied(txType string)
}

type Service struct {
	repo     Repository
	patients Patients
	kardex   kardex.Recorder
	tx       storage.Transactor
	observer Observer
	logger   zerolog.Logger
}

func NewService(repo Repository, patients Patients, kx kardex.Recorder, tx storage.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		kardex:   kx,
		tx:       tx,
		logger:   logger.With().Str("component", "budget").Logger(),
	}
}

func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

var typeLabels = map[Type]string{
	TypeDeposit:    "Abono",
	TypeCharge:     "Cargo",
	TypeRefund:     "Reembolso",
	TypeAdjustment: "Ajuste",
}

// ApplyTransaction records a ledger line against the patient's current
// balance and moves current_budget to the new balance in one unit of work.
func (s *Service) ApplyTransaction(ctx context.Context, patientID uuid.UUID, t Type, amount decimal.Decimal, description string) (*Transaction, error) {
	description = middleware.SanitizeText(description)
	if patientID == uuid.Nil {
		return nil, apperr.Validation("budget.apply", "patient_id is required")
	}
	if _, err := Apply(decimal.Zero, t, amount, description); err != nil {
		return nil, err
	}
	createdBy := auth.UserIDFromContext(ctx)
	if createdBy == "" {
		createdBy = "system"
	}

	var out Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetPatient(ctx, patientID)
		if err != nil {
			return err
		}
		tx, err := Apply(p.CurrentBudget, t, amount, description)
		if err != nil {
			return err
		}
		tx.PatientID = patientID
		tx.CreatedBy = createdBy

		if err := s.patients.SetBudget(ctx, patientID, tx.PreviousBalance, tx.NewBalance); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &tx); err != nil {
			return err
		}
		txID := tx.ID
		if err := s.kardex.Record(ctx, &kardex.Entry{
			PatientID: patientID,
			Category:  kardex.CategoryBudget,
			Content: fmt.Sprintf("%s %s: %s. Saldo %s a %s", typeLabels[t], amount.StringFixed(2),
				description, tx.PreviousBalance.StringFixed(2), tx.NewBalance.StringFixed(2)),
			CreatedBy:     createdBy,
			TransactionID: &txID,
		}); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Str("type", string(t)).
			Msg("budget transaction not applied")
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("transaction_id", out.ID.String()).
		Str("type", string(t)).
		Str("amount", out.Amount.String()).
		Str("new_balance", out.NewBalance.String()).
		Msg("budget transaction applied")
	if s.observer != nil {
		s.observer.TransactionApplied(string(t))
	}
	return &out, nil
}

// Charge debits amount and returns the transaction id. It lets billable
// administrations go through the ledger.
func (s *Service) Charge(ctx context.Context, patientID uuid.UUID, amount decimal.Decimal, description string) (uuid.UUID, error) {
	tx, err := s.ApplyTransaction(ctx, patientID, TypeCharge, amount, description)
	if err != nil {
		return uuid.Nil, err
	}
	return tx.ID, nil
}

// HasPatientRecords reports whether the patient has ledger rows.
func (s *Service) HasPatientRecords(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, n, err := s.repo.ListByPatient(ctx, patientID, 1, 0)
	return n > 0, err
}

func (s *Service) ListTransactions(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Transaction, int, error) {
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) GetSummary(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	txs, total, err := s.repo.ListByPatient(ctx, patientID, 0, 0)
	if err != nil {
		return nil, err
	}
	deposits, charges, refunds := Summarize(txs)
	return &Summary{
		PatientID:     p.ID,
		InitialBudget: p.InitialBudget,
		CurrentBudget: p.CurrentBudget,
		TotalDeposits: deposits,
		TotalCharges:  charges,
		TotalRefunds:  refunds,
		Transactions:  total,
	}, nil
}

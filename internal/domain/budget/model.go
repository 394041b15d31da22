package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeCharge     Type = "charge"
	TypeRefund     Type = "refund"
	TypeAdjustment Type = "adjustment"
)

func (t Type) Valid() bool {
	return t == TypeDeposit || t == TypeCharge || t == TypeRefund || t == TypeAdjustment
}

// Transaction is one immutable ledger line. Charges carry a negative amount;
// an adjustment carries the balance it set.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	Type            Type            `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Summary is a patient's budget position.
type Summary struct {
	PatientID     uuid.UUID       `json:"patient_id"`
	InitialBudget decimal.Decimal `json:"initial_budget"`
	CurrentBudget decimal.Decimal `json:"current_budget"`
	TotalDeposits decimal.Decimal `json:"total_deposits"`
	TotalCharges  decimal.Decimal `json:"total_charges"`
	TotalRefunds  decimal.Decimal `json:"total_refunds"`
	Transactions  int             `json:"transactions"`
}

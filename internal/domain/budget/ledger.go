package budget

import (
	"github.com/shopspring/decimal"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
)

// Apply computes the transaction that moves balance by amount under type t.
// Deposits and refunds add, charges subtract and are recorded negative, and
// an adjustment sets the balance to amount. It does not touch storage.
func Apply(balance decimal.Decimal, t Type, amount decimal.Decimal, description string) (Transaction, error) {
	const op = "budget.apply"
	if !t.Valid() {
		return Transaction{}, apperr.Validation(op, "invalid transaction type: %s", t)
	}
	if description == "" {
		return Transaction{}, apperr.Validation(op, "description is required")
	}
	if t != TypeAdjustment && amount.IsNegative() {
		return Transaction{}, apperr.Validation(op, "amount must not be negative for %s", t)
	}

	tx := Transaction{
		Type:            t,
		Amount:          amount,
		Description:     description,
		PreviousBalance: balance,
	}
	switch t {
	case TypeDeposit, TypeRefund:
		tx.NewBalance = balance.Add(amount)
	case TypeCharge:
		tx.Amount = amount.Neg()
		tx.NewBalance = balance.Sub(amount)
	case TypeAdjustment:
		tx.NewBalance = amount
	}
	return tx, nil
}

// Summarize folds a patient's transactions into totals. Charges are
// reported as a positive total.
func Summarize(txs []*Transaction) (deposits, charges, refunds decimal.Decimal) {
	for _, tx := range txs {
		switch tx.Type {
		case TypeDeposit:
			deposits = deposits.Add(tx.Amount)
		case TypeCharge:
			charges = charges.Sub(tx.Amount)
		case TypeRefund:
			refunds = refunds.Add(tx.Amount)
		}
	}
	return deposits, charges, refunds
}

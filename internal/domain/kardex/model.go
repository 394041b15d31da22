package kardex

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryNote           Category = "note"
	CategoryMedication     Category = "medication"
	CategoryAdministration Category = "administration"
	CategoryBudget         Category = "budget"
	CategoryFile           Category = "file"
	CategoryStatus         Category = "status"
	CategoryProcedure      Category = "procedure"
)

var validCategories = map[Category]bool{
	CategoryNote: true, CategoryMedication: true, CategoryAdministration: true,
	CategoryBudget: true, CategoryFile: true, CategoryStatus: true, CategoryProcedure: true,
}

func (c Category) Valid() bool { return validCategories[c] }

// Entry is one line of a patient's clinical log. Entries are append-only.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Category      Category   `json:"category"`
	Content       string     `json:"content"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	MedicationID  *uuid.UUID `json:"medication_id,omitempty"`
	FileID        *uuid.UUID `json:"file_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

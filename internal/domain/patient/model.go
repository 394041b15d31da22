package patient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusHospitalized Status = "hospitalized"
	StatusCritical     Status = "critical"
	StatusDischarged   Status = "discharged"
)

func (s Status) Valid() bool {
	return s == StatusHospitalized || s == StatusCritical || s == StatusDischarged
}

// Admitted reports whether prescriptions and administrations may be recorded.
func (s Status) Admitted() bool {
	return s == StatusHospitalized || s == StatusCritical
}

type Patient struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Species       string          `json:"species"`
	Breed         string          `json:"breed,omitempty"`
	Sex           string          `json:"sex,omitempty"`
	AgeYears      *int            `json:"age_years,omitempty"`
	WeightKg      *float64        `json:"weight_kg,omitempty"`
	OwnerName     string          `json:"owner_name"`
	OwnerPhone    string          `json:"owner_phone,omitempty"`
	OwnerDocument string          `json:"owner_document,omitempty"`
	Diagnosis     string          `json:"diagnosis,omitempty"`
	Status        Status          `json:"status"`
	AdmittedAt    time.Time       `json:"admitted_at"`
	DischargedAt  *time.Time      `json:"discharged_at,omitempty"`
	InitialBudget decimal.Decimal `json:"initial_budget"`
	CurrentBudget decimal.Decimal `json:"current_budget"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// File is metadata for a document stored outside this service.
type File struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	StorageURL  string    `json:"storage_url"`
	Description string    `json:"description,omitempty"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

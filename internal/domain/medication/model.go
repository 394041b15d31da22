package medication

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Route string

const (
	RouteOral    Route = "oral"
	RouteIV      Route = "iv"
	RouteIM      Route = "im"
	RouteSC      Route = "sc"
	RouteTopical Route = "topical"
)

var validRoutes = map[Route]bool{
	RouteOral: true, RouteIV: true, RouteIM: true, RouteSC: true, RouteTopical: true,
}

func (r Route) Valid() bool { return validRoutes[r] }

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusSuspended
}

// Outcome is what happened when a dose was due.
type Outcome string

const (
	OutcomeAdministered    Outcome = "administered"
	OutcomeOmitted         Outcome = "omitted"
	OutcomeAdverseReaction Outcome = "adverse-reaction"
)

func (o Outcome) Valid() bool {
	return o == OutcomeAdministered || o == OutcomeOmitted || o == OutcomeAdverseReaction
}

// Timing is the punctuality of an administration against its scheduled time.
type Timing string

const (
	TimingOnTime Timing = "on-time"
	TimingEarly  Timing = "early"
	TimingLate   Timing = "late"
)

func (t Timing) Valid() bool {
	return t == "" || t == TimingOnTime || t == TimingEarly || t == TimingLate
}

// Medication is a prescription for one hospitalized patient.
type Medication struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	Name         string    `json:"name"`
	Dose         string    `json:"dose"`
	Frequency    string    `json:"frequency"`
	Route        Route     `json:"route"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Instructions string    `json:"instructions,omitempty"`
	PrescribedBy string    `json:"prescribed_by"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Administration records a dose given (or not) to a patient.
type Administration struct {
	ID             uuid.UUID        `json:"id"`
	MedicationID   uuid.UUID        `json:"medication_id"`
	PatientID      uuid.UUID        `json:"patient_id"`
	AdministeredBy string           `json:"administered_by"`
	AdministeredAt time.Time        `json:"administered_at"`
	Dose           string           `json:"dose_given,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Status         Outcome          `json:"status"`
	ScheduledTime  *time.Time       `json:"scheduled_time,omitempty"`
	TimingStatus   Timing           `json:"timing_status,omitempty"`
	Cost           *decimal.Decimal `json:"cost,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Cost is the unit price charged to the patient's budget per administered dose.
type Cost struct {
	ID           uuid.UUID       `json:"id"`
	MedicationID uuid.UUID       `json:"medication_id"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type MedicationFilter struct {
	PatientID uuid.UUID
	Status    Status
}

// AdministrationFilter selects administrations; From is inclusive and To
// exclusive.
type AdministrationFilter struct {
	PatientID    uuid.UUID
	MedicationID uuid.UUID
	From         *time.Time
	To           *time.Time
}

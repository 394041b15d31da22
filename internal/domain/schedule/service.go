package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

// Medications is the slice of the medication service the schedule reads
// from and records into.
type Medications interface {
	GetMedication(ctx context.Context, id uuid.UUID) (*medication.Medication, error)
	ActiveForPatient(ctx context.Context, patientID uuid.UUID) ([]*medication.Medication, error)
	ListAdministrations(ctx context.Context, f medication.AdministrationFilter, limit, offset int) ([]*medication.Administration, int, error)
	RecordAdministration(ctx context.Context, a *medication.Administration) error
}

type Patients interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Observer is notified of every slot classified for a day view.
type Observer interface {
	SlotClassified(status string)
}

// Day is a patient's dose schedule for one calendar day.
type Day struct {
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
	Totals      Totals    `json:"totals"`
}

type Totals struct {
	Slots    int `json:"slots"`
	Given    int `json:"given"`
	Pending  int `json:"pending"`
	Late     int `json:"late"`
	Overdue  int `json:"overdue"`
	Omitted  int `json:"omitted"`
	Reaction int `json:"adverse_reactions"`
}

func totalsOf(entries []Entry) Totals {
	t := Totals{Slots: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case SlotAdministered:
			t.Given++
		case SlotOmitted:
			t.Omitted++
		case SlotAdverseReaction:
			t.Reaction++
		case SlotOverdue:
			t.Overdue++
		case SlotPending:
			t.Pending++
		}
		if e.IsLate && e.Administration == nil {
			t.Late++
		}
	}
	return t
}

type Service struct {
	meds     Medications
	patients Patients
	tx       storage.Transactor
	loc      *time.Location
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService builds the schedule service. Clock times are interpreted in loc,
// the clinic's time zone.
func NewService(meds Medications, patients Patients, tx storage.Transactor, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		meds:     meds,
		patients: patients,
		tx:       tx,
		loc:      loc,
		logger:   logger.With().Str("component", "schedule").Logger(),
		now:      time.Now,
	}
}

func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Location is the clinic time zone used for clock times.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today is the current calendar day in the clinic time zone.
func (s *Service) Today() time.Time {
	return day(s.now(), s.loc)
}

func (s *Service) dayAdministrations(ctx context.Context, f medication.AdministrationFilter, date time.Time) ([]*medication.Administration, error) {
	from := day(date, s.loc)
	y, m, d := from.Date()
	to := time.Date(y, m, d+1, 0, 0, 0, 0, s.loc)
	f.From, f.To = &from, &to
	admins, _, err := s.meds.ListAdministrations(ctx, f, 0, 0)
	return admins, err
}

// DaySchedule derives, matches and classifies the doses of a patient for the
// calendar day containing date.
func (s *Service) DaySchedule(ctx context.Context, patientID uuid.UUID, date time.Time) (*Day, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	meds, err := s.meds.ActiveForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	admins, err := s.dayAdministrations(ctx, medication.AdministrationFilter{PatientID: patientID}, date)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entries := BuildDay(patientID, meds, admins, date, now, s.loc)
	if s.observer != nil {
		for _, e := range entries {
			s.observer.SlotClassified(string(e.Status))
		}
	}
	return &Day{
		PatientID:   p.ID,
		PatientName: p.Name,
		Date:        day(date, s.loc).Format(time.DateOnly),
		GeneratedAt: now.In(s.loc),
		Entries:     entries,
		Totals:      totalsOf(entries),
	}, nil
}

// QuickAdministerRequest records the dose of one scheduled slot now.
type QuickAdministerRequest struct {
	MedicationID   uuid.UUID          `json:"medication_id"`
	ScheduledTime  time.Time          `json:"scheduled_time"`
	Status         medication.Outcome `json:"status"`
	Dose           string             `json:"dose_given"`
	Notes          string             `json:"notes"`
	AdministeredBy string             `json:"administered_by"`
}

// QuickAdminister re-derives the slot at the requested scheduled time and,
// if it is inside the administration window and still unmatched, records
// an administration stamped with the slot and its punctuality. Billing and
// the kardex entry follow from recording the administration.
func (s *Service) QuickAdminister(ctx context.Context, req QuickAdministerRequest) (*Entry, error) {
	const op = "schedule.quick_administer"
	if req.MedicationID == uuid.Nil {
		return nil, apperr.Validation(op, "medication_id is required")
	}
	if req.ScheduledTime.IsZero() {
		return nil, apperr.Validation(op, "scheduled_time is required")
	}
	if req.Status == "" {
		req.Status = medication.OutcomeAdministered
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation(op, "invalid status: %s", req.Status)
	}

	var out *Entry
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.meds.GetMedication(ctx, req.MedicationID)
		if err != nil {
			return err
		}
		slot, ok := findSlot(GenerateSlots(m.PatientID, []*medication.Medication{m}, req.ScheduledTime, s.loc), req.ScheduledTime)
		if !ok {
			return apperr.Validation(op, "%s has no dose scheduled at %s", m.Name, req.ScheduledTime.In(s.loc).Format("2006-01-02 15:04"))
		}

		admins, err := s.slotAdministrations(ctx, slot)
		if err != nil {
			return err
		}
		if MatchSlot(slot, admins) != nil || stampedFor(slot, admins) {
			return apperr.Conflictf(op, "the %s dose of %s is already recorded", slot.ClockTime, m.Name)
		}

		now := s.now()
		if c := Classify(slot, nil, now); !c.CanAdminister {
			return apperr.Validation(op, "the %s dose of %s is outside the administration window", slot.ClockTime, m.Name)
		}

		scheduled := slot.ScheduledTime
		timing, _ := TimingOf(scheduled, now)
		a := &medication.Administration{
			MedicationID:   m.ID,
			PatientID:      m.PatientID,
			AdministeredBy: req.AdministeredBy,
			AdministeredAt: now.UTC(),
			Dose:           req.Dose,
			Notes:          req.Notes,
			Status:         req.Status,
			ScheduledTime:  &scheduled,
			TimingStatus:   timing,
		}
		if err := s.meds.RecordAdministration(ctx, a); err != nil {
			return err
		}
		out = &Entry{Slot: slot, Administration: a, Classification: Classify(slot, a, now)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("medication_id", out.MedicationID.String()).
		Str("slot", out.ClockTime).
		Str("timing", string(out.TimingStatus)).
		Int("difference_minutes", out.TimeDifferenceMinutes).
		Msg("dose administered from schedule")
	return out, nil
}

// slotAdministrations lists the prescription's administrations over the
// slot's calendar day and its whole administer window, which may run past
// midnight.
func (s *Service) slotAdministrations(ctx context.Context, slot Slot) ([]*medication.Administration, error) {
	from := day(slot.ScheduledTime, s.loc)
	y, m, d := from.Date()
	to := time.Date(y, m, d+1, 0, 0, 0, 0, s.loc)
	if early := slot.ScheduledTime.Add(AdministerFrom * time.Minute); early.Before(from) {
		from = early
	}
	if late := slot.ScheduledTime.Add((AdministerUntil + 1) * time.Minute); late.After(to) {
		to = late
	}
	admins, _, err := s.meds.ListAdministrations(ctx, medication.AdministrationFilter{
		MedicationID: slot.MedicationID, From: &from, To: &to,
	}, 0, 0)
	return admins, err
}

// stampedFor reports whether an administration already carries slot's
// scheduled time. Doses given past MatchWindow are only found this way.
func stampedFor(slot Slot, admins []*medication.Administration) bool {
	for _, a := range admins {
		if a.MedicationID == slot.MedicationID && a.ScheduledTime != nil && a.ScheduledTime.Equal(slot.ScheduledTime) {
			return true
		}
	}
	return false
}

func findSlot(slots []Slot, at time.Time) (Slot, bool) {
	for _, slot := range slots {
		if slot.ScheduledTime.Equal(at) {
			return slot, true
		}
	}
	return Slot{}, false
}

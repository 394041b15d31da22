package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
)

// Slot is an expected dose. Slots are derived on every read and never stored.
type Slot struct {
	PatientID      uuid.UUID        `json:"patient_id"`
	MedicationID   uuid.UUID        `json:"medication_id"`
	MedicationName string           `json:"medication_name"`
	Dose           string           `json:"dose"`
	Route          medication.Route `json:"route"`
	ClockTime      string           `json:"clock_time"`
	ScheduledTime  time.Time        `json:"scheduled_time"`
}

// day truncates t to midnight of its calendar day in loc.
func day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return day(a, loc).Equal(day(b, loc))
}

// parseClock splits "HH:MM" into hour and minute.
func parseClock(clock string) (hour, minute int, ok bool) {
	hh, mm, found := strings.Cut(clock, ":")
	if !found {
		return 0, 0, false
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// Covers reports whether date falls on or between the calendar days of the
// prescription's start and end in loc.
func Covers(m *medication.Medication, date time.Time, loc *time.Location) bool {
	target := day(date, loc)
	return !target.Before(day(m.StartDate, loc)) && !target.After(day(m.EndDate, loc))
}

// GenerateSlots expands the active prescriptions of a patient into the dose
// slots of the calendar day containing date, in ascending time order. A
// "00:00" dose falls at the start of that day. A nil patientID accepts
// prescriptions of any patient.
func GenerateSlots(patientID uuid.UUID, meds []*medication.Medication, date time.Time, loc *time.Location) []Slot {
	if loc == nil {
		loc = time.Local
	}
	y, mo, d := day(date, loc).Date()
	var slots []Slot
	for _, m := range meds {
		if m == nil || m.Status != medication.StatusActive {
			continue
		}
		if patientID != uuid.Nil && m.PatientID != patientID {
			continue
		}
		if !Covers(m, date, loc) {
			continue
		}
		for _, clock := range ParseFrequency(m.Frequency) {
			h, mi, ok := parseClock(clock)
			if !ok {
				continue
			}
			slots = append(slots, Slot{
				PatientID:      m.PatientID,
				MedicationID:   m.ID,
				MedicationName: m.Name,
				Dose:           m.Dose,
				Route:          m.Route,
				ClockTime:      clock,
				ScheduledTime:  time.Date(y, mo, d, h, mi, 0, 0, loc),
			})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].ScheduledTime.Before(slots[j].ScheduledTime)
	})
	return slots
}

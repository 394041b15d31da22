package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
)

const (
	// OnTimeTolerance is the band around the scheduled time counted as on time.
	OnTimeTolerance = 15
	// MatchWindow bounds the distance between a slot and the administration
	// matched to it.
	MatchWindow = 120 * time.Minute
	// OverdueAfter is how long an unmatched slot stays late before it is overdue.
	OverdueAfter = 120
	// AdministerFrom and AdministerUntil bound the quick-administer window,
	// in minutes relative to the scheduled time.
	AdministerFrom  = -30
	AdministerUntil = 180
)

type SlotStatus string

const (
	SlotPending         SlotStatus = "pending"
	SlotOverdue         SlotStatus = "overdue"
	SlotAdministered    SlotStatus = SlotStatus(medication.OutcomeAdministered)
	SlotOmitted         SlotStatus = SlotStatus(medication.OutcomeOmitted)
	SlotAdverseReaction SlotStatus = SlotStatus(medication.OutcomeAdverseReaction)
)

// Classification is the punctuality of one slot at a given instant.
type Classification struct {
	Status                SlotStatus        `json:"status"`
	TimingStatus          medication.Timing `json:"timing_status,omitempty"`
	IsOverdue             bool              `json:"is_overdue"`
	IsLate                bool              `json:"is_late"`
	CanAdminister         bool              `json:"can_administer"`
	TimeDifferenceMinutes int               `json:"time_difference_minutes"`
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// MatchSlot returns the administration recorded for slot: same prescription,
// same calendar day and within MatchWindow of the scheduled time. Among
// several candidates the closest wins, then the earliest, then the first in
// input order.
func MatchSlot(slot Slot, admins []*medication.Administration) *medication.Administration {
	loc := slot.ScheduledTime.Location()
	var (
		best     *medication.Administration
		bestDiff time.Duration
	)
	for _, a := range admins {
		if a == nil || a.MedicationID != slot.MedicationID {
			continue
		}
		if !sameDay(a.AdministeredAt, slot.ScheduledTime, loc) {
			continue
		}
		diff := absDuration(a.AdministeredAt.Sub(slot.ScheduledTime))
		if diff > MatchWindow {
			continue
		}
		if best == nil || diff < bestDiff ||
			(diff == bestDiff && a.AdministeredAt.Before(best.AdministeredAt)) {
			best, bestDiff = a, diff
		}
	}
	return best
}

// TimingOf classifies an administration time against its scheduled time.
func TimingOf(scheduled, administered time.Time) (medication.Timing, int) {
	diff := minutes(administered.Sub(scheduled))
	switch {
	case diff < -OnTimeTolerance:
		return medication.TimingEarly, diff
	case diff > OnTimeTolerance:
		return medication.TimingLate, diff
	default:
		return medication.TimingOnTime, diff
	}
}

// Classify computes the status of slot given its matched administration (or
// nil) at instant now. It depends only on its arguments.
func Classify(slot Slot, matched *medication.Administration, now time.Time) Classification {
	if matched != nil {
		timing, diff := TimingOf(slot.ScheduledTime, matched.AdministeredAt)
		return Classification{
			Status:                SlotStatus(matched.Status),
			TimingStatus:          timing,
			IsLate:                timing == medication.TimingLate,
			TimeDifferenceMinutes: diff,
		}
	}

	loc := slot.ScheduledTime.Location()
	diff := minutes(now.Sub(slot.ScheduledTime))
	c := Classification{Status: SlotPending, TimeDifferenceMinutes: diff}
	slotDay, today := day(slot.ScheduledTime, loc), day(now, loc)

	switch {
	case slotDay.Before(today):
		c.Status = SlotOverdue
		c.IsOverdue = true
	case slotDay.After(today):
		// future day: pending and not yet administrable
	default:
		if diff > OverdueAfter {
			c.Status = SlotOverdue
			c.IsOverdue = true
		} else if diff > OnTimeTolerance {
			c.IsLate = true
		}
		c.CanAdminister = diff >= AdministerFrom && diff <= AdministerUntil
	}
	return c
}

// Entry is a slot with its matched administration and classification.
type Entry struct {
	Slot
	Administration *medication.Administration `json:"administration,omitempty"`
	Classification
}

// BuildDay runs generation, matching and classification for one day.
func BuildDay(patientID uuid.UUID, meds []*medication.Medication, admins []*medication.Administration,
	date, now time.Time, loc *time.Location) []Entry {
	slots := GenerateSlots(patientID, meds, date, loc)
	entries := make([]Entry, 0, len(slots))
	for _, slot := range slots {
		matched := MatchSlot(slot, admins)
		entries = append(entries, Entry{
			Slot:           slot,
			Administration: matched,
			Classification: Classify(slot, matched, now),
		})
	}
	return entries
}

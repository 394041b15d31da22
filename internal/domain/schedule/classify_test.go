package schedule

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
)

func slotAt(medID uuid.UUID, scheduled time.Time) Slot {
	return Slot{MedicationID: medID, ClockTime: scheduled.Format("15:04"), ScheduledTime: scheduled}
}

func adminAt(medID uuid.UUID, t time.Time) *medication.Administration {
	return &medication.Administration{ID: uuid.New(), MedicationID: medID, AdministeredAt: t, Status: medication.OutcomeAdministered}
}

func TestMatchSlot(t *testing.T) {
	med := uuid.New()
	slot := slotAt(med, at(2024, 3, 1, 8, 0))

	tests := []struct {
		name   string
		admins []*medication.Administration
		want   int // index into admins, -1 for no match
	}{
		{"none", nil, -1},
		{"other medication", []*medication.Administration{adminAt(uuid.New(), at(2024, 3, 1, 8, 0))}, -1},
		{"exactly at window edge", []*medication.Administration{adminAt(med, at(2024, 3, 1, 10, 0))}, 0},
		{"just outside window", []*medication.Administration{adminAt(med, at(2024, 3, 1, 10, 1))}, -1},
		{"early edge", []*medication.Administration{adminAt(med, at(2024, 3, 1, 6, 0))}, 0},
		{"other day", []*medication.Administration{adminAt(med, at(2024, 3, 2, 8, 0))}, -1},
		{"closest wins", []*medication.Administration{
			adminAt(med, at(2024, 3, 1, 9, 30)),
			adminAt(med, at(2024, 3, 1, 8, 5)),
			adminAt(med, at(2024, 3, 1, 7, 0)),
		}, 1},
		{"equal distance prefers earlier", []*medication.Administration{
			adminAt(med, at(2024, 3, 1, 8, 10)),
			adminAt(med, at(2024, 3, 1, 7, 50)),
		}, 1},
		{"identical times keep input order", []*medication.Administration{
			adminAt(med, at(2024, 3, 1, 8, 20)),
			adminAt(med, at(2024, 3, 1, 8, 20)),
		}, 0},
		{"nil entries skipped", []*medication.Administration{nil, adminAt(med, at(2024, 3, 1, 8, 0))}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSlot(slot, tt.admins)
			if tt.want < 0 {
				if got != nil {
					t.Errorf("expected no match, got %+v", got)
				}
				return
			}
			if got != tt.admins[tt.want] {
				t.Errorf("expected admins[%d], got %+v", tt.want, got)
			}
		})
	}
}

func TestMatchSlot_MidnightDoesNotReachPreviousDay(t *testing.T) {
	med := uuid.New()
	slot := slotAt(med, at(2024, 3, 2, 0, 0))
	late := adminAt(med, at(2024, 3, 1, 23, 50))

	if got := MatchSlot(slot, []*medication.Administration{late}); got != nil {
		t.Errorf("an administration on the previous day must not match, got %+v", got)
	}
}

func TestMatchSlot_Idempotent(t *testing.T) {
	med := uuid.New()
	slot := slotAt(med, at(2024, 3, 1, 8, 0))
	admins := []*medication.Administration{
		adminAt(med, at(2024, 3, 1, 8, 30)),
		adminAt(med, at(2024, 3, 1, 7, 30)),
	}
	first := MatchSlot(slot, admins)
	second := MatchSlot(slot, admins)
	if first != second {
		t.Error("matching the same input twice gave different results")
	}
	if !admins[0].AdministeredAt.Equal(at(2024, 3, 1, 8, 30)) {
		t.Error("matching must not modify its input")
	}
}

func TestClassify_Matched(t *testing.T) {
	med := uuid.New()
	scheduled := at(2024, 3, 1, 8, 0)
	slot := slotAt(med, scheduled)
	now := at(2024, 3, 1, 12, 0)

	tests := []struct {
		offset   int
		timing   medication.Timing
		wantLate bool
	}{
		{0, medication.TimingOnTime, false},
		{15, medication.TimingOnTime, false},
		{16, medication.TimingLate, true},
		{-15, medication.TimingOnTime, false},
		{-16, medication.TimingEarly, false},
		{90, medication.TimingLate, true},
	}
	for _, tt := range tests {
		a := adminAt(med, scheduled.Add(time.Duration(tt.offset)*time.Minute))
		c := Classify(slot, a, now)
		if c.TimingStatus != tt.timing {
			t.Errorf("offset %d: timing %s, want %s", tt.offset, c.TimingStatus, tt.timing)
		}
		if c.IsLate != tt.wantLate {
			t.Errorf("offset %d: is_late %v, want %v", tt.offset, c.IsLate, tt.wantLate)
		}
		if c.TimeDifferenceMinutes != tt.offset {
			t.Errorf("offset %d: difference %d", tt.offset, c.TimeDifferenceMinutes)
		}
		if c.Status != SlotAdministered || c.IsOverdue || c.CanAdminister {
			t.Errorf("offset %d: unexpected classification %+v", tt.offset, c)
		}
	}
}

func TestClassify_MatchedKeepsOutcome(t *testing.T) {
	med := uuid.New()
	slot := slotAt(med, at(2024, 3, 1, 8, 0))
	a := adminAt(med, at(2024, 3, 1, 8, 0))
	a.Status = medication.OutcomeAdverseReaction

	if c := Classify(slot, a, at(2024, 3, 1, 9, 0)); c.Status != SlotAdverseReaction {
		t.Errorf("expected adverse-reaction, got %s", c.Status)
	}
}

func TestClassify_UnmatchedToday(t *testing.T) {
	scheduled := at(2024, 3, 1, 12, 0)
	slot := slotAt(uuid.New(), scheduled)

	tests := []struct {
		minutesAfter  int
		status        SlotStatus
		late, overdue bool
		canAdminister bool
	}{
		{-31, SlotPending, false, false, false},
		{-30, SlotPending, false, false, true},
		{0, SlotPending, false, false, true},
		{15, SlotPending, false, false, true},
		{16, SlotPending, true, false, true},
		{120, SlotPending, true, false, true},
		{121, SlotOverdue, false, true, true},
		{180, SlotOverdue, false, true, true},
		{181, SlotOverdue, false, true, false},
	}
	for _, tt := range tests {
		now := scheduled.Add(time.Duration(tt.minutesAfter) * time.Minute)
		c := Classify(slot, nil, now)
		if c.Status != tt.status || c.IsLate != tt.late || c.IsOverdue != tt.overdue || c.CanAdminister != tt.canAdminister {
			t.Errorf("%d minutes: got %+v", tt.minutesAfter, c)
		}
		if c.TimeDifferenceMinutes != tt.minutesAfter {
			t.Errorf("%d minutes: difference %d", tt.minutesAfter, c.TimeDifferenceMinutes)
		}
	}
}

func TestClassify_UnmatchedPastDay(t *testing.T) {
	slot := slotAt(uuid.New(), at(2024, 3, 1, 20, 0))
	c := Classify(slot, nil, at(2024, 3, 2, 0, 30))

	if c.Status != SlotOverdue || !c.IsOverdue || c.CanAdminister {
		t.Errorf("expected overdue and not administrable, got %+v", c)
	}
}

func TestClassify_UnmatchedFutureDay(t *testing.T) {
	slot := slotAt(uuid.New(), at(2024, 3, 2, 0, 0))
	c := Classify(slot, nil, at(2024, 3, 1, 23, 45))

	if c.Status != SlotPending || c.IsOverdue || c.IsLate || c.CanAdminister {
		t.Errorf("expected pending and not administrable, got %+v", c)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	med := uuid.New()
	slot := slotAt(med, at(2024, 3, 1, 8, 0))
	now := at(2024, 3, 1, 9, 0)
	a := adminAt(med, at(2024, 3, 1, 8, 20))

	if !reflect.DeepEqual(Classify(slot, a, now), Classify(slot, a, now)) {
		t.Error("same input gave different classifications")
	}
	if !reflect.DeepEqual(Classify(slot, nil, now), Classify(slot, nil, now)) {
		t.Error("same input gave different classifications")
	}
}

func TestBuildDay(t *testing.T) {
	pid := uuid.New()
	m := prescription(pid, "cada 12 horas", at(2024, 3, 1, 0, 0), at(2024, 3, 3, 23, 59))
	admins := []*medication.Administration{adminAt(m.ID, at(2024, 3, 1, 8, 25))}

	entries := BuildDay(pid, []*medication.Medication{m}, admins, at(2024, 3, 1, 0, 0), at(2024, 3, 1, 20, 20), clinicLoc)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Administration != admins[0] || entries[0].TimingStatus != medication.TimingLate {
		t.Errorf("expected the 08:00 dose matched and late, got %+v", entries[0])
	}
	if entries[1].Administration != nil || entries[1].Status != SlotPending || !entries[1].CanAdminister {
		t.Errorf("expected the 20:00 dose pending and administrable, got %+v", entries[1])
	}
}

package scheduling

import (
	"testing"
)

func TestGenerateSlots_ExactFit(t *testing.T) {
	shift := &Shift{Name: "Morning", StartTime: "09:00", EndTime: "10:00"}
	slots, err := GenerateSlots(shift, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	want := []string{"09:00", "09:20", "09:40"}
	for i, sl := range slots {
		if sl.StartTime != want[i] {
			t.Errorf("slot %d: expected start %s, got %s", i, want[i], sl.StartTime)
		}
		if sl.DurationMinutes != 20 {
			t.Errorf("slot %d: expected duration 20, got %d", i, sl.DurationMinutes)
		}
	}
}

func TestGenerateSlots_DropsPartialRemainder(t *testing.T) {
	shift := &Shift{Name: "Short", StartTime: "09:00", EndTime: "09:50"}
	slots, err := GenerateSlots(shift, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 50 minutes / 20 = 2 whole slots; the trailing 10 minutes are dropped.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if last := slots[len(slots)-1].StartTime; last != "09:20" {
		t.Errorf("expected last slot at 09:20, got %s", last)
	}
}

func TestGenerateSlots_MidnightWrap(t *testing.T) {
	shift := &Shift{Name: "Night", StartTime: "22:00", EndTime: "06:00"}
	slots, err := GenerateSlots(shift, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 22:00 through 06:00 next day is 8 hours.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	if slots[0].StartTime != "22:00" {
		t.Errorf("expected first slot at 22:00, got %s", slots[0].StartTime)
	}
	if slots[2].StartTime != "00:00" {
		t.Errorf("expected wrap to 00:00, got %s", slots[2].StartTime)
	}
	if slots[7].StartTime != "05:00" {
		t.Errorf("expected last slot at 05:00, got %s", slots[7].StartTime)
	}
}

func TestGenerateSlots_NonOverlapping(t *testing.T) {
	shift := &Shift{Name: "Day", StartTime: "08:00", EndTime: "17:00"}
	slots, err := GenerateSlots(shift, 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// floor(540/45) = 12 slots.
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
	seen := make(map[string]bool)
	for _, sl := range slots {
		if seen[sl.StartTime] {
			t.Errorf("duplicate slot start %s", sl.StartTime)
		}
		seen[sl.StartTime] = true
	}
}

func TestGenerateSlots_InvalidInput(t *testing.T) {
	if _, err := GenerateSlots(&Shift{StartTime: "9am", EndTime: "17:00"}, 20); err == nil {
		t.Error("expected error for malformed start time")
	}
	if _, err := GenerateSlots(&Shift{StartTime: "09:00", EndTime: "17:00"}, 0); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestParseClock(t *testing.T) {
	got, err := parseClock("13:45")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 13*60+45 {
		t.Errorf("expected %d, got %d", 13*60+45, got)
	}
	if _, err := parseClock("25:00"); err == nil {
		t.Error("expected error for out-of-range hour")
	}
}

func TestFormatClock_WrapsPastMidnight(t *testing.T) {
	if got := formatClock(24*60 + 30); got != "00:30" {
		t.Errorf("expected 00:30, got %s", got)
	}
}

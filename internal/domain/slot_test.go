package domain

import (
	"testing"
	"time"
)

func TestTimeSlotLocked(t *testing.T) {
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name         string
		blockedUntil *time.Time
		want         bool
	}{
		{"no lock", nil, false},
		{"unexpired lock", &future, true},
		{"expired lock self-heals", &past, false},
		{"lock at exactly now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := TimeSlot{BlockedUntil: tt.blockedUntil}
			if got := s.Locked(now); got != tt.want {
				t.Fatalf("Locked = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeSlotBookable(t *testing.T) {
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name string
		slot TimeSlot
		want bool
	}{
		{"free", TimeSlot{IsAvailable: true}, true},
		{"unavailable", TimeSlot{IsAvailable: false}, false},
		{"reserved", TimeSlot{IsAvailable: true, IsReserved: true}, false},
		{"locked", TimeSlot{IsAvailable: true, BlockedUntil: &future}, false},
		{"lock expired", TimeSlot{IsAvailable: true, BlockedUntil: &past}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.Bookable(now); got != tt.want {
				t.Fatalf("Bookable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlockedTimeSlotCovers(t *testing.T) {
	// Mondays 09:00-12:00.
	block := BlockedTimeSlot{DayOfWeek: 1, StartHour: 9, EndHour: 12}
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside the block", monday.Add(10 * time.Hour), monday.Add(11 * time.Hour), true},
		{"overlapping the start", monday.Add(8 * time.Hour), monday.Add(10 * time.Hour), true},
		{"before the block", monday.Add(7 * time.Hour), monday.Add(9 * time.Hour), false},
		{"after the block", monday.Add(12 * time.Hour), monday.Add(13 * time.Hour), false},
		{"same hours on tuesday", tuesday.Add(10 * time.Hour), tuesday.Add(11 * time.Hour), false},
		{"range spanning into monday", monday.Add(-2 * time.Hour), monday.Add(10 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := block.Covers(tt.start, tt.end); got != tt.want {
				t.Fatalf("Covers = %v, want %v", got, tt.want)
			}
		})
	}
}

package config

import (
	"testing"

	"github.com/breaktracker/backend/internal/models"
)

func TestDurationsDefaults(t *testing.T) {
	d, err := Config{}.Durations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed(models.BreakShort) != 15 {
		t.Fatalf("expected default table, got %+v", d)
	}
}

func TestDurationsOverrides(t *testing.T) {
	d, err := Config{BreakDurations: "short:10, lunch:45"}.Durations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed(models.BreakShort) != 10 || d.Allowed(models.BreakLunch) != 45 {
		t.Fatalf("expected overrides applied, got %+v", d)
	}
	if d.Allowed(models.BreakMeeting) != 60 {
		t.Fatalf("expected untouched defaults to survive, got %+v", d)
	}
}

func TestDurationsRejectsUnknownType(t *testing.T) {
	if _, err := (Config{BreakDurations: "nap:10"}).Durations(); err == nil {
		t.Fatalf("expected error for unknown break type")
	}
}

func TestDurationsRejectsPunchWindow(t *testing.T) {
	if _, err := (Config{BreakDurations: "punch_in:5"}).Durations(); err == nil {
		t.Fatalf("expected error for punch duration override")
	}
}

func TestDurationsRejectsBadMinutes(t *testing.T) {
	if _, err := (Config{BreakDurations: "short:soon"}).Durations(); err == nil {
		t.Fatalf("expected error for non-numeric minutes")
	}
}

package nursing

import (
	"errors"
	"testing"
	"time"
)

func TestFixture(t *testing.T) {
	entries, err := Fixture()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.PatientName != "John Smith" || first.Medication != "Paracetamol 500mg" || first.Time != "08:00" {
		t.Errorf("unexpected first entry %+v", first)
	}
	for _, e := range entries {
		if e.Administered {
			t.Errorf("entry %d should start pending", e.ID)
		}
	}
}

func TestFixture_ReturnsIndependentCopies(t *testing.T) {
	a, _ := Fixture()
	a[0].Medication = "changed"
	b, _ := Fixture()
	if b[0].Medication != "Paracetamol 500mg" {
		t.Error("fixture was mutated through a previous result")
	}
}

func TestAdminister(t *testing.T) {
	entries, _ := Fixture()
	at := time.Date(2024, 6, 1, 8, 5, 0, 0, time.UTC)

	done, err := entries[0].Administer("Nurse Joy", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done.Administered || done.AdministeredBy != "Nurse Joy" || !done.AdministeredAt.Equal(at) {
		t.Errorf("unexpected entry %+v", done)
	}
	if entries[0].Administered {
		t.Error("receiver was mutated")
	}

	if _, err := done.Administer("Nurse Joy", at); !errors.Is(err, ErrAlreadyAdministered) {
		t.Errorf("expected ErrAlreadyAdministered, got %v", err)
	}
}

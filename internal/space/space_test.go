package space

import "testing"

func TestRequiredAppliesSlackFactor(t *testing.T) {
	got := Required(1.1, 1000, 500)
	want := uint64(1650)
	if got != want {
		t.Fatalf("Required() = %v, want %v", got, want)
	}
}

func TestRequiredNoSlack(t *testing.T) {
	if got := Required(1.0, 2000, 0); got != 2000 {
		t.Fatalf("Required() = %v, want 2000", got)
	}
}

func TestPreflightAgainstCurrentFilesystem(t *testing.T) {
	ok, free, err := Preflight(".", 1)
	if err != nil {
		t.Fatalf("Preflight() returned unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected 1 byte to always fit; free=%v", free)
	}
}

func TestPreflightRejectsImpossibleRequirement(t *testing.T) {
	ok, _, err := Preflight(".", ^uint64(0))
	if err != nil {
		t.Fatalf("Preflight() returned unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected an impossibly large requirement to fail preflight")
	}
}

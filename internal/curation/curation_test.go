package curation

import (
	"os"
	"path/filepath"
	"testing"
)

func mkfile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestMatchFindsCompleteCuration(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "1234567_Smith", "v02", "UAL_RDM")
	mkfile(t, filepath.Join(base, "Deposit Agreement.pdf"))
	mkfile(t, filepath.Join(base, "redata-depositreview.docx"))
	mkfile(t, filepath.Join(base, "item-trello.pdf"))

	match, ok, err := Match(root, 1234567, 2)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	if !match.Complete() {
		t.Fatalf("expected Complete() true, got %+v", match)
	}
}

func TestMatchUnmatchedWhenAuthorDirMissing(t *testing.T) {
	root := t.TempDir()
	_, ok, err := Match(root, 999, 1)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match when the author directory doesn't exist")
	}
}

func TestMatchIncompleteWhenArtifactsMissing(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "1234567_Smith", "v01", "UAL_RDM")
	mkfile(t, filepath.Join(base, "Deposit Agreement.pdf"))

	match, ok, err := Match(root, 1234567, 1)
	if err != nil {
		t.Fatalf("Match() returned unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected the directories to be found (matched-but-not-copyable)")
	}
	if match.Complete() {
		t.Fatalf("expected Complete() false when review artifacts are missing")
	}
}

func TestUALRDMBytesSumsFileSizes(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "1234567_Smith", "v01", "UAL_RDM")
	mkfile(t, filepath.Join(base, "a.pdf"))
	mkfile(t, filepath.Join(base, "b.pdf"))

	match, ok, err := Match(root, 1234567, 1)
	if err != nil || !ok {
		t.Fatalf("Match() setup failed: ok=%v err=%v", ok, err)
	}
	total, err := UALRDMBytes(root, match)
	if err != nil {
		t.Fatalf("UALRDMBytes() returned unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("UALRDMBytes() = %v, want 2 (two 1-byte files)", total)
	}
}

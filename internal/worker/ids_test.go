package worker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadIdentifiers(t *testing.T) {
	input := `
# retry list
A-001
A-002

- A-003
A-001
  A-004
`
	ids, err := ReadIdentifiers(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadIdentifiers failed: %v", err)
	}

	want := []string{"A-001", "A-002", "A-003", "A-004"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("identifiers mismatch (-want +got):\n%s", diff)
	}
}

func TestReadIdentifiersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("案件-1\n案件-2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ids, err := ReadIdentifiersFromFile(path)
	if err != nil {
		t.Fatalf("ReadIdentifiersFromFile failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "案件-1" {
		t.Errorf("unexpected identifiers: %v", ids)
	}
}

func TestReadIdentifiersFromFile_Missing(t *testing.T) {
	if _, err := ReadIdentifiersFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

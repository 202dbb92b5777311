package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileStore_CommitAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "progress.json")

	store := NewFileStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}

	for _, id := range []string{"案件-2", "A-001", "案件-2"} {
		if err := store.Commit(id); err != nil {
			t.Fatalf("Commit(%s) failed: %v", id, err)
		}
	}

	reloaded := NewFileStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"案件-2", "A-001"}, reloaded.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if !reloaded.Completed("A-001") || reloaded.Completed("A-002") {
		t.Error("Completed does not reflect the persisted set")
	}
}

func TestFileStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	store := NewFileStore(path)
	if err := store.Commit("案件<1>"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"案件<1>"`) {
		t.Errorf("identifiers should be stored unescaped: %s", data)
	}
	if !strings.HasPrefix(string(data), "[\n  ") {
		t.Errorf("expected an indented JSON list: %s", data)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	if err := os.WriteFile(path, []byte(`["A-001", `), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("corrupt checkpoint should load as empty, got %v", err)
	}
	if len(store.IDs()) != 0 {
		t.Errorf("expected empty set, got %v", store.IDs())
	}

	if err := store.Commit("A-002"); err != nil {
		t.Fatal(err)
	}
	reloaded := NewFileStore(path)
	_ = reloaded.Load()
	if diff := cmp.Diff([]string{"A-002"}, reloaded.IDs()); diff != "" {
		t.Errorf("commit should replace the corrupt file (-want +got):\n%s", diff)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "progress.json"))
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Commit(id); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the checkpoint file, found %d entries", len(entries))
	}
}

func TestFileStore_FailedCommitKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	store := NewFileStore(path)
	if err := store.Commit("a"); err != nil {
		t.Fatal(err)
	}

	// a directory in place of the file makes the rename fail
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "x"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.Commit("b"); err == nil {
		t.Fatal("expected commit to fail")
	}
	if store.Completed("b") {
		t.Error("a failed commit must not mark the item completed")
	}
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	if err := s.Commit("x"); err != nil {
		t.Fatal(err)
	}
	if s.Completed("x") || len(s.IDs()) != 0 {
		t.Error("NopStore should not remember commits")
	}
}

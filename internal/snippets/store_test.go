package snippets

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snippets.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "fib", "func fib(n int) int { ... }"); err != nil {
		t.Fatal(err)
	}

	sn, err := s.Get(ctx, "fib")
	if err != nil {
		t.Fatal(err)
	}
	if sn.Code != "func fib(n int) int { ... }" {
		t.Fatalf("got %q", sn.Code)
	}
	if sn.CreatedAt.IsZero() || sn.UpdatedAt.IsZero() {
		t.Fatal("timestamps not recorded")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "x", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "x", "v2"); err != nil {
		t.Fatal(err)
	}

	sn, err := s.Get(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if sn.Code != "v2" {
		t.Fatalf("got %q, want the overwritten value", sn.Code)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("overwrite must not add a row, got %d", len(all))
	}
}

func TestSaveEmptyNameRejected(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(context.Background(), "", "code"); err == nil {
		t.Fatal("empty name must be rejected")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("want not-found error, got %v", err)
	}
}

func TestListOrderedByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Save(ctx, name, "code for "+name); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d snippets", len(all))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if all[i].Name != want {
			t.Errorf("position %d: got %q, want %q", i, all[i].Name, want)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "gone", "code"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "gone"); err == nil {
		t.Fatal("deleted snippet still readable")
	}

	// Deleting a missing name is a no-op.
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("delete of missing name must not fail, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snippets.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "durable", "code"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	sn, err := s2.Get(ctx, "durable")
	if err != nil {
		t.Fatal(err)
	}
	if sn.Code != "code" {
		t.Fatalf("got %q after reopen", sn.Code)
	}
}

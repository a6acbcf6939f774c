package notifystate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func seed(t *testing.T, s *Store, podcast string, numbers []float64) {
	t.Helper()
	if err := s.Commit(Diff{Podcast: podcast, Union: numbers}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDiffNewReturnsOnlyUnseenNumbers(t *testing.T) {
	s := NewStore(t.TempDir())
	seed(t, s, "tgn", []float64{1, 2, 3})

	var dispatched []float64
	dispatch := func(_ context.Context, _ string, numbers []float64) error {
		dispatched = numbers
		return nil
	}
	got, err := s.DiffNew(context.Background(), "tgn", []float64{2, 3, 4, 5}, dispatch)
	if err != nil {
		t.Fatalf("DiffNew: %v", err)
	}
	if want := []float64{4, 5}; !reflect.DeepEqual(got, want) || !reflect.DeepEqual(dispatched, want) {
		t.Fatalf("new = %v dispatched = %v, want %v", got, dispatched, want)
	}
	persisted, _, err := s.Load("tgn")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{1, 2, 3, 4, 5}; !reflect.DeepEqual(persisted, want) {
		t.Fatalf("persisted = %v, want %v", persisted, want)
	}

	dispatched = nil
	got, err = s.DiffNew(context.Background(), "tgn", []float64{2, 3, 4, 5}, dispatch)
	if err != nil {
		t.Fatalf("second DiffNew: %v", err)
	}
	if len(got) != 0 || dispatched != nil {
		t.Fatalf("second call returned %v and dispatched %v", got, dispatched)
	}
}

func TestDiffNewFirstRunAdoptsBaseline(t *testing.T) {
	s := NewStore(t.TempDir())
	called := false
	got, err := s.DiffNew(context.Background(), "wcl", []float64{10, 10.5, 11}, func(context.Context, string, []float64) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("DiffNew: %v", err)
	}
	if called || len(got) != 0 {
		t.Fatalf("first run must not notify: called=%v new=%v", called, got)
	}
	persisted, exists, _ := s.Load("wcl")
	if !exists || !reflect.DeepEqual(persisted, []float64{10, 10.5, 11}) {
		t.Fatalf("persisted = %v (exists=%v)", persisted, exists)
	}
}

func TestDiffNewFailedDispatchLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	seed(t, s, "tgn", []float64{1})
	before, err := os.ReadFile(filepath.Join(dir, "tgn-notified.json"))
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("smtp down")
	_, err = s.DiffNew(context.Background(), "tgn", []float64{1, 2}, func(context.Context, string, []float64) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected dispatch error, got %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(dir, "tgn-notified.json"))
	if string(before) != string(after) {
		t.Fatalf("state changed after failed dispatch: %s -> %s", before, after)
	}
}

func TestPendingNeverShrinksState(t *testing.T) {
	s := NewStore(t.TempDir())
	seed(t, s, "tgn", []float64{1, 2, 3})
	diff, err := s.Pending("tgn", []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(diff.Union, []float64{1, 2, 3}) || len(diff.New) != 0 {
		t.Fatalf("diff = %+v", diff)
	}
}

func TestLoadRejectsCorruptState(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tgn-notified.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(dir).Pending("tgn", []float64{1}); err == nil {
		t.Fatal("expected error for corrupt state")
	}
}

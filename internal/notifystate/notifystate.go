// Package notifystate remembers which episode numbers subscribers have
// already been told about and computes the new ones on each run.
package notifystate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"whisperer/internal/fileutil"
	"whisperer/internal/services"
)

// Diff is the outcome of comparing the current feed against the notified
// set.
type Diff struct {
	Podcast string
	// New holds numbers never notified before, ascending.
	New []float64
	// Union is what will be persisted once New has been dispatched.
	Union []float64
	// FirstRun is set when no state file existed yet.
	FirstRun bool
}

// Dispatcher delivers a notification for the new numbers.
type Dispatcher func(ctx context.Context, podcast string, numbers []float64) error

// Store keeps one JSON file per podcast under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(podcast string) string {
	return filepath.Join(s.dir, podcast+"-notified.json")
}

// Load returns the persisted set for podcast. The boolean is false when no
// state exists yet.
func (s *Store) Load(podcast string) ([]float64, bool, error) {
	data, err := os.ReadFile(s.path(podcast))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, services.Wrap(services.ErrLocalIO, "notify", "load state", podcast, err)
	}
	var numbers []float64
	if err := json.Unmarshal(data, &numbers); err != nil {
		return nil, false, services.Wrap(services.ErrLocalIO, "notify", "decode state",
			fmt.Sprintf("%s is corrupt", s.path(podcast)), err)
	}
	return numbers, true, nil
}

// Pending compares current against the persisted set. On the first run the
// current set is adopted as the baseline and nothing counts as new.
func (s *Store) Pending(podcast string, current []float64) (Diff, error) {
	previous, exists, err := s.Load(podcast)
	if err != nil {
		return Diff{}, err
	}
	diff := Diff{Podcast: podcast, FirstRun: !exists}
	seen := make(map[float64]struct{}, len(previous))
	for _, n := range previous {
		seen[n] = struct{}{}
	}
	union := slices.Clone(previous)
	for _, n := range current {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		union = append(union, n)
		if exists {
			diff.New = append(diff.New, n)
		}
	}
	slices.Sort(diff.New)
	slices.Sort(union)
	diff.Union = union
	return diff, nil
}

// Commit persists the union. The persisted set only ever grows.
func (s *Store) Commit(diff Diff) error {
	union := diff.Union
	if union == nil {
		union = []float64{}
	}
	if err := fileutil.WriteJSONAtomic(s.path(diff.Podcast), union); err != nil {
		return services.Wrap(services.ErrLocalIO, "notify", "save state", diff.Podcast, err)
	}
	return nil
}

// DiffNew computes the new numbers, dispatches them when there are any, and
// persists the union only after dispatch succeeded. A failed dispatch leaves
// the state untouched so the next run retries the same numbers.
func (s *Store) DiffNew(ctx context.Context, podcast string, current []float64, dispatch Dispatcher) ([]float64, error) {
	diff, err := s.Pending(podcast, current)
	if err != nil {
		return nil, err
	}
	if len(diff.New) > 0 && dispatch != nil {
		if err := dispatch(ctx, podcast, diff.New); err != nil {
			return nil, err
		}
	}
	if err := s.Commit(diff); err != nil {
		return nil, err
	}
	return diff.New, nil
}

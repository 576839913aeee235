// Package incumbents holds the versioned, immutable incumbent snapshot that
// every inquiry is evaluated against.
package incumbents

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/engine"
)

var (
	ErrDuplicateID = errors.New("duplicate incumbent id")
	// ErrReservedID marks ids that could collide with derived passive-site ids.
	ErrReservedID = errors.New("incumbent id uses reserved passive-site suffix")
)

// Snapshot is never mutated after publication. Receivers is the flattened
// view, passive sites included.
type Snapshot struct {
	Version    uint64
	LoadedAt   time.Time
	Incumbents []model.Incumbent
	Receivers  []model.ReceiverPoint
}

func newSnapshot(version uint64, incs []model.Incumbent, now time.Time) *Snapshot {
	return &Snapshot{
		Version:    version,
		LoadedAt:   now,
		Incumbents: incs,
		Receivers:  engine.Flatten(incs),
	}
}

// Store publishes snapshots atomically. Readers never block; writers are
// serialised so versions are strictly increasing.
type Store struct {
	cur      atomic.Pointer[Snapshot]
	mu       sync.Mutex
	now      func() time.Time
	onChange func(*Snapshot)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithOnChange registers a hook called after each publication.
func WithOnChange(fn func(*Snapshot)) Option { return func(s *Store) { s.onChange = fn } }

func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Current returns the latest snapshot, or an empty version-0 snapshot when
// nothing has been loaded.
func (s *Store) Current() *Snapshot {
	if snap := s.cur.Load(); snap != nil {
		return snap
	}
	return &Snapshot{}
}

// Readiness reports whether a snapshot has been published and its version.
func (s *Store) Readiness() (bool, uint64) {
	snap := s.cur.Load()
	if snap == nil {
		return false, 0
	}
	return true, snap.Version
}

// Replace publishes incs as the whole incumbent set.
func (s *Store) Replace(incs []model.Incumbent) (*Snapshot, error) {
	if err := checkIDs(incs); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(slices.Clone(incs)), nil
}

// Upsert adds incumbents or replaces those with matching IDs.
func (s *Store) Upsert(incs []model.Incumbent) (*Snapshot, error) {
	if err := checkIDs(incs); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.Current().Incumbents
	byID := make(map[string]int, len(prev))
	next := slices.Clone(prev)
	for i, inc := range next {
		byID[inc.ID] = i
	}
	for _, inc := range incs {
		if i, ok := byID[inc.ID]; ok {
			next[i] = inc
			continue
		}
		byID[inc.ID] = len(next)
		next = append(next, inc)
	}
	return s.publish(next), nil
}

// Delete removes the named incumbents. Unknown IDs are ignored.
func (s *Store) Delete(ids []string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	next := make([]model.Incumbent, 0, len(s.Current().Incumbents))
	for _, inc := range s.Current().Incumbents {
		if _, ok := drop[inc.ID]; !ok {
			next = append(next, inc)
		}
	}
	return s.publish(next)
}

func (s *Store) publish(incs []model.Incumbent) *Snapshot {
	snap := newSnapshot(s.Current().Version+1, incs, s.now())
	s.cur.Store(snap)
	if s.onChange != nil {
		s.onChange(snap)
	}
	return snap
}

func checkIDs(incs []model.Incumbent) error {
	seen := make(map[string]struct{}, len(incs))
	for _, inc := range incs {
		if inc.ID == "" {
			return fmt.Errorf("incumbent without id")
		}
		if strings.Contains(inc.ID, model.PassiveSiteSep) {
			return fmt.Errorf("%w: %s", ErrReservedID, inc.ID)
		}
		if _, ok := seen[inc.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, inc.ID)
		}
		seen[inc.ID] = struct{}{}
	}
	return nil
}

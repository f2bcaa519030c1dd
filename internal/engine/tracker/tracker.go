// Package tracker implements per-file change detection for one build session.
package tracker

import (
	"context"
	"slices"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const shardCount = 64

// fileState is the change-detection record of one normalized path.
type fileState struct {
	path domain.InternedString

	mu sync.Mutex

	// baseline is what the session compares against. It starts as the stored
	// record and moves forward when the path's generator rewrites it.
	baseline    domain.FileRecord
	hasBaseline bool

	// stored is the record loaded from the state store.
	stored    domain.FileRecord
	hasStored bool

	observed    domain.FileRecord
	hasObserved bool

	refreshed bool
	changed   bool

	generator domain.ActionID
	explicit  []domain.InternedString
	users     []domain.ActionID
}

type shard struct {
	mu    sync.RWMutex
	files map[domain.InternedString]*fileState
}

type settlement struct {
	ok  bool
	ran bool
}

// Tracker is the registry of file states shared by every action of a session.
type Tracker struct {
	hasher ports.FileHasher
	store  ports.StateStore

	shards [shardCount]shard
	group  singleflight.Group

	mu      sync.RWMutex
	settled map[domain.ActionID]settlement
}

// New creates a Tracker that fingerprints files with hasher and persists
// baselines through store. A nil store disables persistence.
func New(hasher ports.FileHasher, store ports.StateStore) *Tracker {
	t := &Tracker{
		hasher:  hasher,
		store:   store,
		settled: make(map[domain.ActionID]settlement),
	}
	for i := range t.shards {
		t.shards[i].files = make(map[domain.InternedString]*fileState)
	}
	return t
}

// state returns the record for path, creating it on first use.
func (t *Tracker) state(path string) *fileState {
	key := domain.NewInternedString(domain.NormalizePath(path))
	sh := &t.shards[fnv1a.HashString64(key.String())%shardCount]

	sh.mu.RLock()
	st, ok := sh.files[key]
	sh.mu.RUnlock()
	if ok {
		return st
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok = sh.files[key]; ok {
		return st
	}
	st = &fileState{path: key}
	sh.files[key] = st
	return st
}

func (t *Tracker) each(fn func(*fileState)) {
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		for _, st := range sh.files {
			fn(st)
		}
		sh.mu.RUnlock()
	}
}

// Load reads the stored baselines. It must be called before the session starts.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	files, err := t.store.LoadFiles(ctx)
	if err != nil {
		return zerr.Wrap(err, "failed to load file records")
	}
	for path, rec := range files {
		if rec.Missing {
			continue
		}
		st := t.state(path)
		st.mu.Lock()
		st.stored, st.hasStored = rec, true
		st.baseline, st.hasBaseline = rec, true
		st.mu.Unlock()
	}
	return nil
}

// Save persists the baselines. The fingerprint observed for a path this session
// replaces the stored one only when every action that used the path settled
// successfully.
func (t *Tracker) Save(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	files := make(map[string]domain.FileRecord)
	t.each(func(st *fileState) {
		st.mu.Lock()
		defer st.mu.Unlock()
		switch {
		case st.hasObserved && !st.observed.Missing && t.allSettled(st.users):
			files[st.path.String()] = st.observed
		case st.hasStored:
			files[st.path.String()] = st.stored
		}
	})
	if err := t.store.SaveFiles(ctx, files); err != nil {
		return zerr.Wrap(err, "failed to save file records")
	}
	return nil
}

func (t *Tracker) allSettled(users []domain.ActionID) bool {
	if len(users) == 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range users {
		if s, ok := t.settled[id]; !ok || !s.ok {
			return false
		}
	}
	return true
}

// RecordGenerator claims path as an output of id. The first claim wins until
// its action has run; an action judged up to date keeps its claim. A
// conflicting claim is a configuration error.
func (t *Tracker) RecordGenerator(path string, id domain.ActionID) error {
	st := t.state(path)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.generator != domain.NoAction && st.generator != id {
		if s, done := t.settlement(st.generator); !done || !s.ran {
			err := zerr.With(zerr.Wrap(domain.ErrDuplicateOutput, "conflicting output"), "path", st.path.String())
			err = zerr.With(err, "generator", st.generator.String())
			return zerr.With(err, "claimant", id.String())
		}
	}
	st.generator = id
	return nil
}

// Generator returns the action that produces path, if any.
func (t *Tracker) Generator(path string) (domain.ActionID, bool) {
	st := t.state(path)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.generator, st.generator != domain.NoAction
}

// AddExplicitDependency makes path report changed whenever one of deps does.
func (t *Tracker) AddExplicitDependency(path string, deps ...string) {
	st := t.state(path)
	keys := domain.NormalizePaths(deps)
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, k := range keys {
		if k != st.path && !slices.Contains(st.explicit, k) {
			st.explicit = append(st.explicit, k)
		}
	}
}

// Use registers id as a reader or writer of path.
func (t *Tracker) Use(path string, id domain.ActionID) {
	st := t.state(path)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !slices.Contains(st.users, id) {
		st.users = append(st.users, id)
	}
}

// Settle marks id as finished for this session. ok reports success, ran
// whether the action actually executed.
func (t *Tracker) Settle(id domain.ActionID, ok, ran bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settled[id] = settlement{ok: ok, ran: ran}
}

func (t *Tracker) settlement(id domain.ActionID) (settlement, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.settled[id]
	return s, ok
}

// IsChanged reports whether path differs from its baseline, was never seen,
// cannot be read, or is produced by an action that has not settled yet.
// The file comparison is memoized until Invalidate.
func (t *Tracker) IsChanged(path string) bool {
	st := t.state(path)
	if t.pendingGenerator(st) {
		return true
	}
	return t.fileChanged(st)
}

// IsChangedFor is IsChanged as seen by the action reader. A path reader
// generates itself is judged by its content alone. A path whose generator ran
// this session, or whose explicit dependencies changed, is always changed.
func (t *Tracker) IsChangedFor(path string, reader domain.ActionID) bool {
	st := t.state(path)

	st.mu.Lock()
	gen := st.generator
	explicit := slices.Clone(st.explicit)
	st.mu.Unlock()

	if gen != domain.NoAction && gen != reader {
		s, done := t.settlement(gen)
		if !done || s.ran {
			return true
		}
	}

	changed := false
	for _, dep := range explicit {
		if t.IsChanged(dep.String()) {
			changed = true
		}
	}
	if t.fileChanged(st) {
		changed = true
	}
	return changed
}

func (t *Tracker) pendingGenerator(st *fileState) bool {
	st.mu.Lock()
	gen := st.generator
	st.mu.Unlock()
	if gen == domain.NoAction {
		return false
	}
	_, done := t.settlement(gen)
	return !done
}

func (t *Tracker) fileChanged(st *fileState) bool {
	st.mu.Lock()
	if st.refreshed {
		changed := st.changed
		st.mu.Unlock()
		return changed
	}
	st.mu.Unlock()

	v, _, _ := t.group.Do(st.path.String(), func() (any, error) {
		st.mu.Lock()
		if st.refreshed {
			changed := st.changed
			st.mu.Unlock()
			return changed, nil
		}
		base, hasBase := st.baseline, st.hasBaseline
		st.mu.Unlock()

		rec, ok, changed := t.observe(st.path.String(), base, hasBase)

		st.mu.Lock()
		st.observed, st.hasObserved = rec, ok
		st.refreshed, st.changed = true, changed
		st.mu.Unlock()
		return changed, nil
	})
	changed, _ := v.(bool)
	return changed
}

// observe fingerprints path against base. Errors count as changed.
func (t *Tracker) observe(path string, base domain.FileRecord, hasBase bool) (domain.FileRecord, bool, bool) {
	rec, err := t.hasher.Stat(path)
	if err != nil {
		return domain.FileRecord{}, false, true
	}
	if rec.Missing {
		return rec, true, true
	}
	if hasBase && !base.Missing && rec.SameStamp(base) {
		rec.Hash = base.Hash
		return rec, true, false
	}

	rec, err = t.hasher.Fingerprint(path)
	if err != nil {
		return domain.FileRecord{}, false, true
	}
	if !hasBase || base.Missing || rec.Missing {
		return rec, true, true
	}
	return rec, true, rec.Hash != base.Hash
}

// Invalidate drops the memoized change status of path.
func (t *Tracker) Invalidate(path string) {
	st := t.state(path)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.refreshed = false
}

// Refresh re-fingerprints a path that was just written and adopts the result
// as the session baseline, so it reads as unchanged until modified again.
func (t *Tracker) Refresh(path string) {
	st := t.state(path)
	key := st.path.String()

	rec, err := t.hasher.Fingerprint(key)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.refreshed = true
	if err != nil {
		st.observed, st.hasObserved = domain.FileRecord{}, false
		st.hasBaseline = false
		st.changed = true
		return
	}
	st.observed, st.hasObserved = rec, true
	st.baseline, st.hasBaseline = rec, !rec.Missing
	st.changed = rec.Missing
}

// Fingerprint returns the record observed for path this session, checking it
// first when needed. The boolean is false when the path could not be read.
func (t *Tracker) Fingerprint(path string) (domain.FileRecord, bool) {
	st := t.state(path)
	t.fileChanged(st)

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.observed, st.hasObserved
}

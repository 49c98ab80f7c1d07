// Package profilestore persists speakermem snapshots in a kv.Store.
//
// Key layout (relative to the store prefix):
//
//	{prefix}/meta            → msgpack-encoded snapshot header
//	{prefix}/profile/{id}    → msgpack-encoded speakermem.Profile
//
// Save writes a full snapshot in one atomic batch and removes profiles
// that are no longer present, so a reader never observes a mix of two
// snapshots.
package profilestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/cocktail/pkg/kv"
	"github.com/haivivi/cocktail/pkg/speakermem"
	"github.com/vmihailenco/msgpack/v5"
)

// Sentinel errors.
var (
	// ErrNoSnapshot is returned by Load when nothing has been saved under
	// the prefix.
	ErrNoSnapshot = errors.New("profilestore: no snapshot")

	// ErrUnsupportedVersion is returned by Load for headers written by an
	// incompatible format.
	ErrUnsupportedVersion = errors.New("profilestore: unsupported format version")
)

// formatVersion is bumped on incompatible encoding changes.
const formatVersion = 1

// DefaultPrefix is used when New is given an empty prefix.
var DefaultPrefix = kv.Key{"cocktail"}

// header is the msgpack record stored under {prefix}/meta.
type header struct {
	Version  int       `msgpack:"version"`
	User     string    `msgpack:"user,omitempty"`
	NextID   int       `msgpack:"next_id"`
	Profiles int       `msgpack:"profiles"`
	SavedAt  time.Time `msgpack:"saved_at"`
}

// Store reads and writes snapshots under one key prefix.
type Store struct {
	kv     kv.Store
	prefix kv.Key
	now    func() time.Time
}

// New returns a Store over s. An empty prefix uses DefaultPrefix.
func New(s kv.Store, prefix kv.Key) *Store {
	if len(prefix) == 0 {
		prefix = DefaultPrefix
	}
	return &Store{kv: s, prefix: prefix, now: time.Now}
}

func (s *Store) metaKey() kv.Key {
	return append(s.prefix[:len(s.prefix):len(s.prefix)], "meta")
}

func (s *Store) profilePrefix() kv.Key {
	return append(s.prefix[:len(s.prefix):len(s.prefix)], "profile")
}

func (s *Store) profileKey(id string) kv.Key {
	return append(s.profilePrefix(), id)
}

// Save replaces the stored snapshot with snap.
func (s *Store) Save(ctx context.Context, snap speakermem.Snapshot) error {
	keep := make(map[string]bool, len(snap.Profiles))
	ops := make([]kv.Op, 0, len(snap.Profiles)+1)
	for i := range snap.Profiles {
		p := &snap.Profiles[i]
		data, err := msgpack.Marshal(p)
		if err != nil {
			return fmt.Errorf("profilestore: encode %s: %w", p.ID, err)
		}
		keep[p.ID] = true
		ops = append(ops, kv.Put(s.profileKey(p.ID), data))
	}

	for entry, err := range s.kv.List(ctx, s.profilePrefix()) {
		if err != nil {
			return err
		}
		id := entry.Key[len(entry.Key)-1]
		if !keep[id] {
			ops = append(ops, kv.Del(entry.Key))
		}
	}

	data, err := msgpack.Marshal(header{
		Version:  formatVersion,
		User:     snap.User,
		NextID:   snap.NextID,
		Profiles: len(snap.Profiles),
		SavedAt:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("profilestore: encode header: %w", err)
	}
	ops = append(ops, kv.Put(s.metaKey(), data))
	return s.kv.Apply(ctx, ops)
}

// Load reads the stored snapshot. Profiles are returned in ID order.
func (s *Store) Load(ctx context.Context) (speakermem.Snapshot, error) {
	data, err := s.kv.Get(ctx, s.metaKey())
	if errors.Is(err, kv.ErrNotFound) {
		return speakermem.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return speakermem.Snapshot{}, err
	}
	var h header
	if err := msgpack.Unmarshal(data, &h); err != nil {
		return speakermem.Snapshot{}, fmt.Errorf("profilestore: decode header: %w", err)
	}
	if h.Version != formatVersion {
		return speakermem.Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	profiles, err := s.List(ctx)
	if err != nil {
		return speakermem.Snapshot{}, err
	}
	return speakermem.Snapshot{Profiles: profiles, User: h.User, NextID: h.NextID}, nil
}

// List returns the stored profiles in ID order without the header.
func (s *Store) List(ctx context.Context) ([]speakermem.Profile, error) {
	var out []speakermem.Profile
	for entry, err := range s.kv.List(ctx, s.profilePrefix()) {
		if err != nil {
			return nil, err
		}
		var p speakermem.Profile
		if err := msgpack.Unmarshal(entry.Value, &p); err != nil {
			return nil, fmt.Errorf("profilestore: decode %s: %w", entry.Key, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Clear removes the snapshot and every stored profile.
func (s *Store) Clear(ctx context.Context) error {
	ops := []kv.Op{kv.Del(s.metaKey())}
	for entry, err := range s.kv.List(ctx, s.profilePrefix()) {
		if err != nil {
			return err
		}
		ops = append(ops, kv.Del(entry.Key))
	}
	return s.kv.Apply(ctx, ops)
}

// Package kv is the persistence layer for profile snapshots. Keys are
// segment paths (e.g. Key{"speaker", "profile", "speaker:000001"}) joined
// with a configurable separator.
//
// Two backends are provided: Badger for on-disk state and Memory for tests.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")

	// ErrInvalidKey is returned for empty keys or segments that contain the
	// separator.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a path of segments.
type Key []string

// String joins the segments with '/'. For display only.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Op is one write in an Apply batch. A nil Value deletes the key.
type Op struct {
	Key   Key
	Value []byte
}

// Put returns an Op that stores value under key.
func Put(key Key, value []byte) Op {
	if value == nil {
		value = []byte{}
	}
	return Op{Key: key, Value: value}
}

// Del returns an Op that removes key.
func Del(key Key) Op { return Op{Key: key} }

// Store is a key-value store with path keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error

	// List yields entries under prefix in lexicographic key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Apply performs all ops atomically: either every op is visible
	// afterwards or none is.
	Apply(ctx context.Context, ops []Op) error

	// Close releases resources.
	Close() error
}

// DefaultSeparator joins key segments when Options.Separator is zero.
const DefaultSeparator byte = '/'

// Options configures key encoding. A nil *Options uses the defaults.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	s := o.sep()
	for _, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, fmt.Errorf("%w: segment %q contains %q", ErrInvalidKey, seg, s)
		}
	}
	return []byte(strings.Join(k, string(s))), nil
}

// prefix encodes k followed by the separator, so that "a/b" does not match
// "a/bc". An empty prefix matches everything.
func (o *Options) prefix(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, nil
	}
	b, err := o.encode(k)
	if err != nil {
		return nil, err
	}
	return append(b, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	return strings.Split(string(b), string(o.sep()))
}

func errSeq(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) { yield(Entry{}, err) }
}

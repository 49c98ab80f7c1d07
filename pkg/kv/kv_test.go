package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/cocktail/pkg/kv"
)

type backend struct {
	name string
	open func(t *testing.T, opts *kv.Options) kv.Store
}

var backends = []backend{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		t.Helper()
		s := kv.NewMemory(opts)
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		t.Helper()
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s kv.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) { fn(t, b.open(t, nil)) })
	}
}

func listKeys(t *testing.T, s kv.Store, prefix kv.Key) []string {
	t.Helper()
	var out []string
	for e, err := range s.List(context.Background(), prefix) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		out = append(out, e.Key.String())
	}
	return out
}

func TestGetSetDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		key := kv.Key{"speaker", "profile", "speaker:000001"}

		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.Set(ctx, key, []byte("a")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Set(ctx, key, []byte("b")); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != "b" {
			t.Fatalf("Get = %q, %v; want b", got, err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(ctx, kv.Key{"missing"}); err != nil {
			t.Fatalf("Delete missing: %v", err)
		}
	})
}

func TestEmptyValue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		if err := s.Set(ctx, kv.Key{"k"}, nil); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, kv.Key{"k"})
		if err != nil || len(got) != 0 {
			t.Fatalf("Get = %q, %v; want empty value", got, err)
		}
	})
}

func TestListPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		for _, k := range []kv.Key{
			{"speaker", "profile", "b"},
			{"speaker", "profile", "a"},
			{"speaker", "meta"},
			{"speaker", "profilex"},
			{"other", "profile", "a"},
		} {
			if err := s.Set(ctx, k, []byte(k.String())); err != nil {
				t.Fatal(err)
			}
		}
		got := listKeys(t, s, kv.Key{"speaker", "profile"})
		want := []string{"speaker/profile/a", "speaker/profile/b"}
		if !slices.Equal(got, want) {
			t.Errorf("List = %v, want %v", got, want)
		}
		if all := listKeys(t, s, nil); len(all) != 5 {
			t.Errorf("List(nil) returned %d entries, want 5", len(all))
		}
	})
}

func TestListEarlyStop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		for _, id := range []string{"1", "2", "3"} {
			s.Set(ctx, kv.Key{"p", id}, []byte(id))
		}
		n := 0
		for _, err := range s.List(ctx, kv.Key{"p"}) {
			if err != nil {
				t.Fatal(err)
			}
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Errorf("iterated %d entries, want 2", n)
		}
	})
}

func TestApply(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		s.Set(ctx, kv.Key{"p", "old"}, []byte("x"))
		err := s.Apply(ctx, []kv.Op{
			kv.Del(kv.Key{"p", "old"}),
			kv.Put(kv.Key{"p", "new1"}, []byte("1")),
			kv.Put(kv.Key{"p", "new2"}, []byte("2")),
		})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		got := listKeys(t, s, kv.Key{"p"})
		if want := []string{"p/new1", "p/new2"}; !slices.Equal(got, want) {
			t.Errorf("after Apply: %v, want %v", got, want)
		}
	})
}

func TestApplyRejectsBadKeyAtomically(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		err := s.Apply(ctx, []kv.Op{
			kv.Put(kv.Key{"p", "ok"}, []byte("1")),
			kv.Put(kv.Key{"p", "bad/seg"}, []byte("2")),
		})
		if !errors.Is(err, kv.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
		if _, err := s.Get(ctx, kv.Key{"p", "ok"}); !errors.Is(err, kv.ErrNotFound) {
			t.Error("a rejected batch must not be partially applied")
		}
	})
}

func TestInvalidKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		if err := s.Set(ctx, nil, []byte("x")); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("empty key: got %v", err)
		}
		if _, err := s.Get(ctx, kv.Key{"a/b"}); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("separator in segment: got %v", err)
		}
		for _, err := range s.List(ctx, kv.Key{"a/b"}) {
			if !errors.Is(err, kv.ErrInvalidKey) {
				t.Errorf("List: got %v", err)
			}
		}
	})
}

func TestCustomSeparator(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t, &kv.Options{Separator: '|'})
			key := kv.Key{"a/b", "c"}
			if err := s.Set(ctx, key, []byte("v")); err != nil {
				t.Fatal(err)
			}
			for e, err := range s.List(ctx, kv.Key{"a/b"}) {
				if err != nil {
					t.Fatal(err)
				}
				if !slices.Equal(e.Key, key) {
					t.Errorf("decoded key = %v, want %v", e.Key, key)
				}
			}
		})
	}
}

func TestCanceledContext(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s kv.Store) {
		ctx, cancel := context.WithCancel(context.Background())
		s.Set(ctx, kv.Key{"p", "1"}, []byte("1"))
		cancel()
		if err := s.Set(ctx, kv.Key{"p", "2"}, []byte("2")); !errors.Is(err, context.Canceled) {
			t.Errorf("Set: got %v, want context.Canceled", err)
		}
		for _, err := range s.List(ctx, kv.Key{"p"}) {
			if !errors.Is(err, context.Canceled) {
				t.Errorf("List: got %v, want context.Canceled", err)
			}
			break
		}
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory(nil)
	v := []byte("abc")
	s.Set(ctx, kv.Key{"k"}, v)
	v[0] = 'X'
	got, _ := s.Get(ctx, kv.Key{"k"})
	got[1] = 'Y'
	again, _ := s.Get(ctx, kv.Key{"k"})
	if string(again) != "abc" {
		t.Errorf("stored value mutated: %q", again)
	}
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, kv.Key{"k"}, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, kv.Key{"k"})
	if err != nil || string(got) != "persisted" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Error("expected error without Dir")
	}
}

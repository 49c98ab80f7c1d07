package speakermem

import (
	"fmt"
	"math"
)

// unitTolerance bounds how far a restored embedding may stray from unit
// length before it is rejected.
const unitTolerance = 1e-3

// Snapshot is a deep copy of the full store state.
type Snapshot struct {
	Profiles []Profile `json:"profiles" msgpack:"profiles"`
	User     string    `json:"user,omitempty" msgpack:"user,omitempty"`
	NextID   int       `json:"next_id" msgpack:"next_id"`
}

// Snapshot captures the store state. Profiles are sorted by ID.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Profiles: m.sorted(),
		User:     m.user,
		NextID:   m.nextID,
	}
}

// Restore replaces the store state with s. The store is left unchanged if
// s is inconsistent: duplicate or empty IDs, more profiles than capacity,
// mixed dimensions, embeddings that are not unit length, or a user that is
// not among the profiles.
func (m *Memory) Restore(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(s.Profiles) > m.cfg.Capacity {
		return fmt.Errorf("%w: %d profiles exceed capacity %d", ErrInvalidSnapshot, len(s.Profiles), m.cfg.Capacity)
	}

	dim := m.cfg.Dim
	profiles := make(map[string]*Profile, len(s.Profiles))
	for i := range s.Profiles {
		p := s.Profiles[i].Clone()
		if p.ID == "" {
			return fmt.Errorf("%w: profile %d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := profiles[p.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidSnapshot, p.ID)
		}
		if dim == 0 {
			dim = len(p.Embedding)
		}
		if len(p.Embedding) != dim || dim == 0 {
			return fmt.Errorf("%w: %s has dimension %d, want %d", ErrInvalidSnapshot, p.ID, len(p.Embedding), dim)
		}
		if n := norm(p.Embedding); math.Abs(n-1) > unitTolerance {
			return fmt.Errorf("%w: %s embedding norm %f", ErrInvalidSnapshot, p.ID, n)
		}
		profiles[p.ID] = &p
	}
	if s.User != "" {
		if _, ok := profiles[s.User]; !ok {
			return fmt.Errorf("%w: user %s not among profiles", ErrInvalidSnapshot, s.User)
		}
	}

	m.profiles = profiles
	m.user = s.User
	m.nextID = s.NextID
	m.dim = dim
	m.logger.Info("speakermem: restored", "profiles", len(profiles), "user", s.User)
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Package speakermem keeps a bounded set of voiceprint profiles and assigns
// stable identities to incoming feature vectors.
//
// # Usage
//
//	mem, err := speakermem.New(speakermem.Config{Capacity: 500, Threshold: 0.75})
//
//	p, err := mem.IdentifyOrRegister(features, speakermem.Metadata{
//	    speakermem.MetaIsSpeech: true,
//	})
//	if errors.Is(err, speakermem.ErrInvalidEmbedding) {
//	    // drop this observation and continue
//	}
//
// # Matching
//
// Each call normalizes the input and compares it by cosine similarity with
// every stored embedding. The best profile strictly above Threshold wins
// (ties go to the lowest ID). A match refreshes LastHeard and blends the
// embedding as normalize(0.9*old + 0.1*new); otherwise a new profile is
// registered and, if the store is over capacity, the least recently heard
// profile is evicted.
//
// # User designation
//
// At most one profile is the designated user ([Memory.DesignateUser]). The
// designation lives on the store, not in loose labels, so there is never
// more than one.
//
// Memory is safe for concurrent use. Every call is serialized so that
// match-then-mutate is atomic.
package speakermem

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Sentinel errors.
var (
	// ErrInvalidEmbedding is returned for empty, zero, non-finite or
	// wrong-dimension vectors.
	ErrInvalidEmbedding = errors.New("speakermem: invalid embedding")

	// ErrInvalidConfiguration is returned by New for out-of-range parameters.
	ErrInvalidConfiguration = errors.New("speakermem: invalid configuration")

	// ErrProfileNotFound is returned when a profile ID is not in the store.
	ErrProfileNotFound = errors.New("speakermem: profile not found")

	// ErrInvalidSnapshot is returned by Restore for inconsistent snapshots.
	ErrInvalidSnapshot = errors.New("speakermem: invalid snapshot")
)

// Profile labels.
const (
	LabelSpeaker     = "speaker"
	LabelSoundSource = "sound_source"
	LabelUser        = "user"
)

// DefaultName is the name of profiles registered without one.
const DefaultName = "unknown_speaker"

// blendWeight is the weight of a new observation in the embedding EMA.
const blendWeight = 0.1

// Config controls store behavior.
type Config struct {
	// Dim is the embedding dimension. Zero adopts the dimension of the
	// first embedding seen.
	Dim int `yaml:"dim" validate:"gte=0"`

	// Capacity is the maximum number of profiles. Default: 500.
	Capacity int `yaml:"capacity" validate:"gte=0"`

	// Threshold is the cosine similarity a profile must exceed to match.
	// Zero selects the default 0.75, so config files must give a positive
	// value.
	Threshold float32 `yaml:"threshold" validate:"gt=0,lte=1"`

	// Prefix is prepended to generated IDs. Default: "speaker".
	Prefix string `yaml:"prefix"`
}

func (c *Config) defaults() {
	if c.Capacity == 0 {
		c.Capacity = 500
	}
	if c.Threshold == 0 {
		c.Threshold = 0.75
	}
	if c.Prefix == "" {
		c.Prefix = "speaker"
	}
}

func (c *Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfiguration, c.Capacity)
	}
	if c.Dim < 0 {
		return fmt.Errorf("%w: dim must not be negative, got %d", ErrInvalidConfiguration, c.Dim)
	}
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		return fmt.Errorf("%w: threshold must be in [0, 1], got %g", ErrInvalidConfiguration, c.Threshold)
	}
	return nil
}

// Option configures a Memory.
type Option func(*Memory)

// WithClock sets the time source used for LastHeard. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// Memory is a bounded store of voiceprint profiles.
type Memory struct {
	mu       sync.Mutex
	cfg      Config
	dim      int
	profiles map[string]*Profile
	user     string
	nextID   int

	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty Memory.
func New(cfg Config, opts ...Option) (*Memory, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		cfg:      cfg,
		dim:      cfg.Dim,
		profiles: make(map[string]*Profile),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Memory) Config() Config { return m.cfg }

// Identification describes the outcome of one Identify call.
type Identification struct {
	// Profile is a copy of the matched or newly registered profile.
	Profile Profile

	// Matched is true when an existing profile was updated.
	Matched bool

	// Similarity is the cosine similarity to the matched profile before
	// blending. Zero for new registrations.
	Similarity float32

	// Evicted is the profile removed to make room, if any.
	Evicted *Profile
}

// IdentifyOrRegister matches emb against the store, updating the matched
// profile or registering a new one, and returns a copy of the result.
func (m *Memory) IdentifyOrRegister(emb []float32, md Metadata) (Profile, error) {
	id, err := m.Identify(emb, md)
	if err != nil {
		return Profile{}, err
	}
	return id.Profile, nil
}

// Identify is IdentifyOrRegister with details about what happened.
func (m *Memory) Identify(emb []float32, md Metadata) (Identification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim != 0 && len(emb) != m.dim {
		return Identification{}, fmt.Errorf("%w: dimension %d, want %d", ErrInvalidEmbedding, len(emb), m.dim)
	}
	unit, err := Normalize(emb)
	if err != nil {
		return Identification{}, err
	}
	if m.dim == 0 {
		m.dim = len(unit)
	}
	now := m.now()

	if best, sim := m.bestMatch(unit); best != nil {
		best.observe(unit, now, sim, md)
		m.logger.Debug("speakermem: matched", "id", best.ID, "similarity", sim)
		return Identification{Profile: best.Clone(), Matched: true, Similarity: sim}, nil
	}

	p := m.register(unit, now, md)
	res := Identification{Profile: p.Clone()}
	if len(m.profiles) > m.cfg.Capacity {
		ev := m.evictOldest()
		res.Evicted = &ev
	}
	return res, nil
}

// bestMatch returns the profile with the highest similarity strictly above
// the threshold, preferring the lowest ID on ties. Must be called with mu held.
func (m *Memory) bestMatch(unit []float32) (*Profile, float32) {
	var best *Profile
	var bestSim float32
	for _, p := range m.profiles {
		sim := Similarity(unit, p.Embedding)
		if !(sim > m.cfg.Threshold) {
			continue
		}
		if best == nil || sim > bestSim || (sim == bestSim && compareID(p.ID, best.ID) < 0) {
			best, bestSim = p, sim
		}
	}
	return best, bestSim
}

// register inserts a new profile. Must be called with mu held.
func (m *Memory) register(unit []float32, now time.Time, md Metadata) *Profile {
	label := LabelSoundSource
	if md.IsSpeech() {
		label = LabelSpeaker
	}
	name := md.Name()
	if name == "" {
		name = DefaultName
	}
	p := &Profile{
		ID:            m.allocID(),
		Name:          name,
		Label:         label,
		Embedding:     unit,
		FirstHeard:    now,
		LastHeard:     now,
		TotalDuration: md.Duration(),
		Confidence:    1,
		Metadata:      md.clone(),
	}
	m.profiles[p.ID] = p
	m.logger.Info("speakermem: registered", "id", p.ID, "label", p.Label, "profiles", len(m.profiles))
	return p
}

// evictOldest removes the profile with the smallest LastHeard, preferring
// the lowest ID on ties. Must be called with mu held and a non-empty store.
func (m *Memory) evictOldest() Profile {
	var oldest *Profile
	for _, p := range m.profiles {
		if oldest == nil || p.LastHeard.Before(oldest.LastHeard) ||
			(p.LastHeard.Equal(oldest.LastHeard) && compareID(p.ID, oldest.ID) < 0) {
			oldest = p
		}
	}
	delete(m.profiles, oldest.ID)
	if m.user == oldest.ID {
		m.user = ""
		m.logger.Warn("speakermem: designated user evicted", "id", oldest.ID)
	}
	m.logger.Info("speakermem: evicted", "id", oldest.ID, "last_heard", oldest.LastHeard)
	return *oldest
}

// DesignateUser marks the profile as the primary user. Its label becomes
// "user"; a previously designated profile reverts to "speaker".
func (m *Memory) DesignateUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if prev, ok := m.profiles[m.user]; ok && prev.ID != id {
		prev.Label = LabelSpeaker
	}
	p.Label = LabelUser
	m.user = id
	m.logger.Info("speakermem: user designated", "id", id)
	return nil
}

// ClearUser removes the user designation, if any.
func (m *Memory) ClearUser() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.profiles[m.user]; ok {
		prev.Label = LabelSpeaker
	}
	m.user = ""
}

// UserProfile returns the designated user profile.
func (m *Memory) UserProfile() (Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[m.user]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// UserID returns the designated user ID, or "" if none.
func (m *Memory) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Profile returns a copy of the profile with the given ID.
func (m *Memory) Profile(id string) (Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// Profiles returns copies of all profiles sorted by ID.
func (m *Memory) Profiles() []Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted()
}

// Len returns the number of stored profiles.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

func (m *Memory) sorted() []Profile {
	out := make([]Profile, 0, len(m.profiles))
	ids := slices.Collect(maps.Keys(m.profiles))
	slices.SortFunc(ids, compareID)
	for _, id := range ids {
		out = append(out, m.profiles[id].Clone())
	}
	return out
}

// compareID orders IDs by length, then lexically. For generated IDs this is
// allocation order, also once the sequence outgrows its zero padding.
func compareID(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// allocID generates the next unused ID. Must be called with mu held.
func (m *Memory) allocID() string {
	for {
		m.nextID++
		id := fmt.Sprintf("%s:%06d", m.cfg.Prefix, m.nextID)
		if _, taken := m.profiles[id]; !taken {
			return id
		}
	}
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, fmt.Errorf("%w: zero norm", ErrInvalidEmbedding)
	}
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: non-finite component", ErrInvalidEmbedding)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Similarity returns the dot product of a and b, which is the cosine
// similarity when both are unit length. Mismatched lengths give -1.
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return -1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}

// Package attention decides which active sound source the listener should
// focus on.
//
// The controller scores each source and commits to the strongest one above
// a noise floor. Once it focuses, it holds that focus for at least MinFocus
// so that a new focus does not flap, and it gives the focus up after
// MaxFocus so that another source gets a chance.
//
// Priority of a source:
//
//	1.0 × UserVoicePriority (if designated user)
//	    × SpeakerLabelBoost (if label is "speaker")
//	    × clamp(intensity, 0, 1)
package attention

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// ErrInvalidConfiguration is returned by New for out-of-range parameters.
var ErrInvalidConfiguration = errors.New("attention: invalid configuration")

// speakerLabel is the profile label that receives SpeakerLabelBoost.
const speakerLabel = "speaker"

// Mode is the controller mode.
type Mode int

const (
	// Scan means no source is focused.
	Scan Mode = iota
	// Focus means a source is held.
	Focus
	// Track is reserved; it behaves like Scan.
	Track
	// Idle is reserved; it behaves like Scan.
	Idle
)

func (m Mode) String() string {
	switch m {
	case Scan:
		return "scan"
	case Focus:
		return "focus"
	case Track:
		return "track"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Source is an active sound source for one decision.
type Source struct {
	ProfileID string  `json:"profile_id"`
	Label     string  `json:"label"`
	Intensity float64 `json:"intensity"`
}

// State is the controller state.
type State struct {
	Mode       Mode
	FocusID    string
	FocusStart time.Time
}

// Config controls focus decisions.
type Config struct {
	// MinFocus is the hysteresis floor. Default: 800ms.
	MinFocus time.Duration `yaml:"min_focus" validate:"gte=0"`

	// MaxFocus is the forced release ceiling. Default: 10s.
	MaxFocus time.Duration `yaml:"max_focus" validate:"gte=0"`

	// NoiseThreshold is the priority a source must exceed to be focused.
	// Zero selects the default 0.2, so config files must give a positive
	// value.
	NoiseThreshold float64 `yaml:"noise_threshold" validate:"gt=0,lte=1"`

	// UserVoicePriority multiplies the designated user's priority.
	// Default: 2.0.
	UserVoicePriority float64 `yaml:"user_voice_priority" validate:"gte=0"`

	// NewSourcePriority is carried for configuration compatibility and is
	// not applied to scores. Default: 1.5.
	NewSourcePriority float64 `yaml:"new_source_priority" validate:"gte=0"`

	// SpeakerLabelBoost multiplies the priority of "speaker" sources.
	// Default: 1.2.
	SpeakerLabelBoost float64 `yaml:"speaker_label_boost" validate:"gte=0"`
}

func (c *Config) defaults() {
	if c.MinFocus == 0 {
		c.MinFocus = 800 * time.Millisecond
	}
	if c.MaxFocus == 0 {
		c.MaxFocus = 10 * time.Second
	}
	if c.NoiseThreshold == 0 {
		c.NoiseThreshold = 0.2
	}
	if c.UserVoicePriority == 0 {
		c.UserVoicePriority = 2.0
	}
	if c.NewSourcePriority == 0 {
		c.NewSourcePriority = 1.5
	}
	if c.SpeakerLabelBoost == 0 {
		c.SpeakerLabelBoost = 1.2
	}
}

func (c *Config) validate() error {
	if c.MinFocus <= 0 || c.MaxFocus <= 0 {
		return fmt.Errorf("%w: focus durations must be positive", ErrInvalidConfiguration)
	}
	if c.MaxFocus < c.MinFocus {
		return fmt.Errorf("%w: max_focus %v below min_focus %v", ErrInvalidConfiguration, c.MaxFocus, c.MinFocus)
	}
	if !(c.NoiseThreshold >= 0 && c.NoiseThreshold <= 1) {
		return fmt.Errorf("%w: noise_threshold must be in [0, 1], got %g", ErrInvalidConfiguration, c.NoiseThreshold)
	}
	for name, v := range map[string]float64{
		"user_voice_priority": c.UserVoicePriority,
		"new_source_priority": c.NewSourcePriority,
		"speaker_label_boost": c.SpeakerLabelBoost,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfiguration, name, v)
		}
	}
	return nil
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller holds focus state across decisions. It is safe for concurrent
// use, but decisions are expected to come from one owner per tick.
type Controller struct {
	cfg Config

	mu    sync.Mutex
	state State

	now    func() time.Time
	logger *slog.Logger
}

// New creates a Controller in Scan mode.
func New(cfg Config, opts ...Option) (*Controller, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns to Scan with no focus.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
}

// Priority scores src for the given designated user. Intensity is clamped
// to [0, 1] first: negative and NaN values count as 0, values above 1 as 1.
func (c *Controller) Priority(src Source, userID string) float64 {
	p := 1.0
	if userID != "" && src.ProfileID == userID {
		p *= c.cfg.UserVoicePriority
	}
	if src.Label == speakerLabel {
		p *= c.cfg.SpeakerLabelBoost
	}
	return p * clamp01(src.Intensity)
}

// DecideFocus returns the profile ID to focus on for this tick, or false if
// none.
func (c *Controller) DecideFocus(sources []Source, userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.state.Mode == Focus {
		elapsed := now.Sub(c.state.FocusStart)
		if elapsed < c.cfg.MinFocus {
			return c.state.FocusID, true
		}
		if elapsed > c.cfg.MaxFocus {
			c.logger.Info("attention: focus released", "id", c.state.FocusID, "held", elapsed)
			c.state = State{Mode: Scan}
		}
	}

	if len(sources) == 0 {
		c.state = State{Mode: Scan}
		return "", false
	}

	best, bestScore := -1, math.Inf(-1)
	for i, src := range sources {
		if s := c.Priority(src, userID); s > bestScore {
			best, bestScore = i, s
		}
	}
	if !(bestScore > c.cfg.NoiseThreshold) {
		c.logger.Debug("attention: below noise threshold", "priority", bestScore)
		return "", false
	}

	winner := sources[best].ProfileID
	if c.state.Mode != Focus || c.state.FocusID != winner {
		c.logger.Info("attention: focus switched", "from", c.state.FocusID, "to", winner, "priority", bestScore)
		c.state = State{Mode: Focus, FocusID: winner, FocusStart: now}
	}
	return winner, true
}

func clamp01(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	return min(x, 1)
}

// Package sampler slices a raw audio buffer into a fixed number of
// time-stamped feature observations ("particles").
//
// # Usage
//
//	ext := sampler.NewSyntheticSeeded(128, 42)
//	s, err := sampler.New(sampler.Config{ParticleCount: 10}, ext)
//	particles := s.Sample(frame, 500*time.Millisecond, 10)
//
// Feature extraction is pluggable through [Extractor]: [Synthetic]
// weights a seeded random basis by simple signal descriptors, and
// [Fbank] summarizes each slice with log mel filterbank energies. The coarse
// [SourceType] of each particle comes from a [Classifier] and is advisory
// only.
//
// A Sampler does not own any pipeline state. The last particle set is cached
// for diagnostics ([Sampler.Last]) and plays no part in sampling.
package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/cocktail/pkg/audio/pcm"
)

// ErrInvalidConfiguration is returned by New for out-of-range parameters.
var ErrInvalidConfiguration = errors.New("sampler: invalid configuration")

// SourceType is a coarse classification of what produced a particle.
type SourceType int

const (
	SourceUnknown SourceType = iota
	SourceVoiceprint
	SourceEmotion
	SourceEnvironment
	SourceSpeech
)

func (t SourceType) String() string {
	switch t {
	case SourceUnknown:
		return "unknown"
	case SourceVoiceprint:
		return "voiceprint"
	case SourceEmotion:
		return "emotion"
	case SourceEnvironment:
		return "environment"
	case SourceSpeech:
		return "speech"
	default:
		return fmt.Sprintf("SourceType(%d)", int(t))
	}
}

// IsSpeech reports whether the type describes a human voice.
func (t SourceType) IsSpeech() bool {
	return t == SourceSpeech || t == SourceVoiceprint
}

// Particle is one observation extracted from a slice of an audio buffer.
type Particle struct {
	// Timestamp is the slice start, relative to the buffer start.
	Timestamp time.Duration

	// Span is the length of the slice.
	Span time.Duration

	// FreqLow and FreqHigh bound the band (Hz) carrying the most energy.
	FreqLow, FreqHigh float32

	// Intensity is the slice level in [0, 1].
	Intensity float64

	// Features is the feature vector, not necessarily unit length.
	Features []float32

	// Source is the estimated source type.
	Source SourceType
}

// Config controls sampling.
type Config struct {
	// ParticleCount is the default number of particles per pass. Default: 10.
	ParticleCount int `yaml:"particle_count" validate:"gte=0"`

	// Format is the PCM layout of incoming buffers. Default: L16Mono16K.
	Format pcm.Format `yaml:"-" json:"-"`

	// FreqLow and FreqHigh bound the analyzed band in Hz.
	// Default: 20 and 7600.
	FreqLow  float32 `yaml:"freq_low" validate:"gte=0"`
	FreqHigh float32 `yaml:"freq_high" validate:"gte=0"`
}

func (c *Config) defaults() {
	if c.ParticleCount == 0 {
		c.ParticleCount = 10
	}
	if c.FreqLow == 0 && c.FreqHigh == 0 {
		c.FreqLow, c.FreqHigh = 20, 7600
	}
}

func (c *Config) validate() error {
	if c.ParticleCount <= 0 {
		return fmt.Errorf("%w: particle count must be positive, got %d", ErrInvalidConfiguration, c.ParticleCount)
	}
	if !c.Format.Valid() {
		return fmt.Errorf("%w: unknown pcm format %d", ErrInvalidConfiguration, int(c.Format))
	}
	if c.FreqLow < 0 || c.FreqHigh <= c.FreqLow {
		return fmt.Errorf("%w: frequency band [%g, %g] is empty", ErrInvalidConfiguration, c.FreqLow, c.FreqHigh)
	}
	return nil
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClassifier replaces the default source type estimator.
func WithClassifier(c Classifier) Option {
	return func(s *Sampler) {
		if c != nil {
			s.classify = c
		}
	}
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sampler turns audio buffers into particles.
type Sampler struct {
	cfg      Config
	ext      Extractor
	classify Classifier
	logger   *slog.Logger

	mu   sync.Mutex
	last []Particle
}

// New creates a Sampler that extracts features with ext.
func New(cfg Config, ext Extractor, opts ...Option) (*Sampler, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, fmt.Errorf("%w: nil extractor", ErrInvalidConfiguration)
	}
	if ext.Dim() <= 0 {
		return nil, fmt.Errorf("%w: extractor dimension must be positive, got %d", ErrInvalidConfiguration, ext.Dim())
	}
	s := &Sampler{
		cfg:      cfg,
		ext:      ext,
		classify: ClassifyByMean,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config { return s.cfg }

// Dim returns the feature dimension of produced particles.
func (s *Sampler) Dim() int { return s.ext.Dim() }

// SampleDefault samples with the configured particle count.
func (s *Sampler) SampleDefault(buf []byte, duration time.Duration) []Particle {
	return s.Sample(buf, duration, s.cfg.ParticleCount)
}

// Sample partitions duration into count equal slices and returns one
// particle per slice. An empty buffer, a non-positive count or a
// non-positive duration yields no particles.
func (s *Sampler) Sample(buf []byte, duration time.Duration, count int) []Particle {
	if len(buf) == 0 || count <= 0 || duration <= 0 {
		s.remember(nil)
		return nil
	}

	span := duration / time.Duration(count)
	particles := make([]Particle, count)
	for i := range count {
		seg := s.segment(buf, i, count)
		feats := s.ext.Extract(seg)
		lo, hi := s.band(feats)
		particles[i] = Particle{
			Timestamp: duration * time.Duration(i) / time.Duration(count),
			Span:      span,
			FreqLow:   lo,
			FreqHigh:  hi,
			Intensity: pcm.RMS(seg),
			Features:  feats,
			Source:    s.classify(feats),
		}
	}

	s.logger.Debug("sampler: pass complete", "particles", count, "bytes", len(buf), "duration", duration)
	s.remember(particles)
	return particles
}

// Last returns a copy of the particles produced by the most recent pass.
func (s *Sampler) Last() []Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := make([]Particle, len(s.last))
	copy(out, s.last)
	return out
}

func (s *Sampler) remember(p []Particle) {
	s.mu.Lock()
	s.last = p
	s.mu.Unlock()
}

// segment returns the frame-aligned bytes of slice i out of n.
// Slices of buffers shorter than n frames may be empty.
func (s *Sampler) segment(buf []byte, i, n int) []byte {
	f := s.cfg.Format
	start := f.Align(len(buf) * i / n)
	end := f.Align(len(buf) * (i + 1) / n)
	if i == n-1 {
		end = f.Align(len(buf))
	}
	return buf[start:end]
}

// band locates the strongest feature component. Extractors that know their
// band layout answer directly; otherwise the component is mapped onto an
// equal-width slot of the configured band.
func (s *Sampler) band(feats []float32) (float32, float32) {
	if len(feats) == 0 {
		return s.cfg.FreqLow, s.cfg.FreqHigh
	}
	best := 0
	for i, v := range feats {
		if v > feats[best] {
			best = i
		}
	}
	if b, ok := s.ext.(BandMapper); ok {
		return b.Band(best)
	}
	width := (s.cfg.FreqHigh - s.cfg.FreqLow) / float32(len(feats))
	lo := s.cfg.FreqLow + float32(best)*width
	return lo, lo + width
}

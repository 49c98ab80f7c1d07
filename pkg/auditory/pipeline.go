// Package auditory wires the sampler, speaker memory and attention
// controller into one frame-by-frame listening pipeline.
//
// Each call to Process samples a frame into particles, resolves every
// particle to a voiceprint profile, collapses the particles into one
// source per profile and asks the attention controller where to focus.
//
//	p, err := auditory.New(auditory.DefaultConfig())
//	for frame := range frames {
//	    d := p.Process(auditory.Frame{Audio: frame})
//	    if d.Focused {
//	        log.Println("listening to", d.Focus)
//	    }
//	}
package auditory

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haivivi/cocktail/pkg/attention"
	"github.com/haivivi/cocktail/pkg/sampler"
	"github.com/haivivi/cocktail/pkg/speakermem"
)

// Frame is one chunk of PCM16 mono audio.
type Frame struct {
	Audio []byte

	// Duration of Audio. Zero derives it from the configured sample rate.
	Duration time.Duration
}

// Decision is the outcome of processing one frame.
type Decision struct {
	// Focus is the profile to attend to, valid when Focused is true.
	Focus   string `json:"focus,omitempty"`
	Focused bool   `json:"focused"`

	// Mode is the attention mode after the decision.
	Mode attention.Mode `json:"mode"`

	// Sources are the active sources of this frame in first-heard order.
	Sources []attention.Source `json:"sources"`

	// Particles is the number of particles sampled.
	Particles int `json:"particles"`

	// Dropped is the number of particles that could not be identified.
	Dropped int `json:"dropped"`
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	now       func() time.Time
	logger    *slog.Logger
	reg       prometheus.Registerer
	extractor sampler.Extractor
}

// WithClock sets the time source for profile and focus timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger. If unset, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer exports pipeline metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithExtractor replaces the extractor selected by Config.Extractor.
func WithExtractor(ext sampler.Extractor) Option {
	return func(o *options) { o.extractor = ext }
}

// Pipeline processes audio frames. It is safe for concurrent use; frames
// are processed one at a time.
type Pipeline struct {
	cfg     Config
	session string

	mu         sync.Mutex
	sampler    *sampler.Sampler
	memory     *speakermem.Memory
	controller *attention.Controller

	metrics *metrics
	logger  *slog.Logger
}

// New validates cfg and builds the pipeline components.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	session := uuid.NewString()
	logger := o.logger.With("session", session)

	ext := o.extractor
	if ext == nil {
		ext = cfg.newExtractor()
	}

	scfg := cfg.Sampler
	scfg.Format = cfg.format()
	smp, err := sampler.New(scfg, ext, sampler.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	mcfg := cfg.Memory
	if mcfg.Dim == 0 {
		mcfg.Dim = ext.Dim()
	}
	if mcfg.Dim != ext.Dim() {
		return nil, fmt.Errorf("%w: memory dim %d does not match extractor dim %d", ErrInvalidConfiguration, mcfg.Dim, ext.Dim())
	}
	memOpts := []speakermem.Option{speakermem.WithLogger(logger)}
	attOpts := []attention.Option{attention.WithLogger(logger)}
	if o.now != nil {
		memOpts = append(memOpts, speakermem.WithClock(o.now))
		attOpts = append(attOpts, attention.WithClock(o.now))
	}
	mem, err := speakermem.New(mcfg, memOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	ctl, err := attention.New(cfg.Attention, attOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	cfg.Sampler = smp.Config()
	cfg.Memory = mem.Config()
	cfg.Attention = ctl.Config()
	cfg.Extractor.Dim = ext.Dim()

	logger.Info("auditory: pipeline ready",
		"extractor", cfg.Extractor.Kind,
		"dim", ext.Dim(),
		"capacity", mcfg.Capacity,
		"threshold", mem.Config().Threshold,
	)
	return &Pipeline{
		cfg:        cfg,
		session:    session,
		sampler:    smp,
		memory:     mem,
		controller: ctl,
		metrics:    newMetrics(o.reg),
		logger:     logger,
	}, nil
}

// Config returns the effective configuration with defaults applied.
func (p *Pipeline) Config() Config { return p.cfg }

// SessionID identifies this pipeline instance in logs.
func (p *Pipeline) SessionID() string { return p.session }

// Memory returns the speaker memory.
func (p *Pipeline) Memory() *speakermem.Memory { return p.memory }

// Controller returns the attention controller.
func (p *Pipeline) Controller() *attention.Controller { return p.controller }

// Sampler returns the particle sampler.
func (p *Pipeline) Sampler() *sampler.Sampler { return p.sampler }

// Process runs one frame through the pipeline. Particles whose features
// cannot be identified are dropped and counted; they never fail the frame.
func (p *Pipeline) Process(frame Frame) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()

	dur := frame.Duration
	if dur == 0 {
		dur = p.cfg.format().Duration(int64(len(frame.Audio)))
	}
	particles := p.sampler.SampleDefault(frame.Audio, dur)
	p.metrics.frames.Inc()
	p.metrics.particles.Add(float64(len(particles)))

	d := Decision{Particles: len(particles)}
	index := make(map[string]int)
	for i, part := range particles {
		res, err := p.memory.Identify(part.Features, speakermem.Metadata{
			speakermem.MetaIsSpeech: part.Source.IsSpeech(),
			speakermem.MetaDuration: part.Span.Seconds(),
		})
		if err != nil {
			d.Dropped++
			p.metrics.dropped.Inc()
			p.logger.Warn("auditory: particle dropped", "particle", i, "at", part.Timestamp, "error", err)
			continue
		}
		if res.Matched {
			p.metrics.identifications.WithLabelValues(resultMatched).Inc()
		} else {
			p.metrics.identifications.WithLabelValues(resultRegistered).Inc()
		}
		if res.Evicted != nil {
			p.metrics.evictions.Inc()
		}
		p.logger.Debug("auditory: particle identified",
			"particle", i,
			"id", res.Profile.ID,
			"matched", res.Matched,
			"similarity", res.Similarity,
			"intensity", part.Intensity,
			"source", part.Source,
		)

		id := res.Profile.ID
		if j, ok := index[id]; ok {
			d.Sources[j].Intensity = max(d.Sources[j].Intensity, part.Intensity)
			d.Sources[j].Label = res.Profile.Label
			continue
		}
		index[id] = len(d.Sources)
		d.Sources = append(d.Sources, attention.Source{
			ProfileID: id,
			Label:     res.Profile.Label,
			Intensity: part.Intensity,
		})
	}

	// A profile registered early in the pass may be evicted by a later
	// particle; it is no longer a candidate.
	sources := d.Sources[:0:0]
	for _, src := range d.Sources {
		if _, ok := p.memory.Profile(src.ProfileID); ok {
			sources = append(sources, src)
		}
	}
	d.Sources = sources

	prev := p.controller.State()
	d.Focus, d.Focused = p.controller.DecideFocus(d.Sources, p.memory.UserID())
	st := p.controller.State()
	d.Mode = st.Mode
	if st.Mode == attention.Focus && (prev.Mode != attention.Focus || prev.FocusID != st.FocusID || !prev.FocusStart.Equal(st.FocusStart)) {
		p.metrics.focusSwitches.Inc()
	}

	p.metrics.profiles.Set(float64(p.memory.Len()))
	p.metrics.processDuration.Observe(time.Since(start).Seconds())
	return d
}

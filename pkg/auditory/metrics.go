package auditory

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Identification results.
const (
	resultMatched    = "matched"
	resultRegistered = "registered"
)

// metrics holds the pipeline collectors. Collectors are always created so
// the pipeline can update them unconditionally; they are only exported when
// a registerer is given.
type metrics struct {
	frames          prometheus.Counter
	particles       prometheus.Counter
	identifications *prometheus.CounterVec
	dropped         prometheus.Counter
	evictions       prometheus.Counter
	focusSwitches   prometheus.Counter
	profiles        prometheus.Gauge
	processDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cocktail_frames_total",
			Help: "Total number of audio frames processed.",
		}),
		particles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cocktail_particles_total",
			Help: "Total number of particles sampled.",
		}),
		identifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cocktail_identifications_total",
			Help: "Total number of particle identifications by result.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cocktail_dropped_particles_total",
			Help: "Total number of particles dropped for invalid features.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cocktail_evictions_total",
			Help: "Total number of profiles evicted at capacity.",
		}),
		focusSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cocktail_focus_switches_total",
			Help: "Total number of attention focus changes.",
		}),
		profiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cocktail_profiles",
			Help: "Number of stored voiceprint profiles.",
		}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cocktail_process_duration_seconds",
			Help:    "Time spent processing one audio frame.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.frames,
			m.particles,
			m.identifications,
			m.dropped,
			m.evictions,
			m.focusSwitches,
			m.profiles,
			m.processDuration,
		)
	}
	return m
}

package sampler

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/haivivi/cocktail/pkg/audio/fbank"
	"github.com/haivivi/cocktail/pkg/audio/pcm"
)

// Extractor turns one slice of PCM bytes into a fixed-length feature vector.
//
// Implementations must be safe for concurrent use and must always return a
// vector of length Dim(). A slice that carries no signal should produce an
// all-zero vector, which downstream identity matching rejects.
type Extractor interface {
	Extract(segment []byte) []float32
	Dim() int
}

// BandMapper is implemented by extractors whose components correspond to
// frequency bands.
type BandMapper interface {
	// Band returns the edges in Hz of component i.
	Band(i int) (lo, hi float32)
}

// synthBlocks is the number of sub-blocks a segment is split into when
// computing synthetic descriptors.
const synthBlocks = 8

// Synthetic builds feature vectors from a fixed random basis. Each segment
// is described by the energy envelope and zero-crossing rate of its
// sub-blocks; the vector is the descriptor-weighted sum of the basis. Similar
// audio therefore gives similar vectors, and the basis is reproducible from
// the generator it was drawn from.
type Synthetic struct {
	dim   int
	basis [][]float32 // 2*synthBlocks rows of unit vectors

	mu     sync.Mutex
	rng    *rand.Rand
	jitter float64
}

// SyntheticOption configures a Synthetic extractor.
type SyntheticOption func(*Synthetic)

// WithJitter adds zero-mean Gaussian noise with the given standard
// deviation to every component, drawn from the extractor's generator.
// Default 0 (fully deterministic per segment).
func WithJitter(sigma float64) SyntheticOption {
	return func(s *Synthetic) {
		if sigma > 0 {
			s.jitter = sigma
		}
	}
}

// NewSynthetic creates a Synthetic extractor whose basis and jitter are
// drawn from rng. A nil rng is replaced by a PCG generator seeded with 0.
func NewSynthetic(dim int, rng *rand.Rand, opts ...SyntheticOption) *Synthetic {
	if dim <= 0 {
		panic("sampler: dim must be positive")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	s := &Synthetic{dim: dim, rng: rng}
	s.basis = make([][]float32, 2*synthBlocks)
	for i := range s.basis {
		row := make([]float32, dim)
		var norm float64
		for j := range row {
			v := rng.NormFloat64()
			row[j] = float32(v)
			norm += v * v
		}
		scale := float32(1 / math.Sqrt(norm))
		for j := range row {
			row[j] *= scale
		}
		s.basis[i] = row
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSyntheticSeeded is shorthand for NewSynthetic with a PCG generator.
func NewSyntheticSeeded(dim int, seed uint64, opts ...SyntheticOption) *Synthetic {
	return NewSynthetic(dim, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), opts...)
}

func (s *Synthetic) Dim() int { return s.dim }

func (s *Synthetic) Extract(segment []byte) []float32 {
	out := make([]float32, s.dim)
	samples := pcm.Float32(segment)
	if len(samples) == 0 {
		return out
	}

	var desc [2 * synthBlocks]float64
	for b := range synthBlocks {
		lo := len(samples) * b / synthBlocks
		hi := len(samples) * (b + 1) / synthBlocks
		if hi <= lo {
			continue
		}
		var energy float64
		var crossings int
		for i := lo; i < hi; i++ {
			x := float64(samples[i])
			energy += x * x
			if i > lo && (samples[i] >= 0) != (samples[i-1] >= 0) {
				crossings++
			}
		}
		rms := math.Sqrt(energy / float64(hi-lo))
		desc[b] = rms
		desc[synthBlocks+b] = rms * float64(crossings) / float64(hi-lo)
	}

	for k, w := range desc {
		if w == 0 {
			continue
		}
		for j, v := range s.basis[k] {
			out[j] += float32(w) * v
		}
	}

	if s.jitter > 0 {
		s.mu.Lock()
		for j := range out {
			out[j] += float32(s.rng.NormFloat64() * s.jitter)
		}
		s.mu.Unlock()
	}
	return out
}

// Fbank describes each segment by its mean mel band power, cube-root
// compressed. Components are non-negative, so cosine similarity follows the
// spectral shape and sounds in disjoint bands are near orthogonal. Silent
// segments give an all-zero vector.
type Fbank struct {
	ext *fbank.Extractor
}

// NewFbank creates an Fbank extractor with the given filterbank config.
func NewFbank(cfg fbank.Config) *Fbank {
	return &Fbank{ext: fbank.New(cfg)}
}

func (f *Fbank) Dim() int { return f.ext.Config().NumMels }

func (f *Fbank) Extract(segment []byte) []float32 {
	if pcm.RMS(segment) == 0 {
		return make([]float32, f.Dim())
	}
	out := f.ext.BandPower(segment)
	for i, v := range out {
		out[i] = float32(math.Cbrt(float64(v)))
	}
	return out
}

func (f *Fbank) Band(i int) (float32, float32) {
	cfg := f.ext.Config()
	lo, hi := fbank.BandEdges(i, cfg.NumMels, cfg.LowFreq, cfg.HighFreq)
	return float32(lo), float32(hi)
}

// Classifier estimates a coarse source type from a feature vector.
type Classifier func(features []float32) SourceType

// ClassifyByMean maps the ratio of the mean to the mean absolute value of
// the vector (a scale-free value in [-1, 1]) through fixed bands:
//
//	all zero      → unknown
//	[-1, -0.5)    → environment
//	[-0.5, 0)     → emotion
//	[0, 0.5)      → speech
//	[0.5, 1]      → voiceprint
func ClassifyByMean(features []float32) SourceType {
	var sum, abs float64
	for _, v := range features {
		sum += float64(v)
		abs += math.Abs(float64(v))
	}
	if abs == 0 || math.IsNaN(sum) || math.IsInf(abs, 0) {
		return SourceUnknown
	}
	r := sum / abs
	switch {
	case r < -0.5:
		return SourceEnvironment
	case r < 0:
		return SourceEmotion
	case r < 0.5:
		return SourceSpeech
	default:
		return SourceVoiceprint
	}
}

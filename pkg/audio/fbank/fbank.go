// Package fbank computes log mel filterbank features from PCM audio.
//
// The per-band summaries [Extractor.Summarize] (mean log energy) and
// [Extractor.BandPower] (mean linear energy) describe a short slice of audio
// as one vector. The full [T][numMels] matrix is available through
// [Extractor.Extract].
//
// Default parameters follow the Kaldi convention for 16 kHz speech:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     80
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0.97
package fbank

import (
	"math"

	"github.com/haivivi/cocktail/pkg/audio/pcm"
)

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	WindowSize  int     // window length in samples (default 400 = 25ms)
	HopSize     int     // hop length in samples (default 160 = 10ms)
	FFTSize     int     // FFT size, power of two (default 512)
	NumMels     int     // number of mel bins (default 80)
	LowFreq     float64 // lowest mel frequency (default 20)
	HighFreq    float64 // highest mel frequency (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
}

// DefaultConfig returns the standard config for 16 kHz speech.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// logFloor keeps log energies finite on silent frames.
const logFloor = 1e-10

// Extractor computes mel filterbank features from PCM samples.
// It holds only read-only tables and is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Frames returns the number of feature frames produced for n samples.
func (e *Extractor) Frames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes log mel filterbank features from normalized samples in
// [-1, 1]. It returns nil when the input is shorter than one window.
func (e *Extractor) Extract(samples []float32) [][]float32 {
	energies := e.energies(samples)
	if energies == nil {
		return nil
	}
	features := make([][]float32, len(energies))
	for t, frame := range energies {
		mel := make([]float32, len(frame))
		for m, v := range frame {
			mel[m] = float32(math.Log(math.Max(v, logFloor)))
		}
		features[t] = mel
	}
	return features
}

// energies returns the linear mel filterbank energy of every frame.
func (e *Extractor) energies(samples []float32) [][]float64 {
	cfg := e.cfg
	numFrames := e.Frames(len(samples))
	if numFrames == 0 {
		return nil
	}

	nfft := cfg.FFTSize
	halfFFT := nfft/2 + 1
	re := make([]float64, nfft)
	im := make([]float64, nfft)
	power := make([]float64, halfFFT)
	out := make([][]float64, numFrames)

	for t := range numFrames {
		start := t * cfg.HopSize
		for i := range nfft {
			im[i] = 0
			if i >= cfg.WindowSize {
				re[i] = 0
				continue
			}
			s := float64(samples[start+i])
			if i > 0 {
				s -= cfg.PreEmphasis * float64(samples[start+i-1])
			}
			re[i] = s * e.window[i]
		}
		fft(re, im)

		for k := range halfFFT {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		mel := make([]float64, cfg.NumMels)
		for m, filter := range e.melBank {
			var sum float64
			for k, w := range filter {
				sum += w * power[k]
			}
			mel[m] = sum
		}
		out[t] = mel
	}
	return out
}

// ExtractPCM16 decodes PCM16 little-endian bytes and extracts features.
func (e *Extractor) ExtractPCM16(data []byte) [][]float32 {
	return e.Extract(pcm.Float32(data))
}

// Summarize averages each mel band over all frames of a PCM16 segment,
// returning a vector of length NumMels. Segments shorter than one window
// yield an all-zero vector.
func (e *Extractor) Summarize(data []byte) []float32 {
	out := make([]float32, e.cfg.NumMels)
	features := e.ExtractPCM16(data)
	if len(features) == 0 {
		return out
	}
	sums := make([]float64, e.cfg.NumMels)
	for _, frame := range features {
		for m, v := range frame {
			sums[m] += float64(v)
		}
	}
	n := float64(len(features))
	for m, s := range sums {
		out[m] = float32(s / n)
	}
	return out
}

// BandPower averages the linear mel energy of each band over all frames of
// a PCM16 segment. Unlike Summarize there is no log floor, so a silent
// segment, or one shorter than a window, yields an all-zero vector.
func (e *Extractor) BandPower(data []byte) []float32 {
	out := make([]float32, e.cfg.NumMels)
	energies := e.energies(pcm.Float32(data))
	if len(energies) == 0 {
		return out
	}
	sums := make([]float64, e.cfg.NumMels)
	for _, frame := range energies {
		for m, v := range frame {
			sums[m] += v
		}
	}
	n := float64(len(energies))
	for m, s := range sums {
		out[m] = float32(s / n)
	}
	return out
}

// CMVN applies cepstral mean and variance normalization in-place across
// frames, per mel dimension.
func CMVN(features [][]float32) {
	if len(features) == 0 {
		return
	}
	T := float64(len(features))
	for m := range features[0] {
		var sum float64
		for _, f := range features {
			sum += float64(f[m])
		}
		mean := sum / T

		var varSum float64
		for _, f := range features {
			d := float64(f[m]) - mean
			varSum += d * d
		}
		std := math.Max(math.Sqrt(varSum/T), logFloor)

		for _, f := range features {
			f[m] = float32((float64(f[m]) - mean) / std)
		}
	}
}

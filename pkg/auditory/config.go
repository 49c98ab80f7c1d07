package auditory

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/haivivi/cocktail/pkg/attention"
	"github.com/haivivi/cocktail/pkg/audio/fbank"
	"github.com/haivivi/cocktail/pkg/audio/pcm"
	"github.com/haivivi/cocktail/pkg/sampler"
	"github.com/haivivi/cocktail/pkg/speakermem"
)

// ErrInvalidConfiguration wraps every configuration failure, including
// those reported by the component packages.
var ErrInvalidConfiguration = errors.New("auditory: invalid configuration")

// Extractor kinds.
const (
	ExtractorSynthetic = "synthetic"
	ExtractorFbank     = "fbank"
)

// Config is the full pipeline configuration.
type Config struct {
	// SampleRate of incoming PCM16 mono audio.
	SampleRate int `yaml:"sample_rate" json:"sample_rate" validate:"oneof=16000 24000 48000"`

	Extractor ExtractorConfig   `yaml:"extractor" json:"extractor"`
	Sampler   sampler.Config    `yaml:"sampler" json:"sampler"`
	Memory    speakermem.Config `yaml:"memory" json:"memory"`
	Attention attention.Config  `yaml:"attention" json:"attention"`
}

// ExtractorConfig selects the feature extractor.
type ExtractorConfig struct {
	// Kind is "synthetic" or "fbank".
	Kind string `yaml:"kind" json:"kind" validate:"oneof=synthetic fbank"`

	// Dim is the feature dimension. For fbank it is the number of mel bands.
	Dim int `yaml:"dim" json:"dim" validate:"gte=1,lte=4096"`

	// Seed seeds the synthetic projection.
	Seed uint64 `yaml:"seed" json:"seed"`

	// Jitter adds Gaussian noise to synthetic features.
	Jitter float64 `yaml:"jitter" json:"jitter" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Extractor: ExtractorConfig{
			Kind: ExtractorSynthetic,
			Dim:  128,
			Seed: 1,
		},
		Sampler: sampler.Config{
			ParticleCount: 10,
			FreqLow:       20,
			FreqHigh:      7600,
		},
		Memory: speakermem.Config{
			Capacity:  500,
			Threshold: 0.75,
			Prefix:    "speaker",
		},
		Attention: attention.Config{
			MinFocus:          800 * time.Millisecond,
			MaxFocus:          10 * time.Second,
			NoiseThreshold:    0.2,
			UserVoicePriority: 2.0,
			NewSourcePriority: 1.5,
			SpeakerLabelBoost: 1.2,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Keys absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("auditory: read config: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, path, err)
	}
	return cfg, cfg.Validate()
}

var validate = validator.New()

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationError lists every invalid field. It matches
// ErrInvalidConfiguration with errors.Is.
type ValidationError []FieldError

func (e ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("auditory: invalid configuration:")
	for _, fe := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

func (e ValidationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// Validate checks field ranges. Cross-field constraints are checked by the
// component constructors in New.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if _, ok := pcm.ParseFormat(c.SampleRate); !ok {
			return fmt.Errorf("%w: unsupported sample rate %d", ErrInvalidConfiguration, c.SampleRate)
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	out := make(ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Message: describe(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// format returns the PCM format for the configured sample rate.
func (c Config) format() pcm.Format {
	f, _ := pcm.ParseFormat(c.SampleRate)
	return f
}

// newExtractor builds the extractor selected by c.Extractor.
func (c Config) newExtractor() sampler.Extractor {
	switch c.Extractor.Kind {
	case ExtractorFbank:
		fc := fbank.DefaultConfig()
		fc.SampleRate = c.SampleRate
		fc.NumMels = c.Extractor.Dim
		fc.LowFreq = float64(c.Sampler.FreqLow)
		fc.HighFreq = float64(c.Sampler.FreqHigh)
		return sampler.NewFbank(fc)
	default:
		var opts []sampler.SyntheticOption
		if c.Extractor.Jitter > 0 {
			opts = append(opts, sampler.WithJitter(c.Extractor.Jitter))
		}
		return sampler.NewSyntheticSeeded(c.Extractor.Dim, c.Extractor.Seed, opts...)
	}
}

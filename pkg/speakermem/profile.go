package speakermem

import (
	"maps"
	"math"
	"time"
)

// Well-known metadata keys.
const (
	// MetaIsSpeech marks an observation as human speech (bool).
	MetaIsSpeech = "is_speech"

	// MetaDuration is the audio time covered by an observation, as a
	// time.Duration or float64 seconds.
	MetaDuration = "duration"

	// MetaName is a human-readable speaker name (string).
	MetaName = "name"
)

// Metadata is an open key/value map attached to observations and profiles.
type Metadata map[string]any

// IsSpeech reports whether MetaIsSpeech is set to true.
func (md Metadata) IsSpeech() bool {
	v, _ := md[MetaIsSpeech].(bool)
	return v
}

// Duration returns MetaDuration, or 0 if absent or malformed.
func (md Metadata) Duration() time.Duration {
	switch v := md[MetaDuration].(type) {
	case time.Duration:
		return max(v, 0)
	case float64:
		if v > 0 && !math.IsInf(v, 0) {
			return time.Duration(v * float64(time.Second))
		}
	}
	return 0
}

// Name returns MetaName, or "" if absent.
func (md Metadata) Name() string {
	v, _ := md[MetaName].(string)
	return v
}

func (md Metadata) clone() Metadata {
	if md == nil {
		return Metadata{}
	}
	return maps.Clone(md)
}

// Profile is a voiceprint identity record.
type Profile struct {
	// ID is the stable identifier (e.g. "speaker:000001").
	ID string `json:"id" msgpack:"id"`

	// Name is a display name. Default: "unknown_speaker".
	Name string `json:"name" msgpack:"name"`

	// Label is the role of the source: "speaker", "sound_source" or "user".
	Label string `json:"label" msgpack:"label"`

	// Embedding is the unit-length running identity signature.
	Embedding []float32 `json:"embedding" msgpack:"embedding"`

	// FirstHeard is when the profile was registered.
	FirstHeard time.Time `json:"first_heard" msgpack:"first_heard"`

	// LastHeard is when the profile was last matched or registered.
	LastHeard time.Time `json:"last_heard" msgpack:"last_heard"`

	// TotalDuration accumulates the audio time attributed to the profile.
	TotalDuration time.Duration `json:"total_duration" msgpack:"total_duration"`

	// Confidence is 1 for a fresh registration, otherwise the similarity
	// of the most recent match.
	Confidence float32 `json:"confidence" msgpack:"confidence"`

	// Metadata merges the metadata of every observation, newest wins.
	Metadata Metadata `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() Profile {
	cp := *p
	cp.Embedding = append([]float32(nil), p.Embedding...)
	cp.Metadata = p.Metadata.clone()
	return cp
}

// observe folds a matched observation into the profile.
func (p *Profile) observe(unit []float32, now time.Time, sim float32, md Metadata) {
	blended := make([]float32, len(p.Embedding))
	for i := range blended {
		blended[i] = (1-blendWeight)*p.Embedding[i] + blendWeight*unit[i]
	}
	// Two unit vectors at similarity > 0 cannot blend to zero; fall back to
	// the new observation if rounding ever says otherwise.
	if n, err := Normalize(blended); err == nil {
		p.Embedding = n
	} else {
		p.Embedding = unit
	}
	p.LastHeard = now
	p.Confidence = sim
	p.TotalDuration += md.Duration()
	if name := md.Name(); name != "" {
		p.Name = name
	}
	if p.Metadata == nil {
		p.Metadata = Metadata{}
	}
	maps.Copy(p.Metadata, md)
}

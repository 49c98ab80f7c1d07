// Package pcm describes raw PCM16 audio formats and decodes sample data.
//
// Key types:
//   - Format: sample rate, channels and bit depth of an L16 stream
//
// Example usage:
//
//	format := pcm.L16Mono16K
//
//	// Bytes needed for 20ms of audio
//	n := format.BytesInDuration(20 * time.Millisecond)
//
//	// Signal level of a slice of audio
//	level := pcm.RMS(data[:format.Align(int(n))])
package pcm

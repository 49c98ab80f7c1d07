// Package audio groups the audio sub-packages used by the auditory pipeline:
//
//   - pcm: PCM16 formats, sample conversion and levels
//   - fbank: log-mel filterbank features
package audio

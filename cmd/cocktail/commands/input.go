package commands

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// readAudio reads path ("-" for stdin). WAV input is unwrapped to its PCM16
// data chunk and its sample rate is returned; raw input reports rate 0.
func readAudio(path string, stdin io.Reader) (pcm []byte, rate int, err error) {
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return parseWAV(data)
	}
	return data, 0, nil
}

func parseWAV(data []byte) ([]byte, int, error) {
	var rate int
	var haveFmt bool
	r := data[12:]
	for len(r) >= 8 {
		id := string(r[0:4])
		size := int(binary.LittleEndian.Uint32(r[4:8]))
		r = r[8:]
		if size > len(r) {
			size = len(r)
		}
		body := r[:size]
		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, 0, errors.New("wav: short fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if audioFormat != 1 || channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("wav: want mono 16-bit PCM, got format=%d channels=%d bits=%d", audioFormat, channels, bits)
			}
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, errors.New("wav: data before fmt chunk")
			}
			return body, rate, nil
		}
		// Chunks are word aligned.
		size += size & 1
		if size > len(r) {
			break
		}
		r = r[size:]
	}
	return nil, 0, errors.New("wav: no data chunk")
}

// Package wav reads and writes 16-bit PCM RIFF/WAVE containers.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const headerSize = 44

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// Format is the PCM layout of a WAV stream.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int // bytes per sample
}

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.SampleWidth
}

// IsRIFF reports whether data already carries a RIFF/WAVE header.
func IsRIFF(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Encode wraps raw little-endian PCM in a canonical 44-byte WAV header.
func Encode(pcm []byte, f Format) []byte {
	blockAlign := f.Channels * f.SampleWidth

	buf := make([]byte, headerSize, headerSize+len(pcm))

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(f.SampleWidth*8))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))

	return append(buf, pcm...)
}

// Decode walks the chunk list of a WAV stream and returns its format and the
// PCM payload of the data chunk. Unknown chunks are skipped.
func Decode(data []byte) (Format, []byte, error) {
	if !IsRIFF(data) {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format  Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) || end < body {
			// Streams written before their length was known carry a bogus
			// data size; take whatever is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Format{}, nil, fmt.Errorf("wav: fmt chunk too short (%d bytes)", end-body)
			}
			chunk := data[body:end]
			if tag := binary.LittleEndian.Uint16(chunk[0:2]); tag != 1 && tag != 0xFFFE {
				return Format{}, nil, fmt.Errorf("wav: unsupported audio format tag %d", tag)
			}
			format = Format{
				Channels:    int(binary.LittleEndian.Uint16(chunk[2:4])),
				SampleRate:  int(binary.LittleEndian.Uint32(chunk[4:8])),
				SampleWidth: int(binary.LittleEndian.Uint16(chunk[14:16])) / 8,
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("wav: data chunk before fmt chunk")
			}
			return format, data[body:end], nil
		}

		// Chunks are word aligned.
		offset = end + size%2
	}

	return Format{}, nil, errors.New("wav: no data chunk")
}

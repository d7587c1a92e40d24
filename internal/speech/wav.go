package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// PCM describes raw little-endian linear PCM.
type PCM struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultPCM is the format Gemini speech generation returns.
var DefaultPCM = PCM{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

var errNotWAV = errors.New("speech: not a RIFF/WAVE stream")

func (f PCM) bytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

func (f PCM) blockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// EncodeWAV frames pcm samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []byte, f PCM) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(samples))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.bytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.blockAlign()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)
	return buf.Bytes()
}

// decodeWAV locates the fmt and data chunks of a PCM WAV stream.
func decodeWAV(data []byte) (PCM, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, nil, errNotWAV
	}

	var f PCM
	var samples []byte
	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return PCM{}, nil, errNotWAV
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			samples = data[body:end]
		}

		off = body + size + size%2
	}

	if !haveFmt || samples == nil || f.bytesPerSecond() == 0 ||
		f.BitsPerSample%8 != 0 || f.blockAlign() == 0 {
		return PCM{}, nil, errNotWAV
	}
	return f, samples, nil
}

// Duration returns the playing time of samples in format f.
func (f PCM) Duration(samples []byte) time.Duration {
	bps := f.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(samples)) * time.Second / time.Duration(bps)
}

// trimWAV cuts a WAV stream to at most limit of audio. Streams that are
// not PCM WAV are returned unchanged.
func trimWAV(data []byte, limit time.Duration) ([]byte, bool) {
	f, samples, err := decodeWAV(data)
	if err != nil || limit <= 0 || f.Duration(samples) <= limit {
		return data, false
	}
	n := int(int64(f.bytesPerSecond()) * int64(limit) / int64(time.Second))
	n -= n % f.blockAlign()
	return EncodeWAV(samples[:n], f), true
}

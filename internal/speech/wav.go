package speech

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"chatbot/internal/domain"
)

// EncodeWAV returns a as a 16-bit mono PCM WAV file.
func EncodeWAV(a domain.Audio) ([]byte, error) {
	data := make([]int, len(a.Samples))
	for i, s := range a.Samples {
		data[i] = int(toInt16(s))
	}
	var out seekBuffer
	enc := wav.NewEncoder(&out, a.SampleRate, 16, 1, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.buf, nil
}

// DecodePCM16 converts headerless little-endian signed 16-bit mono samples,
// the raw format the speech endpoint streams.
func DecodePCM16(data []byte, sampleRate int) (domain.Audio, error) {
	if len(data)%2 != 0 {
		return domain.Audio{}, errors.New("odd PCM byte count")
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return domain.Audio{SampleRate: sampleRate, Samples: samples}, nil
}

func toInt16(s float32) int16 {
	s = float32(math.Max(-1, math.Min(1, float64(s))))
	return int16(math.Round(float64(s) * 32767))
}

// seekBuffer is an in-memory io.WriteSeeker; the encoder seeks back to patch
// the chunk sizes once the samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("negative position")
	}
	b.pos = int(pos)
	return pos, nil
}

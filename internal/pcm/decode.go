package pcm

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Default format delivered by the speech service. 16-bit signed
// little-endian samples, mono, 24 kHz. This contract is fixed by the
// remote service and is not negotiable at decode time.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
)

// Buffer holds decoded linear PCM audio, one float32 slice per channel
// with samples normalized to [-1.0, 1.0]. A Buffer is derived once from
// a raw payload and never mutated afterwards.
type Buffer struct {
	Channels   int
	SampleRate int
	Frames     int
	Data       [][]float32
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames) * time.Second / time.Duration(b.SampleRate)
}

// Decode reinterprets payload as a sequence of 16-bit signed
// little-endian samples and produces a normalized Buffer. A trailing odd
// byte is ignored, and samples that do not fill a complete frame are
// dropped.
func Decode(payload []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	sampleCount := len(payload) / 2
	frames := sampleCount / channels
	if frames == 0 {
		return nil, fmt.Errorf("audio payload too short: %d bytes", len(payload))
	}

	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			idx := (i*channels + c) * 2
			sample := int16(uint16(payload[idx]) | uint16(payload[idx+1])<<8)
			data[c][i] = float32(sample) / 32768.0
		}
	}

	return &Buffer{
		Channels:   channels,
		SampleRate: sampleRate,
		Frames:     frames,
		Data:       data,
	}, nil
}

// DecodeBase64 decodes a base64-encoded PCM payload as delivered by the
// speech service.
func DecodeBase64(encoded string, sampleRate, channels int) (*Buffer, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return Decode(payload, sampleRate, channels)
}

// Interleave converts the buffer back to interleaved 16-bit
// little-endian bytes, the wire format playback devices consume.
func (b *Buffer) Interleave() []byte {
	out := make([]byte, b.Frames*b.Channels*2)
	for i := 0; i < b.Frames; i++ {
		for c := 0; c < b.Channels; c++ {
			sample := int16(b.Data[c][i] * 32768.0)
			idx := (i*b.Channels + c) * 2
			out[idx] = byte(sample)
			out[idx+1] = byte(sample >> 8)
		}
	}
	return out
}

package audio

import "encoding/binary"

// BytesPerSample is fixed: the device streams PCM16LE mono.
const BytesPerSample = 2

// Buffer accumulates raw PCM16LE frames for one capture session.
//
// Frames are kept as an ordered list of byte blocks and only concatenated when
// drained, so individual frames do not need to be sample aligned. Buffer is not
// safe for concurrent use; the session controller serializes access.
type Buffer struct {
	blocks [][]byte
	total  int
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append copies frame onto the end of the buffer. Empty frames are ignored.
func (b *Buffer) Append(frame []byte) {
	if len(frame) == 0 {
		return
	}
	block := make([]byte, len(frame))
	copy(block, frame)
	b.blocks = append(b.blocks, block)
	b.total += len(block)
}

// TotalBytes returns the sum of all appended block lengths.
func (b *Buffer) TotalBytes() int { return b.total }

// Len returns the number of appended frames.
func (b *Buffer) Len() int { return len(b.blocks) }

// DurationSeconds reports how much audio is buffered at sampleRate.
func (b *Buffer) DurationSeconds(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(b.total/BytesPerSample) / float64(sampleRate)
}

// MeetsMinimumDuration reports whether at least minSeconds of audio at
// sampleRate has been buffered. The exact threshold byte count is sufficient.
func (b *Buffer) MeetsMinimumDuration(sampleRate int, minSeconds float64) bool {
	return b.total >= MinimumBytes(sampleRate, minSeconds)
}

// MinimumBytes is the byte count equivalent of minSeconds of PCM16 mono audio.
func MinimumBytes(sampleRate int, minSeconds float64) int {
	if sampleRate <= 0 || minSeconds <= 0 {
		return 0
	}
	return int(minSeconds * float64(sampleRate) * BytesPerSample)
}

// DrainBytes concatenates and clears the buffer. A trailing odd byte is
// dropped so the result always holds whole samples.
func (b *Buffer) DrainBytes() []byte {
	n := b.total - b.total%BytesPerSample
	out := make([]byte, 0, n)
	for _, block := range b.blocks {
		out = append(out, block...)
	}
	b.Reset()
	return out[:n]
}

// DrainPCM drains the buffer and decodes it as little-endian int16 samples.
// It returns the samples and their count; the count is floor(TotalBytes/2).
// A second drain without new appends returns an empty slice.
func (b *Buffer) DrainPCM() ([]int16, int) {
	samples := DecodePCM16LE(b.DrainBytes())
	return samples, len(samples)
}

// Reset discards all buffered frames.
func (b *Buffer) Reset() {
	b.blocks = nil
	b.total = 0
}

// DecodePCM16LE converts raw little-endian bytes to samples, ignoring a
// trailing odd byte.
func DecodePCM16LE(raw []byte) []int16 {
	n := len(raw) / BytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// EncodePCM16LE converts samples to raw little-endian bytes.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

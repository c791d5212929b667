package audio

import (
	"math"
	"time"
)

// Tone generates d of a sine wave at freq Hz as PCM16LE mono bytes.
func Tone(sampleRate int, freq float64, d time.Duration, amplitude float64) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if amplitude <= 0 || amplitude > 1 {
		amplitude = 0.3
	}
	n := int(d.Seconds() * float64(sampleRate))
	samples := make([]int16, n)
	for i := range samples {
		v := math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
		samples[i] = int16(v * amplitude * math.MaxInt16)
	}
	return EncodePCM16LE(samples)
}

// Frames splits pcm into frames of frameBytes. The last frame may be short.
func Frames(pcm []byte, frameBytes int) [][]byte {
	if frameBytes <= 0 {
		frameBytes = 1024
	}
	out := make([][]byte, 0, len(pcm)/frameBytes+1)
	for start := 0; start < len(pcm); start += frameBytes {
		end := start + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		out = append(out, pcm[start:end])
	}
	return out
}

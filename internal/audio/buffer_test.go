package audio

import (
	"testing"

	"pgregory.net/rapid"
)

func TestBufferDrainConcatenatesInOrder(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte{0x01, 0x00, 0x02})
	b.Append([]byte{0x00})
	b.Append([]byte{0xff, 0xff})

	if got := b.TotalBytes(); got != 6 {
		t.Fatalf("TotalBytes() = %d, want 6", got)
	}
	samples, n := b.DrainPCM()
	if n != 3 {
		t.Fatalf("DrainPCM() count = %d, want 3", n)
	}
	want := []int16{1, 2, -1}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("samples[%d] = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestBufferDrainDropsTrailingOddByte(t *testing.T) {
	b := NewBuffer()
	b.Append([]byte{0x10, 0x00, 0x20})

	raw := b.DrainBytes()
	if len(raw) != 2 {
		t.Fatalf("len(DrainBytes()) = %d, want 2", len(raw))
	}
	if b.TotalBytes() != 0 || b.Len() != 0 {
		t.Fatalf("buffer not cleared: total=%d len=%d", b.TotalBytes(), b.Len())
	}
}

func TestBufferSecondDrainIsEmpty(t *testing.T) {
	b := NewBuffer()
	b.Append(make([]byte, 64))
	if _, n := b.DrainPCM(); n != 32 {
		t.Fatalf("first drain count = %d, want 32", n)
	}
	samples, n := b.DrainPCM()
	if n != 0 || len(samples) != 0 {
		t.Fatalf("second drain = (%d samples, n=%d), want empty", len(samples), n)
	}
}

func TestBufferAppendCopiesFrame(t *testing.T) {
	b := NewBuffer()
	frame := []byte{0x01, 0x00}
	b.Append(frame)
	frame[0] = 0x7f

	samples, _ := b.DrainPCM()
	if samples[0] != 1 {
		t.Fatalf("samples[0] = %d, want 1 (buffer must own its copy)", samples[0])
	}
}

func TestBufferIgnoresEmptyFrames(t *testing.T) {
	b := NewBuffer()
	b.Append(nil)
	b.Append([]byte{})
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}

func TestMeetsMinimumDurationBoundary(t *testing.T) {
	const rate = 16000
	threshold := MinimumBytes(rate, 2)
	if threshold != 64000 {
		t.Fatalf("MinimumBytes(16000, 2) = %d, want 64000", threshold)
	}

	cases := []struct {
		name  string
		bytes int
		want  bool
	}{
		{"empty", 0, false},
		{"one byte short", threshold - 1, false},
		{"exact threshold", threshold, true},
		{"above threshold", threshold + 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer()
			b.Append(make([]byte, tc.bytes))
			if got := b.MeetsMinimumDuration(rate, 2); got != tc.want {
				t.Fatalf("MeetsMinimumDuration() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	b := NewBuffer()
	b.Append(make([]byte, 32000))
	if got := b.DurationSeconds(16000); got != 1 {
		t.Fatalf("DurationSeconds() = %v, want 1", got)
	}
	if got := b.DurationSeconds(0); got != 0 {
		t.Fatalf("DurationSeconds(0) = %v, want 0", got)
	}
}

func TestBufferDrainCountProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		frames := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 97), 0, 40).Draw(rt, "frames")

		b := NewBuffer()
		total := 0
		for _, f := range frames {
			b.Append(f)
			total += len(f)
		}
		if b.TotalBytes() != total {
			rt.Fatalf("TotalBytes() = %d, want %d", b.TotalBytes(), total)
		}

		samples, n := b.DrainPCM()
		if n != total/2 || len(samples) != total/2 {
			rt.Fatalf("DrainPCM() count = %d (len %d), want %d", n, len(samples), total/2)
		}
		if _, again := b.DrainPCM(); again != 0 {
			rt.Fatalf("second DrainPCM() count = %d, want 0", again)
		}
	})
}

func TestMeetsMinimumDurationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rate := rapid.SampledFrom([]int{8000, 16000, 22050, 44100}).Draw(rt, "rate")
		secs := rapid.IntRange(1, 4).Draw(rt, "seconds")
		size := rapid.IntRange(0, 4*44100*2*2).Draw(rt, "bytes")

		b := NewBuffer()
		b.Append(make([]byte, size))
		want := size >= secs*rate*2
		if got := b.MeetsMinimumDuration(rate, float64(secs)); got != want {
			rt.Fatalf("MeetsMinimumDuration(%d, %d) with %d bytes = %v, want %v", rate, secs, size, got, want)
		}
	})
}

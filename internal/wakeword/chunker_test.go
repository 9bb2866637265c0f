package wakeword

import "testing"

func TestNewChunkerPanicsOnBadFrameLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for frame length 0")
		}
	}()
	NewChunker(0)
}

func TestChunkerExactMultiple(t *testing.T) {
	c := NewChunker(4)

	frames := c.Feed(seq(0, 12))
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 4 {
			t.Fatalf("frame %d length = %d, want 4", i, len(frame))
		}
		for j, s := range frame {
			if want := int16(i*4 + j); s != want {
				t.Fatalf("frame %d sample %d = %d, want %d", i, j, s, want)
			}
		}
	}
	if c.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", c.Pending())
	}
}

func TestChunkerCarriesRemainder(t *testing.T) {
	c := NewChunker(4)

	if frames := c.Feed(seq(0, 3)); frames != nil {
		t.Fatalf("got %d frames from short block, want none", len(frames))
	}
	if c.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", c.Pending())
	}

	// Completes the carried frame and leaves a fresh remainder.
	frames := c.Feed(seq(3, 6))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, frame := range frames {
		for j, s := range frame {
			if want := int16(i*4 + j); s != want {
				t.Fatalf("frame %d sample %d = %d, want %d", i, j, s, want)
			}
		}
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}
}

// TestChunkerNoSampleLoss feeds a stream in uneven blocks and checks the
// frames reassemble the stream exactly, in order, with only the tail pending.
func TestChunkerNoSampleLoss(t *testing.T) {
	const frameLen = 512
	c := NewChunker(frameLen)

	var rebuilt []int16
	total := 0
	for _, n := range []int{480, 512, 100, 1024, 7, 2000, 480} {
		for _, frame := range c.Feed(seq(total, total+n)) {
			rebuilt = append(rebuilt, frame...)
		}
		total += n
	}

	wantFrames := total / frameLen
	if len(rebuilt) != wantFrames*frameLen {
		t.Fatalf("rebuilt %d samples, want %d", len(rebuilt), wantFrames*frameLen)
	}
	for i, s := range rebuilt {
		if s != int16(i) {
			t.Fatalf("sample %d = %d, want %d", i, s, i)
		}
	}
	if c.Pending() != total%frameLen {
		t.Fatalf("Pending = %d, want %d", c.Pending(), total%frameLen)
	}
}

// seq returns int16 values [from, to).
func seq(from, to int) []int16 {
	out := make([]int16, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, int16(i))
	}
	return out
}

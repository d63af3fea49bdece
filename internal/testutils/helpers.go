package testutils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Epoch is the first instant returned by a Clock.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Sequence produces deterministic ids ("id-1", "id-2", ...).
// Safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a Sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next id.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Clock advances one second on every call, starting at Epoch.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// PNG encodes a solid w×h image. It fails the test immediately on error.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode test PNG")
	return buf.Bytes()
}

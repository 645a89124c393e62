package audio

import (
	"encoding/binary"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrFrozen is returned when audio is appended to an accumulator that has
// already handed its samples to a Buffer.
var ErrFrozen = errors.New("audio accumulator is frozen")

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

func (f Format) withDefaults() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultFormat.SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultFormat.Channels
	}
	return f
}

// BytesPerSecond is the raw S16LE data rate of the format.
func (f Format) BytesPerSecond() int {
	f = f.withDefaults()
	return f.SampleRate * f.Channels * 2
}

// Buffer is a finished recording. It is a read-only value: nothing can
// append to it once it exists.
type Buffer struct {
	format  Format
	samples []int16
	frames  int
}

// NewBuffer copies samples into a buffer holding a single frame.
func NewBuffer(format Format, samples []int16) Buffer {
	b := Buffer{format: format.withDefaults(), samples: slices.Clone(samples)}
	if len(samples) > 0 {
		b.frames = 1
	}
	return b
}

func (b Buffer) Format() Format {
	return b.format.withDefaults()
}

// Samples returns a copy of the interleaved samples.
func (b Buffer) Samples() []int16 {
	return slices.Clone(b.samples)
}

// Frames is the number of capture frames appended while recording.
func (b Buffer) Frames() int {
	return b.frames
}

func (b Buffer) Empty() bool {
	return len(b.samples) == 0
}

func (b Buffer) Duration() time.Duration {
	f := b.Format()
	perChannel := len(b.samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.SampleRate)
}

// Equal reports whether both buffers carry the same format and samples.
func (b Buffer) Equal(other Buffer) bool {
	return b.Format() == other.Format() && slices.Equal(b.samples, other.samples)
}

// Accumulator collects frames while recording. Each Write is one frame of
// raw S16LE bytes; a trailing odd byte is carried into the next frame.
type Accumulator struct {
	mu      sync.Mutex
	format  Format
	samples []int16
	frames  int
	carry   []byte
	frozen  bool
}

func NewAccumulator(format Format) *Accumulator {
	format = format.withDefaults()
	return &Accumulator{
		format:  format,
		samples: make([]int16, 0, format.SampleRate*format.Channels),
	}
}

func (a *Accumulator) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return 0, ErrFrozen
	}
	if len(p) == 0 {
		return 0, nil
	}

	data := p
	if len(a.carry) > 0 {
		data = append(a.carry, p...)
		a.carry = nil
	}

	n := len(data) / 2
	for i := 0; i < n; i++ {
		a.samples = append(a.samples, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	if len(data)%2 != 0 {
		a.carry = []byte{data[len(data)-1]}
	}
	a.frames++

	return len(p), nil
}

// Freeze ends accumulation and transfers the samples to a Buffer. Further
// writes fail with ErrFrozen. Freezing twice returns the same contents.
func (a *Accumulator) Freeze() Buffer {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frozen = true
	a.carry = nil
	return Buffer{format: a.format, samples: a.samples[:len(a.samples):len(a.samples)], frames: a.frames}
}

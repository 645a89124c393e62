package cue

import "math"

const toneRate = 44100

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
}

var (
	startTone = tone{freq: 1200, dur: 0.06, volume: 0.5, decay: 60}
	stopTone  = tone{freq: 900, dur: 0.08, volume: 0.5, decay: 40}
	errorTone = tone{freq: 350, dur: 0.08, volume: 0.6, decay: 30}
)

// S16LE mono at toneRate.
var (
	startSound      = tick(startTone)
	stopSound       = tick(stopTone)
	errorSound      = repeat(tick(errorTone), 0.05, 2)
	permissionSound = repeat(tick(errorTone), 0.12, 3)
)

func tick(t tone) []byte {
	n := int(toneRate * t.dur)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		x := float64(i) / toneRate
		envelope := math.Exp(-x * t.decay)
		s := int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * envelope)
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func repeat(beep []byte, gap float64, times int) []byte {
	silence := make([]byte, int(toneRate*gap)*2)
	out := make([]byte, 0, times*len(beep)+(times-1)*len(silence))
	for i := 0; i < times; i++ {
		if i > 0 {
			out = append(out, silence...)
		}
		out = append(out, beep...)
	}
	return out
}

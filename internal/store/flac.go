package store

import (
	"fmt"
	"io"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	flacBlockSize     = 4096
	flacBitsPerSample = 16
)

// EncodeFLAC writes buf as verbatim FLAC. Mono and stereo are kept as is;
// wider layouts are downmixed to mono.
func EncodeFLAC(w io.Writer, buf audio.Buffer) error {
	format := buf.Format()
	if format.Channels > 2 {
		format.Channels = 1
		buf = audio.Convert(buf, format)
	}

	channels := frame.ChannelsMono
	if format.Channels == 2 {
		channels = frame.ChannelsLR
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(format.SampleRate),
		NChannels:     uint8(format.Channels),
		BitsPerSample: flacBitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}

	samples := buf.Samples()
	perBlock := flacBlockSize * format.Channels
	for start := 0; start < len(samples); start += perBlock {
		end := min(start+perBlock, len(samples))
		if err := writeFLACFrame(enc, samples[start:end], format, channels); err != nil {
			_ = enc.Close()
			return err
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing flac encoder: %w", err)
	}
	return nil
}

func writeFLACFrame(enc *flac.Encoder, interleaved []int16, format audio.Format, channels frame.Channels) error {
	n := len(interleaved) / format.Channels
	subframes := make([]*frame.Subframe, format.Channels)
	for c := range subframes {
		samples := make([]int32, n)
		for i := 0; i < n; i++ {
			samples[i] = int32(interleaved[i*format.Channels+c])
		}
		subframes[c] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    uint32(format.SampleRate),
			Channels:      channels,
			BitsPerSample: flacBitsPerSample,
		},
		Subframes: subframes,
	}

	if err := enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	return nil
}

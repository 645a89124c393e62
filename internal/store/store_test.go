package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/fmueller/voxtype/internal/audio"
	"github.com/fmueller/voxtype/internal/domain"
	"github.com/mewkiz/flac"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func TestSaveWritesWAVNamedBySession(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "recordings")
	s, err := New(Config{Dir: dir, Now: fixedNow})
	require.NoError(t, err)
	require.Equal(t, dir, s.Dir())

	buf := audio.NewBuffer(audio.DefaultFormat, []int16{1, 2, 3, -4})
	path, err := s.Save(context.Background(), buf, "01890a5d-ac96-774b-bcce-b302099a8057")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "recording-20260304-050607-099a8057.wav"), path)

	read, err := audio.ReadWAVFile(path)
	require.NoError(t, err)
	require.True(t, buf.Equal(read))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".recording-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestSaveWritesFLAC(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Config{Dir: dir, Format: FormatFLAC, Now: fixedNow})
	require.NoError(t, err)

	samples := make([]int16, 5000)
	for i := range samples {
		samples[i] = int16(i%200 - 100)
	}
	path, err := s.Save(context.Background(), audio.NewBuffer(audio.DefaultFormat, samples), "abc")
	require.NoError(t, err)
	require.Equal(t, ".flac", filepath.Ext(path))

	require.Equal(t, samples, decodeFLAC(t, path))
}

func TestEncodeFLACStereo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.flac")
	out := &memWriteSeeker{}

	in := []int16{1, -1, 2, -2, 3, -3}
	require.NoError(t, EncodeFLAC(out, audio.NewBuffer(audio.Format{SampleRate: 16000, Channels: 2}, in)))
	require.NoError(t, os.WriteFile(path, out.buf, 0o644))

	stream, err := flac.ParseFile(path)
	require.NoError(t, err)
	defer stream.Close()
	require.EqualValues(t, 2, stream.Info.NChannels)

	fr, err := stream.ParseNext()
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, fr.Subframes[0].Samples)
	require.Equal(t, []int32{-1, -2, -3}, fr.Subframes[1].Samples)
}

func TestSaveEmptyBufferStillWritesFile(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Dir: t.TempDir(), Now: fixedNow})
	require.NoError(t, err)

	path, err := s.Save(context.Background(), audio.Buffer{}, "id")
	require.NoError(t, err)

	read, err := audio.ReadWAVFile(path)
	require.NoError(t, err)
	require.True(t, read.Empty())
}

func TestSaveUnwritableDirectory(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s, err := New(Config{Dir: filepath.Join(blocker, "recordings")})
	require.NoError(t, err)

	_, err = s.Save(context.Background(), audio.NewBuffer(audio.DefaultFormat, []int16{1}), "id")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.True(t, domain.IsStorage(err))
}

func TestSaveHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, audio.NewBuffer(audio.DefaultFormat, []int16{1}), "id")
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassifyDiskFull(t *testing.T) {
	t.Parallel()

	err := classify(fmt.Errorf("write recording: %w", &os.PathError{Op: "write", Path: "x", Err: syscall.ENOSPC}))
	require.ErrorIs(t, err, domain.ErrStorageFull)
	require.NotErrorIs(t, err, domain.ErrStorageUnavailable)

	err = classify(errors.New("read-only file system"))
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = New(Config{Dir: t.TempDir(), Format: "mp3"})
	require.ErrorContains(t, err, "unknown recording format")
}

func TestFileName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "recording-20260304-050607-unknown.wav", FileName(fixedNow(), "", ""))
	require.Equal(t, "recording-20260304-050607-abcd.flac", FileName(fixedNow(), "ABCD", FormatFLAC))
}

func TestMemWriteSeekerPatchesHeader(t *testing.T) {
	t.Parallel()

	m := &memWriteSeeker{}
	_, _ = m.Write([]byte("hello world"))
	_, err := m.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, _ = m.Write([]byte("J"))
	require.Equal(t, "Jello world", string(m.buf))
}

func decodeFLAC(t *testing.T, path string) []int16 {
	t.Helper()

	stream, err := flac.ParseFile(path)
	require.NoError(t, err)
	defer stream.Close()

	var out []int16
	for {
		fr, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		for _, s := range fr.Subframes[0].Samples {
			out = append(out, int16(s))
		}
	}
}

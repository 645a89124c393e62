package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fmueller/voxtype/internal/domain"
	"github.com/fmueller/voxtype/internal/hotkey"
	"github.com/stretchr/testify/require"
)

type daemonRun struct {
	cancel context.CancelFunc
	errCh  chan error
	stderr *syncBuffer
}

func startDaemon(t *testing.T, ta *testApp, args ...string) *daemonRun {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	run := &daemonRun{cancel: cancel, errCh: make(chan error, 1), stderr: new(syncBuffer)}

	cmd := newRootCmd(ta.appState)
	cmd.SetOut(new(syncBuffer))
	cmd.SetErr(run.stderr)
	cmd.SetArgs(args)
	go func() { run.errCh <- cmd.ExecuteContext(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-run.errCh:
		case <-time.After(5 * time.Second):
		}
	})
	return run
}

func (r *daemonRun) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
		return nil
	}
}

func waitForHotkey(t *testing.T, ta *testApp) *hotkey.FakeHotkey {
	t.Helper()
	require.Eventually(t, func() bool { return len(ta.hotkeys.registered()) > 0 }, 5*time.Second, 5*time.Millisecond)
	return ta.hotkeys.registered()[0]
}

func TestDaemonRecordsTranscribesAndTypes(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.cfg.Beep = true
	run := startDaemon(t, ta, "--language", "de", "--recording-format", "flac")
	hk := waitForHotkey(t, ta)

	hk.SimKeydown()
	require.Eventually(t, func() bool { return ta.backend.opened() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(run.stderr.String(), "recording")
	}, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	hk.SimKeydown()
	require.Eventually(t, func() bool { return len(ta.injector.injected()) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"hello world"}, ta.injector.injected())
	require.True(t, ta.backend.allClosed())

	reqs := ta.engine.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "de", reqs[0].Language)
	require.Equal(t, ta.modelPath, reqs[0].ModelPath)

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(ta.recDir)
		return err == nil && len(entries) == 1
	}, 5*time.Second, 5*time.Millisecond)
	entries, err := os.ReadDir(ta.recDir)
	require.NoError(t, err)
	require.Contains(t, entries[0].Name(), ".flac")

	require.NoError(t, run.stop(t))
	require.Empty(t, ta.hotkeys.registered())

	states, closed := ta.beeper.snapshot()
	require.True(t, closed)
	require.Equal(t, []domain.SessionState{
		domain.StateRecording,
		domain.StateTranscribing,
		domain.StateInjecting,
		domain.StateCompleted,
		domain.StateIdle,
	}, states)
	require.Contains(t, run.stderr.String(), "hello world")
}

func TestDaemonShutdownReleasesMicrophone(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	run := startDaemon(t, ta, "--save-recordings=false")
	hk := waitForHotkey(t, ta)

	hk.SimKeydown()
	require.Eventually(t, func() bool { return ta.backend.opened() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, run.stop(t))
	require.True(t, ta.backend.allClosed())
	require.Empty(t, ta.injector.injected())
	_, err := os.Stat(ta.recDir)
	require.True(t, errors.Is(err, os.ErrNotExist), "no recording directory expected, got %v", err)
}

func TestDaemonMicCheck(t *testing.T) {
	t.Parallel()

	t.Run("probe releases the device", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t)
		run := startDaemon(t, ta, "--mic-check")
		waitForHotkey(t, ta)

		require.Equal(t, 1, ta.backend.opened())
		require.True(t, ta.backend.allClosed())
		require.NoError(t, run.stop(t))
	})

	t.Run("permission denied stops startup", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t)
		ta.backend.openErr = errPermission
		_, _, err := ta.execute(t, "--mic-check")
		require.Error(t, err)
		require.True(t, domain.NeedsPermission(err))
		require.Contains(t, err.Error(), "microphone check")
		require.Empty(t, ta.hotkeys.keys)
	})

	t.Run("other failures are warnings", func(t *testing.T) {
		t.Parallel()

		ta := newTestApp(t)
		ta.backend.openErr = domain.ErrDeviceUnavailable
		run := startDaemon(t, ta, "--mic-check")
		waitForHotkey(t, ta)
		require.NoError(t, run.stop(t))
	})
}

func TestDaemonStartupFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(ta *testApp)
		args        []string
		errContains string
		is          error
	}{
		{
			name:        "engine missing",
			mutate:      func(ta *testApp) { ta.engine.missing = errors.New("whisper engine not found") },
			errContains: "whisper engine not found",
		},
		{
			name:        "model missing",
			args:        []string{"--model", "/no/such/model.bin"},
			errContains: "custom model path does not exist",
			is:          domain.ErrModelUnavailable,
		},
		{
			name:        "hotkey taken",
			mutate:      func(ta *testApp) { ta.hotkeys.regErr = errors.New("grab failed") },
			errContains: "register hotkey ctrl+shift+space",
		},
		{
			name:        "bad hotkey",
			args:        []string{"--hotkey", "ctrl+nope"},
			errContains: "invalid configuration",
		},
		{
			name:        "bad inject mode",
			args:        []string{"--inject-mode", "telepathy"},
			errContains: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t)
			if tt.mutate != nil {
				tt.mutate(ta)
			}
			_, _, err := ta.execute(t, tt.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
			}
			require.True(t, ta.backend.allClosed())
		})
	}
}

func TestDaemonRegistersEveryHotkey(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	run := startDaemon(t, ta, "--hotkey", "ctrl+shift+space", "--hotkey", "alt+f9")
	require.Eventually(t, func() bool { return len(ta.hotkeys.registered()) == 2 }, 5*time.Second, 5*time.Millisecond)

	ta.hotkeys.registered()[1].SimKeydown()
	require.Eventually(t, func() bool { return ta.backend.opened() == 1 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, run.stop(t))
	require.Empty(t, ta.hotkeys.registered())
}

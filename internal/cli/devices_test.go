package cli

import (
	"testing"

	"github.com/fmueller/voxtype/internal/record"
	"github.com/stretchr/testify/require"
)

func TestDevicesListsEveryBackend(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.backends = func() []record.Backend { return []record.Backend{ta.backend, ta.backend} }

	stdout, _, err := ta.execute(t, "devices")
	require.NoError(t, err)
	require.Contains(t, stdout, "== tone ==")
	require.Contains(t, stdout, "tone generator")
	require.Contains(t, stdout, "--backend tone")
	require.Zero(t, ta.backend.opened())
}

func TestDevicesFailsWithoutBackends(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.backends = func() []record.Backend { return nil }

	_, _, err := ta.execute(t, "devices")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported OS")
}

package inject

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeystrokeForLettersAndDigits(t *testing.T) {
	t.Parallel()

	lower, ok := keystrokeFor('a')
	require.True(t, ok)
	upper, ok := keystrokeFor('A')
	require.True(t, ok)
	require.Equal(t, lower.Code, upper.Code)
	require.False(t, lower.Shift)
	require.True(t, upper.Shift)

	_, ok = keystrokeFor('7')
	require.True(t, ok)
	_, ok = keystrokeFor(' ')
	require.True(t, ok)
}

func TestKeystrokeForRejectsNonASCII(t *testing.T) {
	t.Parallel()

	_, ok := keystrokeFor('ß')
	require.False(t, ok)
	_, ok = keystrokeFor('€')
	require.False(t, ok)
}

package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLockReportsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gts.lock")
	open := func() *os.File {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		require.NoError(t, err)
		t.Cleanup(func() { _ = f.Close() })
		return f
	}
	first, second := open(), open()

	require.NoError(t, tryLock(first))
	require.ErrorIs(t, tryLock(second), errHeld)
	require.NoError(t, unlock(first))
	require.NoError(t, tryLock(second))
	require.NoError(t, unlock(second))
}

package app

import (
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localroute/localroute/internal/domain"
)

func isolateRuntime(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("TMPDIR", t.TempDir())
	return filepath.Join(dir, "localroute")
}

func TestPidFile_Lifecycle(t *testing.T) {
	runDir := isolateRuntime(t)
	log := zerolog.Nop()

	assert.False(t, WatcherRunning())

	pidFile := createPidFile(log)
	require.Equal(t, filepath.Join(runDir, pidFileName), pidFile)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
	assert.True(t, WatcherRunning())
	assert.Equal(t, pidFile, findPidFile())

	removePidFile(pidFile, log)
	assert.False(t, WatcherRunning())
}

func TestSendReloadSignal_NoWatcher(t *testing.T) {
	isolateRuntime(t)

	err := SendReloadSignal()
	assert.ErrorIs(t, err, domain.ErrWatcherNotActive)
}

func TestSendReloadSignal_InvalidPid(t *testing.T) {
	runDir := isolateRuntime(t)
	require.NoError(t, os.MkdirAll(runDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, pidFileName), []byte("not-a-pid"), 0o600))

	err := SendReloadSignal()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse PID")
}

func TestSendReloadSignal_DeliversSIGUSR1(t *testing.T) {
	isolateRuntime(t)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	pidFile := createPidFile(zerolog.Nop())
	require.NotEmpty(t, pidFile)
	defer removePidFile(pidFile, zerolog.Nop())

	require.NoError(t, SendReloadSignal())

	select {
	case sig := <-sigs:
		assert.Equal(t, syscall.SIGUSR1, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("SIGUSR1 not delivered")
	}
}

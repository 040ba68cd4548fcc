package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/localroute/localroute/internal/domain"
)

const pidFileName = "localroute.pid"

// ConfigureViper sets up viper with standard config file search paths.
// Config file: localroute.yaml (or .toml/.json)
// Search paths (in order): current directory, $XDG_CONFIG_HOME/localroute, /etc/localroute
func ConfigureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.SetConfigName("localroute")
	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "localroute"))
	} else {
		v.AddConfigPath("$HOME/.config/localroute")
	}
	v.AddConfigPath("/etc/localroute")
}

// runtimeDir returns a private directory for runtime files.
// Priority: XDG_RUNTIME_DIR > ~/.localroute/run
func runtimeDir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		d := filepath.Join(dir, "localroute")
		if err := os.MkdirAll(d, 0700); err == nil {
			return d, nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	d := filepath.Join(homeDir, ".localroute", "run")
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return d, nil
}

// pidLocations lists candidate PID file paths, most private first.
func pidLocations() []string {
	var locations []string
	if dir, err := runtimeDir(); err == nil {
		locations = append(locations, filepath.Join(dir, pidFileName))
	}
	return append(locations, filepath.Join(os.TempDir(), pidFileName))
}

// createPidFile writes the PID of the watching process and returns its path.
func createPidFile(log zerolog.Logger) string {
	pid := os.Getpid()

	for _, location := range pidLocations() {
		if err := os.MkdirAll(filepath.Dir(location), 0700); err != nil {
			continue
		}
		if err := os.WriteFile(location, []byte(strconv.Itoa(pid)), 0600); err == nil {
			log.Debug().Str("pid_file", location).Int("pid", pid).Msg("created PID file")
			return location
		}
	}

	log.Warn().Int("pid", pid).Msg("failed to create PID file in any location")
	return ""
}

// removePidFile removes the PID file.
func removePidFile(pidFile string, log zerolog.Logger) {
	if pidFile == "" {
		return
	}
	if err := os.Remove(pidFile); err != nil {
		log.Warn().Err(err).Str("pid_file", pidFile).Msg("failed to remove PID file")
	} else {
		log.Debug().Str("pid_file", pidFile).Msg("removed PID file")
	}
}

// findPidFile returns the first existing PID file, or "".
func findPidFile() string {
	for _, location := range pidLocations() {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// WatcherRunning reports whether a watching process left a PID file.
func WatcherRunning() bool {
	return findPidFile() != ""
}

// SendReloadSignal sends SIGUSR1 to the running watcher.
func SendReloadSignal() error {
	pidFile := findPidFile()
	if pidFile == "" {
		return domain.ErrWatcherNotActive
	}

	pidBytes, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return fmt.Errorf("failed to parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGUSR1); err != nil {
		return fmt.Errorf("failed to send reload signal to %d: %w", pid, err)
	}

	return nil
}

// Package daemon keeps a single watcher process running per installation.
// The liveness marker is a pid file; its existence is the only record of
// whether the watcher runs.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrNotRunning is returned when no liveness marker exists.
var ErrNotRunning = errors.New("watcher is not running")

// AlreadyRunningError is returned by Start when a marker already exists.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("watcher already running (pid %d)", e.PID)
}

// Marker is the liveness marker file holding the daemon's decimal pid.
type Marker struct {
	path string
}

func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

func (m *Marker) Path() string { return m.path }

// Read returns the pid stored in the marker. ok is false when the marker
// does not exist.
func (m *Marker) Read() (pid int, ok bool, err error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read pid file: %w", err)
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true, fmt.Errorf("invalid pid file content: %w", err)
	}
	return pid, true, nil
}

// Exists reports whether the marker is present.
func (m *Marker) Exists() (bool, error) {
	_, err := os.Stat(m.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat pid file: %w", err)
}

// Write stores pid in the marker, creating its directory if needed.
func (m *Marker) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Remove deletes the marker. A missing marker is not an error.
func (m *Marker) Remove() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// processAlive reports whether a process with pid exists, by sending it
// signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

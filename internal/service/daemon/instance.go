package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/step-alarm/internal/config"
)

// ErrAlreadyRunning is returned when another daemon holds the pid file.
var ErrAlreadyRunning = errors.New("step alarm daemon is already running")

// instanceLock is a pid file that keeps a second daemon from arming the
// same sensors.
type instanceLock struct {
	path string
}

// acquireInstance writes the current pid to path unless the pid file names
// a live process running the same executable.
func acquireInstance(path string) (*instanceLock, error) {
	path = filepath.Clean(path)

	if pid, ok := readPID(path); ok {
		running, err := sameExecutableRunning(pid)
		if err != nil {
			return nil, err
		}

		if running {
			return nil, fmt.Errorf("%w: pid %d (%s)", ErrAlreadyRunning, pid, path)
		}
	}

	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &instanceLock{path: path}, nil
}

// release removes the pid file if it still names this process.
func (l *instanceLock) release() error {
	if l == nil {
		return nil
	}

	if pid, ok := readPID(l.path); !ok || pid != os.Getpid() {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}

	return nil
}

func readPID(path string) (int, bool) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	return pid, true
}

// sameExecutableRunning reports whether pid is alive and runs the same
// binary as this process. The kernel truncates process names, so the
// comparison is by prefix.
func sameExecutableRunning(pid int) (bool, error) {
	if pid == os.Getpid() {
		return false, nil
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("find process %d: %w", pid, err)
	}

	if process == nil {
		return false, nil
	}

	self, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("resolve executable: %w", err)
	}

	name := process.Executable()

	return name != "" && strings.HasPrefix(filepath.Base(self), name), nil
}

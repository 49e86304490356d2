// Package lockfile implements catsync.lock, a run lock that keeps two
// sync processes from writing the same catalog files at once. The lock
// records the holder's PID and start time; a lock whose process is gone
// is stale and silently reclaimed.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// LockFileName is the lock file name, created in the project root.
const LockFileName = "catsync.lock"

// Lock describes a held run lock.
type Lock struct {
	PID     int       `yaml:"pid"`
	Started time.Time `yaml:"started"`

	path string `yaml:"-"`
}

// Acquire takes the run lock for dir. It fails when another live process
// holds it; a lock left behind by a dead process is reclaimed.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFileName)

	if existing, err := read(path); err == nil {
		if processAlive(existing.PID) {
			return nil, fmt.Errorf("another sync is running (pid %d, started %s)",
				existing.PID, existing.Started.Format(time.RFC3339))
		}
	}

	l := &Lock{
		PID:     os.Getpid(),
		Started: time.Now(),
		path:    path,
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling lock: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return l, nil
}

// Release removes the lock file. Safe to call once after Acquire.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

func read(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Lock
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	l.path = path
	return &l, nil
}

// processAlive reports whether a process with the given PID exists.
// Signal 0 performs the existence check without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

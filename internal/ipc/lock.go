// Package ipc keeps a single daemon instance per lock file.
package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
)

// PIDSuffix is appended to the lock path to name the PID file.
const PIDSuffix = ".pid"

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// InstanceLock is an exclusive advisory lock plus a PID file next to it.
type InstanceLock struct {
	lock    *flock.Flock
	pidPath string
}

// Acquire takes the lock at path without blocking and writes the current PID.
func Acquire(path string) (*InstanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		if pid, err := ReadPID(PIDPath(path)); err == nil && IsRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, pid, path)
		}
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}

	l := &InstanceLock{lock: fl, pidPath: PIDPath(path)}
	if err := WritePID(l.pidPath, os.Getpid()); err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	return l, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.lock.Path()
}

// Release удаляет PID файл и снимает блокировку
func (l *InstanceLock) Release() error {
	if l == nil {
		return nil
	}
	var errs []error
	if err := os.Remove(l.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to unlock: %w", err))
	}
	return errors.Join(errs...)
}

// PIDPath возвращает путь к PID файлу для lock-файла
func PIDPath(lockPath string) string {
	return lockPath + PIDSuffix
}

// WritePID записывает PID в файл
func WritePID(pidPath string, pid int) error {
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", pid)), 0o600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPID читает PID из файла
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}

	return pid, nil
}

// IsRunning проверяет что процесс запущен
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 only checks that the process exists.
	return process.Signal(syscall.Signal(0)) == nil
}

package app

import (
	"errors"
)

// Shutdown releases what Initialize acquired. It is safe to call more than
// once. The scheduler itself stops when its context is cancelled.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.shutdownInternal()
}

func (a *App) shutdownInternal() error {
	var errs []error

	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.logger.Error("failed to release instance lock", err)
			errs = append(errs, err)
		}
		a.lock = nil
	}

	a.metricsServer = nil
	a.initialized = false
	return errors.Join(errs...)
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}

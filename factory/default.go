package factory

import (
	"context"
	"sync"

	"github.com/gobeaver/netfs"
)

// Global instance
var (
	defaultMu   sync.Mutex
	defaultReg  *Registry
	defaultOnce sync.Once
	defaultErr  error
)

// Init initializes the process-wide registry. Without settings they are
// loaded from the environment. The scheme table comes from
// Settings.RegistryFile when set, the built-in table otherwise. Only the
// first call has an effect until Reset.
//
// If the environment cannot be parsed the error is returned, logged once,
// and the registry is built from the default settings.
func Init(settings ...*netfs.Settings) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return initLocked(settings...)
}

// initLocked runs the one-time initialization. defaultMu must be held.
func initLocked(settings ...*netfs.Settings) error {
	defaultOnce.Do(func() {
		var s *netfs.Settings
		if len(settings) > 0 && settings[0] != nil {
			s = settings[0]
		} else {
			s, defaultErr = netfs.GetSettings()
			if defaultErr != nil {
				netfs.Logger().Warn("settings not loaded, using defaults", "error", defaultErr)
				s = netfs.DefaultSettings()
			}
		}
		defaultReg = NewRegistry(s, tableFor(s))
	})
	return defaultErr
}

func tableFor(s *netfs.Settings) Table {
	if s.RegistryFile != "" {
		return LoadTableFile(s.RegistryFile)
	}
	return DefaultTable()
}

// Default returns the process-wide registry, initializing it on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	_ = initLocked()
	return defaultReg
}

// Reset clears the process-wide registry (for testing)
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultReg = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}

// CreateFileSystem creates a FileSystem through the process-wide registry.
func CreateFileSystem(ctx context.Context, raw string) (netfs.FileSystem, error) {
	return Default().CreateFileSystem(ctx, raw)
}

// Register adds scheme to the process-wide registry.
func Register(scheme string, ctor Constructor) {
	Default().Register(scheme, ctor)
}

// Unregister removes scheme from the process-wide registry.
func Unregister(scheme string) {
	Default().Unregister(scheme)
}

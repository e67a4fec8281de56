// Package factory resolves URI strings to initialized netfs.FileSystem
// values.
//
// A Registry maps lower-cased schemes to constructors. Lookup takes the
// text before the first colon as the scheme, except for a colon at index 1,
// which is a drive letter and selects the local backend. Unknown schemes fall
// back to the local backend.
package factory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/gobeaver/netfs"
	"github.com/gobeaver/netfs/driver/ftp"
	"github.com/gobeaver/netfs/driver/local"
	"github.com/gobeaver/netfs/driver/s3"
	"github.com/gobeaver/netfs/driver/sftp"
	"github.com/gobeaver/netfs/driver/smb"
)

// Constructor creates an uninitialized FileSystem.
type Constructor func(settings *netfs.Settings) netfs.FileSystem

var builtins = map[netfs.Kind]Constructor{
	netfs.KindLocal: func(s *netfs.Settings) netfs.FileSystem { return local.New(s) },
	netfs.KindFTP:   func(s *netfs.Settings) netfs.FileSystem { return ftp.New(s) },
	netfs.KindSFTP:  func(s *netfs.Settings) netfs.FileSystem { return sftp.New(s) },
	netfs.KindSMB:   func(s *netfs.Settings) netfs.FileSystem { return smb.New(s) },
	netfs.KindS3:    func(s *netfs.Settings) netfs.FileSystem { return s3.New(s) },
}

// Builtin returns the constructor of a built-in backend.
func Builtin(kind netfs.Kind) (Constructor, bool) {
	ctor, ok := builtins[kind]
	return ctor, ok
}

// Registry maps schemes to constructors. It is safe for concurrent use;
// the FileSystems it creates are not.
type Registry struct {
	mu       sync.RWMutex
	schemes  map[string]Constructor
	settings *netfs.Settings
}

// NewRegistry creates a registry populated from table. Table entries naming
// an unknown backend are skipped.
func NewRegistry(settings *netfs.Settings, table Table) *Registry {
	if settings == nil {
		settings = netfs.DefaultSettings()
	}
	r := &Registry{schemes: make(map[string]Constructor), settings: settings}
	for kind, schemes := range table.Backends {
		ctor, ok := Builtin(netfs.Kind(strings.ToLower(strings.TrimSpace(kind))))
		if !ok {
			netfs.Logger().Warn("unknown backend in scheme table", "backend", kind)
			continue
		}
		for _, scheme := range splitSchemes(schemes) {
			r.schemes[scheme] = ctor
		}
	}
	return r
}

// Settings returns the settings passed to every constructor.
func (r *Registry) Settings() *netfs.Settings {
	return r.settings
}

// Register maps scheme to ctor, replacing any previous entry. A nil ctor
// removes the scheme.
func (r *Registry) Register(scheme string, ctor Constructor) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctor == nil {
		delete(r.schemes, scheme)
		return
	}
	r.schemes[scheme] = ctor
}

// Unregister removes scheme.
func (r *Registry) Unregister(scheme string) {
	r.Register(scheme, nil)
}

// Lookup returns the constructor registered for scheme.
func (r *Registry) Lookup(scheme string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.schemes[strings.ToLower(scheme)]
	return ctor, ok
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemes))
	for s := range r.schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CreateFileSystem resolves raw to a backend, constructs it and runs Init.
// A FileSystem whose Init fails is closed before the error is returned.
func (r *Registry) CreateFileSystem(ctx context.Context, raw string) (netfs.FileSystem, error) {
	if raw == "" {
		return nil, &netfs.PathError{Op: "create", Path: raw, Err: netfs.ErrInvalidArgument}
	}

	scheme := netfs.SchemeOf(raw)
	if scheme == "" {
		scheme = netfs.SchemeFile
	}
	ctor, ok := r.Lookup(scheme)
	if !ok {
		netfs.Logger().Warn("no backend registered for scheme, using local", "scheme", scheme)
		ctor = builtins[netfs.KindLocal]
	}

	uri, err := netfs.ParseURI(raw)
	if err != nil {
		return nil, err
	}

	fs := ctor(r.settings)
	if err := fs.Init(ctx, uri); err != nil {
		if cerr := fs.Close(); cerr != nil {
			netfs.Logger().Debug("close after failed init", "uri", uri.Redacted(), "error", cerr)
		}
		return nil, netfs.WrapPathErr("init", uri.Redacted(), err)
	}
	netfs.Logger().Debug("filesystem created",
		slog.String("kind", string(fs.Kind())),
		slog.String("uri", uri.Redacted()),
		slog.String("base", fs.Base()))
	return fs, nil
}

func splitSchemes(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

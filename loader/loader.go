package loader

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coreos/go-semver/semver"
	"go.uber.org/zap"

	"github.com/pamgate/pamgate/errors"
)

// Default shared-object names tried in order when no path override is given.
// The soname first: that is what distributions actually install.
var defaultCandidates = []string{"libpam.so.0", "libpam.so"}

// Directories searched when resolving the library's real (versioned) filename.
// Resolution is best effort and only feeds version discovery; the dynamic
// linker performs its own search for the actual load.
var searchDirs = []string{
	"/lib/x86_64-linux-gnu",
	"/lib/aarch64-linux-gnu",
	"/usr/lib/x86_64-linux-gnu",
	"/usr/lib/aarch64-linux-gnu",
	"/lib64",
	"/usr/lib64",
	"/lib",
	"/usr/lib",
}

// Options configures a load attempt.
type Options struct {
	// Path overrides the conventional search with an explicit shared object.
	Path string

	// MinVersion rejects libraries older than this, when the installed
	// version can be discovered from the resolved filename.
	MinVersion *semver.Version
}

// Option mutates Options.
type Option func(*Options)

// WithPath overrides the module search with an explicit shared-object path.
func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

// WithMinVersion sets the minimum acceptable library version.
func WithMinVersion(v *semver.Version) Option {
	return func(o *Options) { o.MinVersion = v }
}

var (
	loadMu        sync.Mutex
	loadAttempted bool
	loadedCap     *Capability
	loadErr       error
)

// Load resolves the native PAM module and its entry points. The result is
// cached process-wide: loading is attempted at most once and later calls
// return the cached outcome, ignoring their options, unless Reset intervenes.
// A missing library or symbol yields an unavailable error, never a panic; no
// native code executes until a transaction starts.
func Load(opts ...Option) (*Capability, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if loadAttempted {
		return loadedCap, loadErr
	}
	loadAttempted = true

	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	loadedCap, loadErr = open(&o)
	if loadErr != nil {
		Logger().Warn("native PAM module unavailable", zap.Error(loadErr))
		return nil, loadErr
	}

	fields := []zap.Field{zap.String("path", loadedCap.Path())}
	if v := loadedCap.Version(); v != nil {
		fields = append(fields, zap.String("version", v.String()))
	}
	Logger().Info("native PAM module loaded", fields...)
	return loadedCap, nil
}

// Reset clears the cached load outcome so the next Load attempts again. The
// previously mapped library is not unloaded; live capabilities stay valid.
// Intended for tests and for retrying after the module gets installed.
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()

	loadAttempted = false
	loadedCap = nil
	loadErr = nil
}

// Path returns the shared-object name or path the capability was loaded from.
func (c *Capability) Path() string { return c.path }

// Version returns the library version discovered from the resolved filename,
// or nil when it could not be determined.
func (c *Capability) Version() *semver.Version { return c.version }

// checkVersion enforces Options.MinVersion against a discovered version.
func checkVersion(o *Options, v *semver.Version) error {
	if o.MinVersion == nil || v == nil {
		return nil
	}
	if v.LessThan(*o.MinVersion) {
		return errors.Unavailable(
			"installed libpam "+v.String()+" is older than required "+o.MinVersion.String(), nil)
	}
	return nil
}

// discoverVersion resolves name to its real filename and parses a trailing
// "libpam.so.X.Y.Z" version. Returns nil when nothing can be determined.
func discoverVersion(name string) *semver.Version {
	if filepath.IsAbs(name) {
		return parseSoVersion(resolveSymlinks(name))
	}
	for _, dir := range searchDirs {
		p := filepath.Join(dir, name)
		if _, err := os.Lstat(p); err != nil {
			continue
		}
		if v := parseSoVersion(resolveSymlinks(p)); v != nil {
			return v
		}
	}
	return nil
}

func resolveSymlinks(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}

// parseSoVersion extracts the version from a filename like "libpam.so.0.85.1".
// Missing minor/patch components are padded with zeros.
func parseSoVersion(path string) *semver.Version {
	base := filepath.Base(path)
	idx := strings.Index(base, ".so.")
	if idx < 0 {
		return nil
	}
	raw := base[idx+len(".so."):]
	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		return nil
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil
	}
	return v
}

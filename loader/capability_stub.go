//go:build !(linux && (amd64 || arm64))

package loader

import (
	"github.com/coreos/go-semver/semver"

	"github.com/pamgate/pamgate/errors"
)

// Capability is unavailable on this platform; the loader reports so instead of
// failing the build, matching the graceful-absence contract.
type Capability struct {
	path    string
	version *semver.Version
}

func open(o *Options) (*Capability, error) {
	return nil, errors.Unavailable("PAM bridging requires linux on amd64 or arm64", nil)
}

// Start always fails on this platform.
func (c *Capability) Start(service, user string, fn ConvFunc) (Transaction, error) {
	return nil, errors.Unavailable("PAM bridging requires linux on amd64 or arm64", nil)
}

// Describe falls back to the symbolic code name.
func (c *Capability) Describe(code Code) string {
	return code.String()
}

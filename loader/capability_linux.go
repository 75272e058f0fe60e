//go:build linux && (amd64 || arm64)

package loader

import (
	"unsafe"

	"github.com/coreos/go-semver/semver"
	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/pamgate/pamgate/errors"
)

// 64-bit layout of the PAM structs the bridge touches.
//
//	struct pam_message  { int msg_style; const char *msg; }
//	struct pam_response { char *resp; int resp_retcode; }
const (
	ptrSize       = 8
	msgTextOffset = 8
	respSize      = 16
)

// pamConv mirrors struct pam_conv. pam_start copies it, but each transaction
// keeps its own instance alive for the full native call anyway.
type pamConv struct {
	conv    uintptr
	appdata uintptr
}

// Capability is the loaded native module: the resolved set of entry points,
// immutable once constructed and shared read-only by all engines.
type Capability struct {
	path    string
	version *semver.Version

	pamStart        func(service, user string, conv unsafe.Pointer, pamh unsafe.Pointer) int32
	pamAuthenticate func(pamh uintptr, flags int32) int32
	pamAcctMgmt     func(pamh uintptr, flags int32) int32
	pamEnd          func(pamh uintptr, status int32) int32
	pamStrerror     func(pamh uintptr, errnum int32) string
}

// convs holds the live conversation callbacks, keyed by the opaque value the
// trampoline receives as appdata_ptr.
var convs = newConvTable()

// convThunk is the single C-callable conversation trampoline, registered once
// for the process. It fans a PAM message batch out to the Go callback one
// message at a time and assembles the malloc'd response array PAM expects to
// take ownership of.
var convThunk = purego.NewCallback(func(numMsg int32, msg, resp, appdata uintptr) int32 {
	fn, ok := convs.get(appdata)
	if !ok || numMsg <= 0 || msg == 0 || resp == 0 {
		return int32(ConvErr)
	}

	n := int(numMsg)
	styles := make([]Style, n)
	replies := make([]string, n)
	for i := 0; i < n; i++ {
		mp := *(*uintptr)(unsafe.Pointer(msg + uintptr(i)*ptrSize))
		if mp == 0 {
			return int32(ConvErr)
		}
		styles[i] = Style(*(*int32)(unsafe.Pointer(mp)))
		text := goString(*(*uintptr)(unsafe.Pointer(mp + msgTextOffset)))

		reply, ok := fn(styles[i], text)
		if !ok {
			return int32(ConvErr)
		}
		replies[i] = reply
	}

	// One slot per message, zeroed; the module frees the array and the
	// strdup'd replies, so both must come from the C allocator.
	arr := cCalloc(uintptr(n), respSize)
	if arr == 0 {
		return int32(BufErr)
	}
	for i := 0; i < n; i++ {
		if styles[i] != PromptEchoOn && styles[i] != PromptEchoOff {
			continue
		}
		*(*uintptr)(unsafe.Pointer(arr + uintptr(i)*respSize)) = cStrdup(replies[i])
	}
	*(*uintptr)(unsafe.Pointer(resp)) = arr
	return int32(Success)
})

var (
	cCalloc func(nmemb, size uintptr) uintptr
	cStrdup func(s string) uintptr

	libcBound bool
)

// bindLibc resolves the allocator entry points PAM's response ownership
// contract requires. Resolved from the default namespace; libpam links libc.
func bindLibc() error {
	if libcBound {
		return nil
	}
	callocAddr, err := purego.Dlsym(purego.RTLD_DEFAULT, "calloc")
	if err != nil {
		return errors.Unavailable("calloc not resolvable", err)
	}
	strdupAddr, err := purego.Dlsym(purego.RTLD_DEFAULT, "strdup")
	if err != nil {
		return errors.Unavailable("strdup not resolvable", err)
	}
	purego.RegisterFunc(&cCalloc, callocAddr)
	purego.RegisterFunc(&cStrdup, strdupAddr)
	libcBound = true
	return nil
}

// open locates the shared object and resolves the fixed set of entry points.
// Any failure is reported as unavailable so callers can pick another
// authentication method at configuration time.
func open(o *Options) (*Capability, error) {
	candidates := defaultCandidates
	if o.Path != "" {
		candidates = []string{o.Path}
	}

	var (
		lib      uintptr
		name     string
		firstErr error
	)
	for _, cand := range candidates {
		Logger().Debug("trying PAM shared object", zap.String("candidate", cand))
		h, err := purego.Dlopen(cand, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			lib, name = h, cand
			break
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if lib == 0 {
		return nil, errors.Unavailable("no loadable PAM shared object", firstErr)
	}

	if err := bindLibc(); err != nil {
		return nil, err
	}

	c := &Capability{path: name, version: discoverVersion(name)}
	if err := checkVersion(o, c.version); err != nil {
		return nil, err
	}

	required := []struct {
		name string
		fptr any
	}{
		{"pam_start", &c.pamStart},
		{"pam_authenticate", &c.pamAuthenticate},
		{"pam_acct_mgmt", &c.pamAcctMgmt},
		{"pam_end", &c.pamEnd},
	}
	for _, sym := range required {
		addr, err := purego.Dlsym(lib, sym.name)
		if err != nil {
			return nil, errors.Unavailable("entry point "+sym.name+" not found", err)
		}
		purego.RegisterFunc(sym.fptr, addr)
	}

	// pam_strerror only improves error text; its absence is not fatal.
	if addr, err := purego.Dlsym(lib, "pam_strerror"); err == nil {
		purego.RegisterFunc(&c.pamStrerror, addr)
	}

	return c, nil
}

// nativeTx owns one PAM transaction handle. The handle is created and ended on
// the same worker OS thread; it never leaves this struct.
type nativeTx struct {
	cap  *Capability
	conv *pamConv
	pamh uintptr
	key  uintptr
}

// Start begins a transaction for the given service and user and binds fn as
// its conversation callback.
func (c *Capability) Start(service, user string, fn ConvFunc) (Transaction, error) {
	key := convs.insert(fn)
	pc := &pamConv{conv: convThunk, appdata: key}

	var pamh uintptr
	code := Code(c.pamStart(service, user, unsafe.Pointer(pc), unsafe.Pointer(&pamh)))
	if !code.OK() {
		if pamh != 0 {
			c.pamEnd(pamh, int32(code))
		}
		convs.remove(key)
		return nil, errors.Native("pam_start", int32(code), c.Describe(code))
	}

	return &nativeTx{cap: c, conv: pc, pamh: pamh, key: key}, nil
}

// Describe renders a native return code using pam_strerror when available.
func (c *Capability) Describe(code Code) string {
	if c.pamStrerror != nil {
		if s := c.pamStrerror(0, int32(code)); s != "" {
			return s
		}
	}
	return code.String()
}

func (t *nativeTx) Authenticate() Code {
	return Code(t.cap.pamAuthenticate(t.pamh, 0))
}

func (t *nativeTx) AcctMgmt() Code {
	return Code(t.cap.pamAcctMgmt(t.pamh, 0))
}

func (t *nativeTx) End(status Code) {
	t.cap.pamEnd(t.pamh, int32(status))
	convs.remove(t.key)
	t.pamh = 0
}

// goString copies a NUL-terminated C string into Go memory.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

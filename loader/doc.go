// Package loader discovers and loads the native PAM module at most once per
// process and exposes it as a capability: a resolved, immutable set of entry
// points (pam_start, pam_authenticate, pam_acct_mgmt, pam_end) behind the
// Transactor interface.
//
// Loading is soft-fail by design. A missing library, an unresolvable symbol,
// or an unsupported platform yields an unavailable error so the application
// can choose a different authentication method at configuration time; nothing
// ever aborts the process. No native code executes until a transaction starts.
//
// The shared object is located through conventional sonames ("libpam.so.0",
// then "libpam.so") unless WithPath overrides the search. When the resolved
// filename carries a version suffix (libpam.so.0.85.1), it is parsed and can
// be gated with WithMinVersion.
//
// All unsafe and purego code lives here. The conversation callback crosses the
// native boundary exactly once, as a single process-wide trampoline; per
// conversation state is keyed through an opaque handle table so no Go pointer
// is ever handed to PAM.
package loader

// Package dispatch lets the host address N parallel, structurally
// identical implementations of the same logical framework surface, one
// per installed SDK version plus the unversioned development build.
//
// The registry is populated once at process start through explicit
// registration and is read-only afterwards, hence safe for
// unsynchronized concurrent reads. Dispatch then resolves a (version,
// logical name) pair into a handle and invokes members reflectively,
// which substitutes for the dynamic-linking mechanism the platform
// does not provide.
package dispatch

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/expo/exphost/internal/model"
	"github.com/expo/exphost/internal/sdkver"
)

var (
	// ErrResolution indicates that no implementation is installed for
	// the requested (version, logical name) pair.
	ErrResolution = fmt.Errorf("%w: no implementation installed", model.ErrDispatch)

	// ErrNoSuchMember indicates that no signature-compatible member
	// exists for the requested invocation.
	ErrNoSuchMember = fmt.Errorf("%w: no signature-compatible member", model.ErrDispatch)

	// ErrHandleInvalidated indicates use of a handle whose owning
	// framework instance has been torn down.
	ErrHandleInvalidated = fmt.Errorf("%w: handle has been invalidated", model.ErrDispatch)
)

// InvocationFault wraps an error raised by the callee itself. Callers
// must not assume an InvocationFault means "absent": the member was
// found and called, and the call failed.
type InvocationFault struct {
	// Member is the member whose invocation failed.
	Member string

	// Cause is the callee's own error.
	Cause error
}

// Error implements error.
func (f *InvocationFault) Error() string {
	return fmt.Sprintf("dispatch: invoking %s: %s", f.Member, f.Cause.Error())
}

// Unwrap returns the callee's error.
func (f *InvocationFault) Unwrap() error {
	return f.Cause
}

// Is lets errors.Is match an InvocationFault against model.ErrDispatch.
func (f *InvocationFault) Is(target error) bool {
	return target == model.ErrDispatch
}

// Registration binds a logical capability name, for one version, to
// its concrete implementation.
type Registration struct {
	// Value is the implementation instance whose exported methods
	// Invoke can call.
	Value any

	// Constructors lists the constructor functions that Construct
	// matches arguments against.
	Constructors []any
}

// Registry maps (version, logical name) pairs to installed
// implementations. Construct with NewRegistry and populate with
// Register before any Resolve call.
type Registry struct {
	entries map[string]*Registration
	logger  model.Logger
	sealed  atomic.Bool
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger model.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Registration),
		logger:  model.ValidLoggerOrDefault(logger),
	}
}

// VersionPrefix derives the namespace prefix for a version tag:
// "30.0.0" becomes "v30_0_0" and the Unversioned sentinel maps to the
// empty prefix, resolving to the development build.
func VersionPrefix(version string) string {
	if version == sdkver.Unversioned {
		return ""
	}
	return "v" + strings.ReplaceAll(version, ".", "_")
}

// qualifiedName joins the version-derived prefix with the logical name.
func qualifiedName(version, logicalName string) string {
	prefix := VersionPrefix(version)
	if prefix == "" {
		return logicalName
	}
	return prefix + "." + logicalName
}

// Register installs an implementation for the given version and
// logical name. Registering after the first Resolve is a programming
// error; so is registering the same pair twice.
func (r *Registry) Register(version, logicalName string, reg *Registration) {
	if r.sealed.Load() {
		panic("dispatch: Register called after first Resolve")
	}
	name := qualifiedName(version, logicalName)
	if _, found := r.entries[name]; found {
		panic(fmt.Sprintf("dispatch: duplicate registration for %s", name))
	}
	r.entries[name] = reg
}

// Resolve maps a version tag and a logical operation name to a Handle
// for the corresponding installed implementation.
func (r *Registry) Resolve(version, logicalName string) (*Handle, error) {
	r.sealed.Store(true)
	name := qualifiedName(version, logicalName)
	reg, found := r.entries[name]
	if !found {
		r.logger.Warnf("dispatch: cannot resolve %s for version %s", logicalName, version)
		return nil, fmt.Errorf("%w: %s", ErrResolution, name)
	}
	return &Handle{name: name, reg: reg, version: version}, nil
}

// Handle binds a logical capability to a concrete, version-qualified
// implementation. A handle must not be reused after Invalidate.
type Handle struct {
	invalid atomic.Bool
	name    string
	reg     *Registration
	version string
}

// Version returns the version tag that produced this handle.
func (h *Handle) Version() string {
	return h.version
}

// Name returns the fully qualified implementation name.
func (h *Handle) Name() string {
	return h.name
}

// Invalidate poisons the handle. Call it when the owning experience's
// framework instance is torn down.
func (h *Handle) Invalidate() {
	h.invalid.Store(true)
}

// live returns an error when the handle has been invalidated.
func (h *Handle) live() error {
	if h.invalid.Load() {
		return fmt.Errorf("%w: %s", ErrHandleInvalidated, h.name)
	}
	return nil
}

// Package api defines public API contracts for plugin-shmem.
//
// The host engine owns one shared memory segment and a handful of well-known
// extension points. Extensions see it only through the interfaces below.
package api

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"
)

// ErrInvalidName is returned for names the host index cannot store.
var ErrInvalidName = errors.New("invalid shared memory name")

// MaxNameLen is the longest slot or tranche name the host index accepts.
// Index keys are 48 bytes including the terminating NUL.
const MaxNameLen = 47

// LockMode selects how a Lock is held.
type LockMode int

const (
	// LockShared allows any number of concurrent shared holders.
	LockShared LockMode = iota
	// LockExclusive excludes every other holder.
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// Lock is a named, process-shared lock provided by the host.
// Acquire blocks until the lock is granted; there is no timeout.
type Lock interface {
	Acquire(mode LockMode)
	Release()
}

// Host is the capability surface the host engine exposes to extensions.
type Host interface {
	// RequestAddinShmemSpace adds size bytes to the shared memory size ledger.
	RequestAddinShmemSpace(size uintptr) error
	// RequestNamedLWLockTranche reserves count locks under name.
	RequestNamedLWLockTranche(name string, count int) error
	// ShmemInitStruct finds or allocates the named slot. found reports
	// whether the slot existed before the call.
	ShmemInitStruct(name string, size uintptr) (addr unsafe.Pointer, found bool, err error)
	// AddinShmemInitLock is the well-known lock serializing slot initialization.
	AddinShmemInitLock() Lock
	// NamedLWLockTranche returns the first lock of a tranche reserved earlier.
	NamedLWLockTranche(name string) (Lock, error)
}

// Hook is a callback stored in one of the host's extension points.
type Hook func() error

// Process is a host backend as seen by an extension's module-load callback.
type Process interface {
	Host
	HookSlots
}

// ValidateName checks a slot or tranche name against the host index limits.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidName, name, MaxNameLen)
	case strings.IndexByte(name, 0) >= 0:
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	return nil
}

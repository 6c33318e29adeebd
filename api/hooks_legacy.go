//go:build shmem_legacy

package api

// HookSlots are the host's startup extension points. Hosts built with
// shmem_legacy size the segment from requests made during module load and
// have no pre-sizing hook.
type HookSlots interface {
	// SwapShmemStartupHook installs h and returns the previous hook, or nil.
	SwapShmemStartupHook(h Hook) Hook
}

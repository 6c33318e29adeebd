//go:build !shmem_legacy

package api

// HookSlots are the host's startup extension points. Each Swap installs h and
// returns the previously installed hook, which may be nil.
type HookSlots interface {
	// SwapShmemRequestHook replaces the pre-sizing hook. The host runs it once,
	// before computing the segment size.
	SwapShmemRequestHook(h Hook) Hook
	// SwapShmemStartupHook replaces the hook run after the segment exists.
	SwapShmemStartupHook(h Hook) Hook
}

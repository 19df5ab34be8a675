package vm

import "unsafe"

// Allocator is the host allocation interface the heap interrupts (§4.4,
// §6) delegate to. The VM holds no per-block metadata of its own; tracking
// liveness is entirely the allocator's responsibility, matching §3's
// "tracking is delegated to the host allocator interface."
type Allocator interface {
	// Alloc reserves size bytes and returns a real pointer to the first
	// byte, or ok == false on failure (surfaced to the program as a null
	// pointer per §7).
	Alloc(size uint64) (ptr uintptr, ok bool)
	// Free releases a block previously returned by Alloc. Freeing an
	// unknown or already-freed pointer is a no-op: the spec places no
	// requirement on double-free detection (the host OS is the backstop,
	// §1 Non-goals).
	Free(ptr uintptr)
}

// goAllocator implements Allocator on top of the Go runtime's own
// allocator and GC. Each block is a normal Go []byte; its address is
// pinned by keeping the slice header alive in blocks for as long as the
// program holds the address, since the VM only ever sees a uintptr and the
// GC must not reclaim (or, on a moving collector, relocate) memory still
// reachable only through a raw integer.
type goAllocator struct {
	blocks map[uintptr][]byte
}

// NewAllocator returns the default Allocator, backed by the Go heap.
func NewAllocator() Allocator {
	return &goAllocator{blocks: make(map[uintptr][]byte)}
}

func (a *goAllocator) Alloc(size uint64) (uintptr, bool) {
	if size == 0 {
		return 0, false
	}
	b := make([]byte, size)
	ptr := uintptr(unsafe.Pointer(&b[0]))
	a.blocks[ptr] = b
	return ptr, true
}

func (a *goAllocator) Free(ptr uintptr) {
	delete(a.blocks, ptr)
}

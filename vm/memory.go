package vm

// This file implements the generic load<N>/store<N> family (§4.1, §4.2):
// access through an untyped 64-bit "real pointer" popped off the data
// stack. Every multi-byte access goes through encoding/binary (via
// getUint/putUint in stack.go) rather than a typed dereference, so
// unaligned addresses are always handled correctly (§4.2, §9) — there is
// no *T cast of a byte pointer anywhere in this file.

// inStackRange reports whether addr looks like it points into the
// operation stack buffer, ignoring width. Used only to decide whether a
// safe-mode bounds check applies; addresses outside the stack buffer are
// assumed to be heap or program-space addresses, which the VM cannot
// bounds-check (§4.2: "heap addresses cannot be checked and are delegated
// to the OS").
func (i *Instance) inStackRange(addr uintptr) bool {
	base := i.stack.base()
	return addr >= base && addr < base+uintptr(len(i.stack.buf))
}

// checkedAddr validates addr for a safe-mode access of n bytes, when the
// address appears to target the operation stack. Addresses outside the
// stack buffer pass through unchecked.
func (i *Instance) checkedAddr(addr uintptr, n int) error {
	if !i.safe || !i.inStackRange(addr) {
		return nil
	}
	if !i.stack.contains(addr, n) {
		return trap(TrapBadAddress, i.PC, "")
	}
	return nil
}

// loadReal implements load<N>: pop a real pointer, push the N bytes read
// from that address.
func (i *Instance) loadReal(n int) error {
	addr, err := i.popN(8)
	if err != nil {
		return err
	}
	ptr := uintptr(addr)
	if err := i.checkedAddr(ptr, n); err != nil {
		return err
	}
	v := getUint(rawAt(ptr, n), n)
	return i.pushN(n, v)
}

// storeReal implements store<N>: pop N bytes, then pop a real pointer,
// write the bytes to that address.
func (i *Instance) storeReal(n int) error {
	v, err := i.popN(n)
	if err != nil {
		return err
	}
	addr, err := i.popN(8)
	if err != nil {
		return err
	}
	ptr := uintptr(addr)
	if err := i.checkedAddr(ptr, n); err != nil {
		return err
	}
	putUint(rawAt(ptr, n), n, v)
	return nil
}

// loadStatic implements loadstatic<N>: pop a virtual offset, push the N
// bytes read from that offset in program space. A convenience that folds
// vtr into load<N> (§4.1) without a separate bounds-checked real-pointer
// round trip.
func (i *Instance) loadStatic(n int) error {
	voff, err := i.popN(8)
	if err != nil {
		return err
	}
	if voff+uint64(n) > uint64(len(i.space)) {
		return trap(TrapBadVirtualOffset, i.PC, "")
	}
	v := getUint(i.space[voff:voff+uint64(n)], n)
	return i.pushN(n, v)
}

// vtr implements the vtr instruction: pop a virtual offset, push the
// corresponding real pointer.
func (i *Instance) vtr() error {
	voff, err := i.popN(8)
	if err != nil {
		return err
	}
	real, terr := i.translate(voff)
	if terr != nil {
		return terr
	}
	return i.pushN(8, uint64(real))
}

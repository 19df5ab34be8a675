package vm

import "bytes"

// InterruptCode identifies a one-byte interrupt dispatch code (§4.5).
type InterruptCode byte

// Built-in interrupt codes (SPEC_FULL §C). Codes 6-255 are free for
// program-defined handlers registered via the assembler's `.inthandler`
// directive.
const (
	IntAlloc             InterruptCode = 0
	IntFree              InterruptCode = 1
	IntPrintByte         InterruptCode = 2
	IntPrintCString      InterruptCode = 3
	IntPrintStaticString InterruptCode = 4
	IntReadByte          InterruptCode = 5
)

// eofMarker is pushed by IntReadByte on end of input: an all-ones 8-byte
// value, distinguishable from any real byte value (which is zero-extended).
const eofMarker = ^uint64(0)

// InterruptHandler implements a built-in interrupt: it may pop/push the
// data stack and read/write the VM's I/O channels.
type InterruptHandler func(i *Instance) error

// interruptSlot is either a built-in handler or a program-defined handler
// address (a virtual program-space offset), never both.
type interruptSlot struct {
	builtin   InterruptHandler
	offset    int
	isProgram bool
	bound     bool
}

// interruptTable dispatches a one-byte interrupt code to a handler (§4.5).
type interruptTable struct {
	slots [256]interruptSlot
}

func newInterruptTable() *interruptTable {
	t := &interruptTable{}
	t.registerBuiltin(IntAlloc, builtinAlloc)
	t.registerBuiltin(IntFree, builtinFree)
	t.registerBuiltin(IntPrintByte, builtinPrintByte)
	t.registerBuiltin(IntPrintCString, builtinPrintCString)
	t.registerBuiltin(IntPrintStaticString, builtinPrintStaticString)
	t.registerBuiltin(IntReadByte, builtinReadByte)
	return t
}

func (t *interruptTable) registerBuiltin(code InterruptCode, h InterruptHandler) {
	t.slots[code] = interruptSlot{builtin: h, bound: true}
}

// RegisterProgramHandler maps an interrupt code to a program-space offset,
// the assembler's `.inthandler <code> <label>` directive (§4.5). It
// overrides any previous binding for that code, including a built-in.
func (i *Instance) RegisterProgramHandler(code InterruptCode, offset int) {
	i.interrupts.slots[code] = interruptSlot{offset: offset, isProgram: true, bound: true}
}

// dispatch executes the interrupt bound to code. Program-defined handlers
// push the return PC (the instruction after `int`) and jump; they must
// terminate with `ret`. Unregistered codes trap (§4.5, §7).
func (i *Instance) dispatch(code InterruptCode, returnPC int) error {
	slot := i.interrupts.slots[code]
	if !slot.bound {
		return trap(TrapUnregisteredInterrupt, returnPC, "")
	}
	if slot.isProgram {
		if err := i.stack.push(8, uint64(returnPC)); err != nil {
			return i.trapAt(err)
		}
		i.PC = slot.offset
		return nil
	}
	i.log.WithField("int", byte(code)).Trace("dispatching built-in interrupt")
	return slot.builtin(i)
}

func builtinAlloc(i *Instance) error {
	size, err := i.popN(8)
	if err != nil {
		return err
	}
	ptr, ok := i.allocator.Alloc(size)
	if !ok {
		ptr = 0
	}
	return i.pushN(8, uint64(ptr))
}

func builtinFree(i *Instance) error {
	ptr, err := i.popN(8)
	if err != nil {
		return err
	}
	i.allocator.Free(uintptr(ptr))
	return nil
}

func builtinPrintByte(i *Instance) error {
	b, err := i.popN(1)
	if err != nil {
		return err
	}
	_, werr := i.output.Write([]byte{byte(b)})
	return werr
}

func builtinPrintCString(i *Instance) error {
	ptr, err := i.popN(8)
	if err != nil {
		return err
	}
	return i.writeCString(uintptr(ptr))
}

func builtinPrintStaticString(i *Instance) error {
	voff, err := i.popN(8)
	if err != nil {
		return err
	}
	real, terr := i.translate(voff)
	if terr != nil {
		return terr
	}
	return i.writeCString(real)
}

// writeCString writes bytes starting at a real pointer up to (not
// including) the first NUL byte (§4.5).
func (i *Instance) writeCString(addr uintptr) error {
	// The scan is capped at maxScan bytes wherever addr points (program
	// space, heap or stack); if no NUL turns up within that, the first
	// maxScan bytes are written.
	const maxScan = 1 << 20
	raw := rawAt(addr, maxScan)
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		end = maxScan
	}
	_, err := i.output.Write(raw[:end])
	return err
}

func builtinReadByte(i *Instance) error {
	var b [1]byte
	n, err := i.input.Read(b[:])
	if n == 0 || err != nil {
		return i.pushN(8, eofMarker)
	}
	return i.pushN(8, uint64(b[0]))
}

package vm

import (
	"io"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultStackSize is the operation stack's default size in bytes.
const defaultStackSize = 64 * 1024

// Option configures an Instance at construction time, in the teacher's
// functional-options style (db47h/ngaro's vm.Option).
type Option func(*Instance) error

// StackSize sets the operation stack's size in bytes.
func StackSize(size int) Option {
	return func(i *Instance) error {
		if size <= 0 {
			return errors.New("stack size must be positive")
		}
		i.stack = newOperandStack(size)
		return nil
	}
}

// SafeMode enables or disables bounds checking on generic load/store
// against the operation stack (§4.2). Safe by default.
func SafeMode(safe bool) Option {
	return func(i *Instance) error { i.safe = safe; return nil }
}

// WithAllocator overrides the default Go-heap-backed Allocator used by the
// alloc/free interrupts (§4.4).
func WithAllocator(a Allocator) Option {
	return func(i *Instance) error { i.allocator = a; return nil }
}

// Input sets the byte source consumed by the read-byte interrupt (§4.5,
// §6's host I/O boundary).
func Input(r io.Reader) Option {
	return func(i *Instance) error { i.input = r; return nil }
}

// Output sets the byte sink consumed by the print interrupts.
func Output(w io.Writer) Option {
	return func(i *Instance) error { i.output = w; return nil }
}

// Logger overrides the default logrus.Logger used for diagnostics. By
// default, a logger at Warn level writing to stderr is used so the VM is
// silent unless something goes wrong or the caller raises verbosity
// (SPEC_FULL §E).
func Logger(l *logrus.Logger) Option {
	return func(i *Instance) error { i.log = l; return nil }
}

// ProgramHandler registers a program-defined interrupt handler at
// construction time; the assembler emits these via `.inthandler` and the
// CLI wires the resulting table in before Run (§4.5).
func ProgramHandler(code InterruptCode, offset int) Option {
	return func(i *Instance) error {
		i.RegisterProgramHandler(code, offset)
		return nil
	}
}

// runState is the state machine of §4.10: ready -> running -> {halted,
// trapped}, both terminal.
type runState int

const (
	stateReady runState = iota
	stateRunning
	stateHalted
	stateTrapped
)

// Instance is one VM: its program space, operation stack, heap allocator
// and interrupt table. Never share an Instance across goroutines (§5).
type Instance struct {
	PC int

	image      Image
	space      []byte // image[8:]; what PC/vtr address
	stack      *operandStack
	allocator  Allocator
	interrupts *interruptTable
	input      io.Reader
	output     io.Writer
	log        *logrus.Logger

	safe     bool
	state    runState
	exitCode int
	insCount int64
}

// New creates a VM instance from an assembled Image (§3, §6). The image's
// first 8 bytes are decoded as the little-endian entry offset and become
// the initial PC.
func New(image Image, opts ...Option) (*Instance, error) {
	if len(image) < 8 {
		return nil, errors.New("image too small: missing 8-byte entry header")
	}
	entry, err := image.EntryOffset()
	if err != nil {
		return nil, errors.Wrap(err, "decode entry header")
	}
	space := []byte(image[8:])
	if entry > len(space) {
		return nil, errors.Errorf("entry offset %d past end of program space (%d bytes)", entry, len(space))
	}
	i := &Instance{
		PC:         entry,
		image:      image,
		space:      space,
		allocator:  NewAllocator(),
		interrupts: newInterruptTable(),
		input:      os.Stdin,
		output:     os.Stdout,
		safe:       true,
		state:      stateReady,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, errors.Wrap(err, "apply option")
		}
	}
	if i.stack == nil {
		i.stack = newOperandStack(defaultStackSize)
	}
	if i.log == nil {
		i.log = NewLogger(os.Stderr, logrus.WarnLevel)
	}
	return i, nil
}

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 { return i.insCount }

// StackTrace returns the occupied region of the operand stack, topmost byte
// first, as a debugging aid for CLI/test diagnostics (no disassembler-free
// equivalent exists elsewhere since the operand stack has no fixed element
// width to print as Cells the way ngaro's Data() does).
func (i *Instance) StackTrace() []byte {
	occupied := i.stack.buf[i.stack.sp:]
	trace := make([]byte, len(occupied))
	copy(trace, occupied)
	return trace
}

// ExitCode returns the halt opcode's immediate byte after a clean halt.
func (i *Instance) ExitCode() int { return i.exitCode }

// programBase is the real pointer corresponding to virtual offset 0.
func (i *Instance) programBase() uintptr {
	if len(i.space) == 0 {
		// an empty program space still needs a well-defined (if unusable)
		// base so vtr(0) doesn't panic dereferencing a nil slice header.
		return uintptr(unsafe.Pointer(&i.space))
	}
	return uintptr(unsafe.Pointer(&i.space[0]))
}

// translate implements vtr: virtual offset -> real pointer (§3, §4.1).
// Traps with TrapBadVirtualOffset if voff falls outside program space.
func (i *Instance) translate(voff uint64) (uintptr, error) {
	if voff > uint64(len(i.space)) {
		return 0, trap(TrapBadVirtualOffset, i.PC, "")
	}
	return i.programBase() + uintptr(voff), nil
}

// trapAt fills in the PC of a trap whose origin (e.g. the stack) didn't
// know the current instruction's address when it was raised.
func (i *Instance) trapAt(err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(*TrapError); ok && te.PC < 0 {
		te.PC = i.PC
	}
	return err
}

// popN pops n bytes off the data stack as a zero-extended uint64, with PC
// filled in on trap.
func (i *Instance) popN(n int) (uint64, error) {
	v, err := i.stack.pop(n)
	if err != nil {
		return 0, i.trapAt(err)
	}
	return v, nil
}

// pushN pushes v as an n-byte little-endian value, with PC filled in on
// trap.
func (i *Instance) pushN(n int, v uint64) error {
	return i.trapAt(i.stack.push(n, v))
}

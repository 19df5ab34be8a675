package asm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avm-project/avm/vm"
)

// writeSrc writes src to name under dir and returns the full path.
func writeSrc(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestAssembleStackArithmetic(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
	loadc4 3
	loadc4 4
	addi4
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	entry, err := res.Image.EntryOffset()
	if err != nil {
		t.Fatalf("EntryOffset: %v", err)
	}
	if entry != 0 {
		t.Errorf("entry offset = %d, want 0", entry)
	}

	i, err := vm.New(res.Image)
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", i.ExitCode())
	}
}

func TestAssembleStaticStringViaDataSection(t *testing.T) {
	dir := t.TempDir()
	src := `
.section data
@greeting
	.asciiz "hi"

.section text entry
	loadc8 greeting
	int 4
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var out []byte
	i, err := vm.New(res.Image, vm.Output(&writerFunc{w: &out}))
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "hi" {
		t.Errorf("printed %q, want %q", out, "hi")
	}
}

func TestAssembleUndefinedLabelProducesNoImage(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
	jmp nowhere
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err == nil {
		t.Fatalf("Assemble succeeded, want undefined label error")
	}
	if res != nil {
		t.Errorf("Assemble returned a non-nil result alongside an error")
	}
	if _, ok := err.(ErrAsm); !ok {
		t.Errorf("error type = %T, want ErrAsm", err)
	}
}

func TestAssembleDuplicateLabelIsAnError(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
@again
	nop
@again
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	if _, err := Assemble(path); err == nil {
		t.Fatalf("Assemble succeeded, want duplicate label error")
	}
}

func TestAssembleIncludeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "consts.inc", `
.section text
@start
`)
	src := `
include "consts.inc"
include "consts.inc"
.section text
	loadc8 start
	pop8
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	entry, err := res.Image.EntryOffset()
	if err != nil {
		t.Fatalf("EntryOffset: %v", err)
	}
	// @start is the very first byte of the text section and the text
	// section is the entry section, so entry offset and the label's
	// fixed-up address both land on 0 - a duplicate splice would have
	// triggered "duplicate label" instead of succeeding at all.
	if entry != 0 {
		t.Errorf("entry offset = %d, want 0", entry)
	}
}

func TestAssembleIncludeMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	src := `
include "nope.inc"
.section text
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	if _, err := Assemble(path); err == nil {
		t.Fatalf("Assemble succeeded, want missing-include error")
	}
}

func TestAssembleLabelForwardAndBackwardReference(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
	jmp skip
@back
	halt 0
@skip
	jmp back
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Image) == 0 {
		t.Fatalf("empty image")
	}
}

func TestAssembleMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	src := `
%pushTwo
	loadc4 2
%endmacro

.section text
	!pushTwo
	!pushTwo
	addi4
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	i, err := vm.New(res.Image)
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestAssembleUnknownMacroInvocationFails(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
	!neverDefined
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	if _, err := Assemble(path); err == nil {
		t.Fatalf("Assemble succeeded, want unknown-macro error")
	}
}

func TestAssembleMacroRecursionDepthExceeded(t *testing.T) {
	dir := t.TempDir()
	src := `
%a
	!a
%endmacro

.section text
	!a
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	if _, err := Assemble(path, MaxMacroDepth(4)); err == nil {
		t.Fatalf("Assemble succeeded, want recursion-depth error")
	}
}

func TestAssembleInterruptHandlerRegistration(t *testing.T) {
	dir := t.TempDir()
	src := `
.section text
	halt 0

.section handlers
@onTick
	ret

.inthandler 10 onTick
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	off, ok := res.Handlers[vm.InterruptCode(10)]
	if !ok {
		t.Fatalf("interrupt code 10 was not registered")
	}

	i, err := vm.New(res.Image, vm.ProgramHandler(vm.InterruptCode(10), off))
	if err != nil {
		t.Fatalf("vm.New: %v", err)
	}
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestAssembleEntrySectionOrderedFirst(t *testing.T) {
	dir := t.TempDir()
	src := `
.section data
	.byte 1, 2, 3

.section text entry
	halt 0
`
	path := writeSrc(t, dir, "main.asm", src)

	res, err := Assemble(path)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	entry, err := res.Image.EntryOffset()
	if err != nil {
		t.Fatalf("EntryOffset: %v", err)
	}
	if entry != 0 {
		t.Errorf("entry offset = %d, want 0 (entry section must be placed first)", entry)
	}
}

func TestAssembleMissingEntrySectionFails(t *testing.T) {
	dir := t.TempDir()
	src := `
.section data
	.byte 1
`
	path := writeSrc(t, dir, "main.asm", src)

	if _, err := Assemble(path); err == nil {
		t.Fatalf("Assemble succeeded, want missing-entry-section error")
	}
}

func TestAssembleLibraryPathFallback(t *testing.T) {
	libDir := t.TempDir()
	writeSrc(t, libDir, "lib.inc", `
.section text
@entryPoint
`)

	srcDir := t.TempDir()
	src := `
include "lib.inc"
.section text
	loadc8 entryPoint
	pop8
	halt 0
`
	path := writeSrc(t, srcDir, "main.asm", src)

	if _, err := Assemble(path); err == nil {
		t.Fatalf("Assemble succeeded without library path, want missing-include error")
	}

	res, err := Assemble(path, LibraryPath(libDir))
	if err != nil {
		t.Fatalf("Assemble with LibraryPath: %v", err)
	}
	if len(res.Image) == 0 {
		t.Fatalf("empty image")
	}
}

// writerFunc adapts a *[]byte into an io.Writer for capturing VM stdout in
// tests, mirroring the teacher's pattern of a minimal test-only io.Writer.
type writerFunc struct {
	w *[]byte
}

func (w *writerFunc) Write(p []byte) (int, error) {
	*w.w = append(*w.w, p...)
	return len(p), nil
}

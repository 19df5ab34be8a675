package asm

// section is one named, ordered emission region (§4.3, GLOSSARY
// "Section"): raw assembled bytes plus (via the parser's labels/fixups
// maps, keyed by section name) everything needed to place it absolutely
// in pass 2. Grounded on the teacher's single flat image buffer
// (asm/parser.go's `p.i []vm.Cell`), generalized to multiple named,
// independently-based byte regions.
type section struct {
	name    string
	isEntry bool
	bytes   []byte
}

func newSection(name string, isEntry bool) *section {
	return &section{name: name, isEntry: isEntry}
}

func (s *section) offset() int { return len(s.bytes) }

func (s *section) emitByte(b byte) { s.bytes = append(s.bytes, b) }

func (s *section) emitBytes(b []byte) { s.bytes = append(s.bytes, b...) }

// emitPlaceholder reserves n zero bytes for a later fixup and returns
// their offset within the section.
func (s *section) emitPlaceholder(n int) int {
	off := len(s.bytes)
	s.bytes = append(s.bytes, make([]byte, n)...)
	return off
}

// label tracks one label's definition site (section + within-section
// offset) — generalized from the teacher's asm.label/labelSite pair
// (db47h/ngaro asm/parser.go) to a (section, offset) pair instead of a
// single flat address, since this assembler has more than one section.
type label struct {
	defined bool
	section string
	offset  int
	pos     Position
}

// fixup is a deferred write of a resolved label's absolute offset into a
// placeholder already emitted into a section (§4.9 pass 1/2, GLOSSARY
// "Fixup").
type fixup struct {
	section string
	offset  int
	width   int
	label   string
	pos     Position
}

// interruptBinding is one `.inthandler <code> <label>` directive (§4.5's
// "registration mechanism"), resolved to an absolute program-space offset
// in pass 2.
type interruptBinding struct {
	code  byte
	label string
	pos   Position
}

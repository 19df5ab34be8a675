package asm

import (
	"github.com/avm-project/avm/vm"
)

// parser implements pass 1 (§4.9): it walks the fully preprocessed token
// stream, encoding instructions into the current section's byte buffer
// and recording label definitions and fixups for pass 2 (layout.go).
// Errors are collected, not fatal, so one run surfaces as many problems
// as possible (§7) — generalized from the teacher's asm.parser, which
// does the same over a single flat vm.Cell buffer instead of named
// sections.
type parser struct {
	errCollector

	sections     []*section
	sectionIndex map[string]*section
	cur          *section

	labels  map[string]*label
	fixups  []fixup
	intBind []interruptBinding

	entryLabel  string
	entryLblPos Position
}

func newParser() *parser {
	return &parser{
		sectionIndex: make(map[string]*section),
		labels:       make(map[string]*label),
	}
}

// parse walks the token stream once, dispatching each item.
func (p *parser) parse(toks []Token) {
	i := 0
	for i < len(toks) {
		if p.abort() {
			return
		}
		tok := toks[i]
		switch tok.Kind {
		case TokLabelDef:
			p.defineLabel(tok)
			i++
		case TokDirective:
			i = p.directive(toks, i)
		case TokIdent:
			i = p.instruction(toks, i)
		case TokComma:
			p.errorAt(tok.Pos, "unexpected ','")
			i++
		default:
			p.errorf(tok.Pos, "unexpected token")
			i++
		}
	}
}

func (p *parser) defineLabel(tok Token) {
	if p.cur == nil {
		p.errorf(tok.Pos, "label @%s defined outside any section", tok.Text)
		return
	}
	if existing, ok := p.labels[tok.Text]; ok && existing.defined {
		p.errorf(tok.Pos, "duplicate label @%s, first defined at %s", tok.Text, existing.pos)
		return
	}
	p.labels[tok.Text] = &label{defined: true, section: p.cur.name, offset: p.cur.offset(), pos: tok.Pos}
}

// refLabel records a use of name at the given fixup site, creating an
// (as yet undefined) label entry if this is the first mention.
func (p *parser) refLabel(name string, pos Position) {
	if _, ok := p.labels[name]; !ok {
		p.labels[name] = &label{pos: pos}
	}
}

func (p *parser) getOrMakeSection(name string) *section {
	if s, ok := p.sectionIndex[name]; ok {
		return s
	}
	s := newSection(name, name == "text")
	p.sectionIndex[name] = s
	p.sections = append(p.sections, s)
	return s
}

// directive handles one `.name ...` item and returns the index of the
// next unconsumed token.
func (p *parser) directive(toks []Token, i int) int {
	tok := toks[i]
	i++
	switch tok.Text {
	case "section":
		if i >= len(toks) || toks[i].Kind != TokIdent {
			p.errorAt(tok.Pos, ".section: expected a section name")
			return i
		}
		name := toks[i].Text
		i++
		s := p.getOrMakeSection(name)
		if i < len(toks) && toks[i].Kind == TokIdent && toks[i].Text == "entry" {
			s.isEntry = true
			i++
		}
		p.cur = s
		return i
	case "entry":
		if i >= len(toks) || toks[i].Kind != TokIdent {
			p.errorAt(tok.Pos, ".entry: expected a label name")
			return i
		}
		p.entryLabel = toks[i].Text
		p.entryLblPos = toks[i].Pos
		p.refLabel(p.entryLabel, toks[i].Pos)
		return i + 1
	case "inthandler":
		if i >= len(toks) || (toks[i].Kind != TokInt && toks[i].Kind != TokChar) {
			p.errorAt(tok.Pos, ".inthandler: expected an integer interrupt code")
			return i
		}
		code := toks[i].Int
		i++
		if i >= len(toks) || toks[i].Kind != TokIdent {
			p.errorAt(tok.Pos, ".inthandler: expected a handler label")
			return i
		}
		label := toks[i].Text
		p.refLabel(label, toks[i].Pos)
		p.intBind = append(p.intBind, interruptBinding{code: byte(code), label: label, pos: tok.Pos})
		return i + 1
	case "byte":
		return p.directiveByte(toks, i, tok)
	case "asciiz":
		if i >= len(toks) || toks[i].Kind != TokString {
			p.errorAt(tok.Pos, ".asciiz: expected a string literal")
			return i
		}
		if !p.requireSection(tok.Pos) {
			return i + 1
		}
		p.cur.emitBytes([]byte(toks[i].Text))
		return i + 1
	default:
		p.errorf(tok.Pos, "unknown directive .%s", tok.Text)
		return i
	}
}

// directiveByte handles `.byte <v>(, <v>)*`.
func (p *parser) directiveByte(toks []Token, i int, dirTok Token) int {
	p.requireSection(dirTok.Pos) // emits its own error; we still consume operands below
	for {
		if i >= len(toks) || (toks[i].Kind != TokInt && toks[i].Kind != TokChar) {
			p.errorAt(dirTok.Pos, ".byte: expected an integer or char literal")
			return i
		}
		v := toks[i].Int
		if v > 0xff {
			p.errorf(toks[i].Pos, ".byte: value %d does not fit in one byte", v)
		}
		if p.cur != nil {
			p.cur.emitByte(byte(v))
		}
		i++
		if i < len(toks) && toks[i].Kind == TokComma {
			i++
			continue
		}
		return i
	}
}

func (p *parser) requireSection(pos Position) bool {
	if p.cur == nil {
		p.errorAt(pos, "item outside any section: add a .section directive first")
		return false
	}
	return true
}

// instruction handles one mnemonic and its operand (if any), returning
// the index of the next unconsumed token.
func (p *parser) instruction(toks []Token, i int) int {
	tok := toks[i]
	op, ok := vm.Lookup(tok.Text)
	if !ok {
		p.errorf(tok.Pos, "unknown mnemonic %q", tok.Text)
		return i + 1
	}
	i++
	if !p.requireSection(tok.Pos) {
		return p.skipOperand(toks, i, op)
	}
	p.cur.emitByte(byte(op))

	n := op.OperandBytes()
	if n == 0 {
		return i
	}
	// int/halt operands are literal interrupt/exit codes, never addresses.
	literalOnly := op == vm.OpInt || op == vm.OpHalt
	return p.emitOperand(toks, i, tok.Pos, n, literalOnly)
}

// skipOperand advances past an instruction's operand tokens without
// emitting anything, used after an error has already made emission
// pointless (no current section) but we still want to keep parsing.
func (p *parser) skipOperand(toks []Token, i int, op vm.Opcode) int {
	if op.OperandBytes() == 0 {
		return i
	}
	if i < len(toks) {
		return i + 1
	}
	return i
}

// emitOperand consumes one operand token (an integer/char literal, or a
// bare identifier naming a label) and writes n bytes: the literal value
// directly, or a zero placeholder plus a fixup for a label reference.
func (p *parser) emitOperand(toks []Token, i int, instrPos Position, n int, literalOnly bool) int {
	if i >= len(toks) {
		p.errorAt(instrPos, "missing operand")
		return i
	}
	tok := toks[i]
	switch tok.Kind {
	case TokInt, TokChar:
		off := p.cur.emitPlaceholder(n)
		putBytes(p.cur.bytes[off:off+n], n, tok.Int)
		return i + 1
	case TokIdent:
		if literalOnly {
			p.errorf(tok.Pos, "operand must be a literal, not a label reference: %s", tok.Text)
			p.cur.emitPlaceholder(n)
			return i + 1
		}
		off := p.cur.emitPlaceholder(n)
		p.refLabel(tok.Text, tok.Pos)
		p.fixups = append(p.fixups, fixup{section: p.cur.name, offset: off, width: n, label: tok.Text, pos: tok.Pos})
		return i + 1
	default:
		p.errorAt(instrPos, "expected an operand (literal or label)")
		return i
	}
}

// putBytes writes v as an n-byte little-endian value into b, mirroring
// vm's putUint but kept local: asm only borrows vm's opcode table (SPEC_FULL
// §A), not its unexported memory helpers.
func putBytes(b []byte, n int, v uint64) {
	for k := 0; k < n; k++ {
		b[k] = byte(v >> (8 * uint(k)))
	}
}

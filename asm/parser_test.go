package asm

import (
	"testing"

	"github.com/avm-project/avm/vm"
)

func lex(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := tokenize("t.asm", src)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return toks
}

func TestParserEmitsOpcodeAndLiteralOperand(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\nloadc4 42"))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	sec := p.sectionIndex["text"]
	if sec == nil {
		t.Fatalf("section \"text\" was not created")
	}
	if len(sec.bytes) != 5 {
		t.Fatalf("got %d bytes, want 5 (1 opcode + 4 operand)", len(sec.bytes))
	}
	if sec.bytes[0] != byte(vm.OpLoadC4) {
		t.Errorf("opcode byte = %d, want %d", sec.bytes[0], vm.OpLoadC4)
	}
}

func TestParserLabelReferenceRecordsFixup(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\njmp there\n@there\nhalt 0"))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	if len(p.fixups) != 1 {
		t.Fatalf("got %d fixups, want 1", len(p.fixups))
	}
	if p.fixups[0].label != "there" {
		t.Errorf("fixup label = %q, want \"there\"", p.fixups[0].label)
	}
	lbl, ok := p.labels["there"]
	if !ok || !lbl.defined {
		t.Fatalf("label \"there\" was not recorded as defined")
	}
}

func TestParserDuplicateLabelIsAnError(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\n@x\nnop\n@x\nnop"))
	if len(p.errs) == 0 {
		t.Fatalf("expected a duplicate-label error")
	}
}

func TestParserLabelOutsideSectionIsAnError(t *testing.T) {
	p := newParser()
	p.parse(lex(t, "@x\nnop"))
	if len(p.errs) == 0 {
		t.Fatalf("expected a label-outside-section error")
	}
}

func TestParserUnknownMnemonicIsAnError(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\nbogusop"))
	if len(p.errs) == 0 {
		t.Fatalf("expected an unknown-mnemonic error")
	}
}

func TestParserIntOperandIsLiteralNotLabel(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\nint loop"))
	if len(p.errs) == 0 {
		t.Fatalf("expected an error: `int` takes a literal operand, not a label reference")
	}
}

func TestParserByteDirectiveEmitsEachValue(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section data\n.byte 1, 2, 3"))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	sec := p.sectionIndex["data"]
	if string(sec.bytes) != "\x01\x02\x03" {
		t.Errorf("got %v, want [1 2 3]", sec.bytes)
	}
}

func TestParserByteDirectiveRejectsOversizedValue(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section data\n.byte 300"))
	if len(p.errs) == 0 {
		t.Fatalf("expected an out-of-range .byte error")
	}
}

func TestParserAsciizAppendsBytesVerbatim(t *testing.T) {
	p := newParser()
	p.parse(lex(t, `.section data
.asciiz "hi"`))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	sec := p.sectionIndex["data"]
	if string(sec.bytes) != "hi\x00" {
		t.Errorf("got %q, want %q", sec.bytes, "hi\x00")
	}
}

func TestParserSectionEntryMarker(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section foo entry\nnop"))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	if !p.sectionIndex["foo"].isEntry {
		t.Errorf("section \"foo\" not marked entry")
	}
}

func TestParserInthandlerRecordsBinding(t *testing.T) {
	p := newParser()
	p.parse(lex(t, ".section text\n@h\nret\n.inthandler 7 h"))
	if len(p.errs) > 0 {
		t.Fatalf("unexpected errors: %v", p.errs)
	}
	if len(p.intBind) != 1 || p.intBind[0].code != 7 || p.intBind[0].label != "h" {
		t.Errorf("got %+v", p.intBind)
	}
}

package asm

import (
	"github.com/avm-project/avm/vm"
)

// layout performs pass 2 (§4.9): assign each section an absolute base
// offset, resolve every label to section-base + within-section offset,
// patch every fixup, and write the 8-byte entry header. Returns the
// assembled image plus the resolved `.inthandler` table, or the
// accumulated errors (undefined label, missing entry section) if any.
func (p *parser) layout() (vm.Image, map[vm.InterruptCode]int, error) {
	if len(p.errs) > 0 {
		return nil, nil, p.errs
	}

	entrySection := p.resolveEntrySectionName()
	if entrySection == "" {
		p.errorAt(Position{}, "missing entry section: no section named \"text\" and none marked entry")
		return nil, nil, p.errs
	}

	ordered := p.orderedSections(entrySection)
	base := make(map[string]int, len(ordered))
	total := 0
	for _, s := range ordered {
		base[s.name] = total
		total += len(s.bytes)
	}

	payload := make([]byte, total)
	for _, s := range ordered {
		copy(payload[base[s.name]:], s.bytes)
	}

	for _, fx := range p.fixups {
		lbl, ok := p.labels[fx.label]
		if !ok || !lbl.defined {
			p.errorf(fx.pos, "undefined label %q", fx.label)
			continue
		}
		abs := uint64(base[lbl.section] + lbl.offset)
		dst := payload[base[fx.section]+fx.offset : base[fx.section]+fx.offset+fx.width]
		putBytes(dst, fx.width, abs)
	}

	var entryOffset int
	if p.entryLabel != "" {
		lbl, ok := p.labels[p.entryLabel]
		if !ok || !lbl.defined {
			p.errorf(p.entryLblPos, "undefined entry label %q", p.entryLabel)
		} else {
			entryOffset = base[lbl.section] + lbl.offset
		}
	} else {
		entryOffset = base[entrySection]
	}

	handlers := make(map[vm.InterruptCode]int, len(p.intBind))
	for _, ib := range p.intBind {
		lbl, ok := p.labels[ib.label]
		if !ok || !lbl.defined {
			p.errorf(ib.pos, "undefined interrupt handler label %q", ib.label)
			continue
		}
		handlers[vm.InterruptCode(ib.code)] = base[lbl.section] + lbl.offset
	}

	if len(p.errs) > 0 {
		return nil, nil, p.errs
	}
	return vm.NewImage(entryOffset, payload), handlers, nil
}

// resolveEntrySectionName picks the entry section: the one named "text"
// or explicitly marked `entry` (both set section.isEntry at creation
// time, see getOrMakeSection and the ".section" directive handler).
func (p *parser) resolveEntrySectionName() string {
	for _, s := range p.sections {
		if s.isEntry {
			return s.name
		}
	}
	return ""
}

// orderedSections returns every section with entrySection first,
// followed by the rest in declaration order (§4.9 pass 2's "conventional
// order").
func (p *parser) orderedSections(entrySection string) []*section {
	ordered := make([]*section, 0, len(p.sections))
	for _, s := range p.sections {
		if s.name == entrySection {
			ordered = append(ordered, s)
		}
	}
	for _, s := range p.sections {
		if s.name != entrySection {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

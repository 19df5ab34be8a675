package asm

import (
	"os"
	"path/filepath"
	"strings"
)

// includer resolves `include "<path>"` directives and splices the
// included file's tokens in place, recursively, deduplicating by
// canonical path (§4.8, GLOSSARY "Compilation unit"). Include expansion
// runs before macro expansion: by the time macro.go sees a token stream,
// every file involved has already been flattened into it.
type includer struct {
	errCollector
	libPath string
	seen    map[string]bool
}

func newIncluder(libPath string) *includer {
	return &includer{libPath: libPath, seen: map[string]bool{}}
}

// load reads and lexes a single file's contents.
func (in *includer) load(path string) []Token {
	b, err := os.ReadFile(path)
	if err != nil {
		in.errorAt(Position{File: path}, "read include: "+err.Error())
		return nil
	}
	toks, err := tokenize(path, string(b))
	if err != nil {
		in.errorAt(Position{File: path}, err.Error())
		return nil
	}
	return toks
}

// resolve canonicalises path (first against dir, the directory of the
// file that referenced it, then against the configured library path per
// §4.8), tokenizes it if not already seen, and recursively splices any
// includes it contains.
func (in *includer) resolve(path, dir string, refPos Position) []Token {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(dir, path)
	}
	if _, err := os.Stat(candidate); err != nil {
		if in.libPath != "" {
			if alt := filepath.Join(in.libPath, path); fileExists(alt) {
				candidate = alt
			}
		}
	}
	canon, err := filepath.Abs(candidate)
	if err != nil {
		in.errorAt(refPos, "resolve include "+path+": "+err.Error())
		return nil
	}
	if in.seen[canon] {
		// Idempotent include (§8 invariant 6): already inlined once, a
		// second include of the same canonical file is a no-op.
		return nil
	}
	in.seen[canon] = true

	toks := in.load(canon)
	if toks == nil {
		return nil
	}
	return in.splice(toks, filepath.Dir(canon))
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// splice walks toks, resolving and inlining every include directive in
// place, recursively.
func (in *includer) splice(toks []Token, dir string) []Token {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != TokInclude {
			out = append(out, t)
			continue
		}
		if i+1 >= len(toks) || toks[i+1].Kind != TokString {
			in.errorAt(t.Pos, "include: expected a quoted path")
			continue
		}
		pathTok := toks[i+1]
		// TokString carries the lexer's appended trailing NUL (§4.7);
		// that convention is for data bytes, not file paths.
		p := strings.TrimSuffix(pathTok.Text, "\x00")
		out = append(out, in.resolve(p, dir, t.Pos)...)
		i++
		if in.abort() {
			break
		}
	}
	return out
}

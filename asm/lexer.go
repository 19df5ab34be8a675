package asm

import (
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/pkg/errors"
)

// isIdentRune groups letters, digits and underscore into one token
// regardless of position — mnemonics, label/macro names and numeric
// literals (including `0x`/`0b` prefixes) are all scanned as a single
// scanner.Ident and classified afterward, the same division of labour the
// teacher's asm/parser.go uses (scan as Ident, then strconv.ParseInt).
func isIdentRune(ch rune, _ int) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// scanQuoted reads runes up to (not including) the next unescaped
// occurrence of quote, honouring backslash-escapes so an escaped quote
// doesn't end the literal early. The returned string is the literal's raw
// source body; decodeChar/decodeString still need to run on it.
func scanQuoted(s *scanner.Scanner, quote rune) (string, error) {
	var b strings.Builder
	for {
		r := s.Next()
		switch {
		case r == scanner.EOF:
			return "", errors.New("unterminated literal")
		case r == quote:
			return b.String(), nil
		case r == '\n':
			return "", errors.New("newline inside literal")
		case r == '\\':
			b.WriteRune(r)
			r2 := s.Next()
			if r2 == scanner.EOF {
				return "", errors.New("unterminated literal")
			}
			b.WriteRune(r2)
		default:
			b.WriteRune(r)
		}
	}
}

// tokenize lexes one file's full contents into a flat token list (§4.7).
// It does not follow include directives or expand macros — both are
// handled over the resulting token stream by include.go / macro.go.
func tokenize(file string, src string) ([]Token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Filename = file
	s.Mode = scanner.ScanIdents
	s.IsIdentRune = isIdentRune

	var lexErr error
	s.Error = func(sc *scanner.Scanner, msg string) {
		lexErr = errors.Errorf("%s: %s", sc.Position, msg)
	}

	pos := func() Position {
		return Position{File: file, Line: s.Position.Line, Column: s.Position.Column}
	}

	var toks []Token
	for lexErr == nil {
		r := s.Scan()
		if r == scanner.EOF {
			break
		}
		p := pos()
		switch r {
		case ';':
			for {
				n := s.Peek()
				if n == '\n' || n == scanner.EOF {
					break
				}
				s.Next()
			}
		case ',':
			toks = append(toks, Token{Kind: TokComma, Pos: p})
		case '\'':
			raw, err := scanQuoted(&s, '\'')
			if err != nil {
				return nil, errors.Wrapf(err, "%s", p)
			}
			v, err := decodeChar("'" + raw + "'")
			if err != nil {
				return nil, errors.Wrapf(err, "%s", p)
			}
			toks = append(toks, Token{Kind: TokChar, Int: v, Pos: p})
		case '"':
			raw, err := scanQuoted(&s, '"')
			if err != nil {
				return nil, errors.Wrapf(err, "%s", p)
			}
			decoded, err := decodeString("\"" + raw + "\"")
			if err != nil {
				return nil, errors.Wrapf(err, "%s", p)
			}
			toks = append(toks, Token{Kind: TokString, Text: decoded, Pos: p})
		case '@', '%', '!', '.':
			name := scanSigilName(&s)
			if name == "" {
				return nil, errors.Errorf("%s: empty name after %q", p, r)
			}
			switch r {
			case '@':
				toks = append(toks, Token{Kind: TokLabelDef, Text: name, Pos: p})
			case '%':
				if name == "endmacro" {
					toks = append(toks, Token{Kind: TokMacroEnd, Pos: p})
				} else {
					toks = append(toks, Token{Kind: TokMacroDef, Text: name, Pos: p})
				}
			case '!':
				toks = append(toks, Token{Kind: TokMacroInvoke, Text: name, Pos: p})
			case '.':
				toks = append(toks, Token{Kind: TokDirective, Text: name, Pos: p})
			}
		case scanner.Ident:
			text := s.TokenText()
			if v, err := strconv.ParseUint(text, 0, 64); err == nil {
				toks = append(toks, Token{Kind: TokInt, Int: v, Pos: p})
			} else if text == "include" {
				toks = append(toks, Token{Kind: TokInclude, Pos: p})
			} else {
				toks = append(toks, Token{Kind: TokIdent, Text: text, Pos: p})
			}
		default:
			return nil, errors.Errorf("%s: unexpected character %q", p, r)
		}
	}
	if lexErr != nil {
		return nil, lexErr
	}
	return toks, nil
}

// scanSigilName scans the identifier immediately following a sigil rune
// (@, %, !, .) already consumed by the caller.
func scanSigilName(s *scanner.Scanner) string {
	if s.Scan() != scanner.Ident {
		return ""
	}
	return s.TokenText()
}

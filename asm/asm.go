package asm

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/avm-project/avm/vm"
)

// defaultMaxMacroDepth bounds macro-invoking-macro recursion (§4.8).
const defaultMaxMacroDepth = 64

// config holds everything an Option can set, in the teacher's
// functional-options style (vm.Option, generalized here to assembly
// configuration: SPEC_FULL §E).
type config struct {
	libPath       string
	maxMacroDepth int
	log           *logrus.Logger
}

// Option configures an Assemble call.
type Option func(*config) error

// LibraryPath sets the directory searched for an `include` path that
// isn't found relative to the including file (§4.8).
func LibraryPath(dir string) Option {
	return func(c *config) error { c.libPath = dir; return nil }
}

// MaxMacroDepth overrides the macro-invocation recursion cap (§4.8).
func MaxMacroDepth(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.New("macro recursion depth must be positive")
		}
		c.maxMacroDepth = n
		return nil
	}
}

// Logger overrides the logrus.Logger used for pass diagnostics. Silent
// (Warn level) by default, matching vm.Logger's default (SPEC_FULL §E).
func Logger(l *logrus.Logger) Option {
	return func(c *config) error { c.log = l; return nil }
}

// Result is everything Assemble produces beyond the raw image: the
// `.inthandler`-requested program handler table, ready to feed straight
// into vm.ProgramHandler.
type Result struct {
	Image    vm.Image
	Handlers map[vm.InterruptCode]int
}

// Assemble reads path and the transitive closure of its includes,
// expands macros, and runs the two-pass layout/resolution of §4.9. Errors
// found in the source are returned as ErrAsm; a rejected option or a source
// path that cannot be made absolute is returned as a wrapped error instead.
func Assemble(path string, opts ...Option) (*Result, error) {
	cfg := &config{maxMacroDepth: defaultMaxMacroDepth}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.Wrap(err, "apply assembler option")
		}
	}
	if cfg.log == nil {
		cfg.log = vm.NewLogger(os.Stderr, logrus.WarnLevel)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve source path %q", path)
	}

	inc := newIncluder(cfg.libPath)
	toks := inc.resolve(abs, filepath.Dir(abs), Position{File: abs})
	if len(inc.errs) > 0 {
		return nil, inc.errs
	}
	cfg.log.WithFields(logrus.Fields{"file": abs, "tokens": len(toks)}).Debug("include resolution complete")

	pp := newPreprocessor(cfg.maxMacroDepth)
	expanded := pp.expand(toks)
	if len(pp.errs) > 0 {
		return nil, pp.errs
	}
	cfg.log.WithField("tokens", len(expanded)).Debug("macro expansion complete")

	p := newParser()
	p.parse(expanded)
	if len(p.errs) > 0 {
		return nil, p.errs
	}

	img, handlers, err := p.layout()
	if err != nil {
		return nil, err
	}
	cfg.log.WithFields(logrus.Fields{"bytes": len(img), "sections": len(p.sections)}).Debug("section layout complete")
	return &Result{Image: img, Handlers: handlers}, nil
}

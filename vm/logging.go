package vm

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a text-formatted logrus.Logger at level, written to w.
// New uses it (warn level, stderr) when no Logger option is supplied. Both CLIs
// (cmd/avm, cmd/avmas) construct their own via internal/clilog instead, so
// verbosity flags reach this same shape of logger.
func NewLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    false,
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return l
}

// instructionLogger returns a field-scoped entry for per-instruction trace
// logging, cheap to call even when trace level is disabled since logrus
// only formats fields for enabled levels.
func (i *Instance) instructionLogger(op Opcode) *logrus.Entry {
	return i.log.WithFields(logrus.Fields{
		"pc": i.PC,
		"op": op.String(),
	})
}

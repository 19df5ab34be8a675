// Command avmas assembles a source file (and its transitive includes)
// into an image, writing the result next to the source unless -o names
// another path.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/avm-project/avm/asm"
	"github.com/avm-project/avm/internal/clilog"
)

func main() {
	var verbosity clilog.Count
	flag.Var(&verbosity, "v", "increase log verbosity (repeatable)")
	debug := flag.Bool("debug", false, "enable trace-level diagnostics")
	libPath := flag.String("I", "", "library `path` searched for includes not found relative to the including file")
	outFileName := flag.String("o", "", "output `filename` (default: source name with its extension replaced by .img)")
	maxDepth := flag.Int("maxmacrodepth", 0, "macro recursion depth cap (0: assembler default)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: avmas [flags] <source.asm>")
		os.Exit(2)
	}
	src := flag.Arg(0)

	log := clilog.New(int(verbosity), *debug)

	opts := []asm.Option{asm.Logger(log)}
	if *libPath != "" {
		opts = append(opts, asm.LibraryPath(*libPath))
	}
	if *maxDepth > 0 {
		opts = append(opts, asm.MaxMacroDepth(*maxDepth))
	}

	res, err := asm.Assemble(src, opts...)
	if err != nil {
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}

	out := *outFileName
	if out == "" {
		out = defaultOutputName(src)
	}
	if err := res.Image.Save(out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func defaultOutputName(src string) string {
	if ext := lastExt(src); ext != "" {
		return strings.TrimSuffix(src, ext) + ".img"
	}
	return src + ".img"
}

func lastExt(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

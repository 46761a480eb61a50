package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/soldlinker/sold/pkg/linker"
	"github.com/soldlinker/sold/pkg/utils"
	"github.com/spf13/pflag"
)

var version = "devel"

func main() {
	ctx := linker.NewContext()
	inputs := parseArgs(ctx, os.Args[1:])

	if err := linker.Link(ctx, inputs); err != nil {
		fmt.Fprintf(os.Stderr, "sold: %s\n", err)
		os.Exit(1)
	}

	if ctx.Arg.PrintMap {
		linker.PrintSymbolMap(ctx, os.Stdout)
	}
}

// parseArgs splits the command line into pflag-handled options and the
// ordered input sequence. Inputs keep their relative order: which archive
// member satisfies a reference depends on it, the same way -lfoo before
// main.o and after it are different links.
func parseArgs(ctx *linker.Context, args []string) []linker.InputSpec {
	flags := pflag.NewFlagSet("sold", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file...\n\n", os.Args[0])
		flags.PrintDefaults()
	}

	flags.StringVarP(&ctx.Arg.Output, "output", "o", "a.out", "output file")
	flags.StringArrayVarP(&ctx.Arg.LibraryPaths, "library-path", "L", nil,
		"add a directory to the library search path")
	flags.BoolVar(&ctx.Arg.Shared, "shared", false, "produce a shared object")
	flags.BoolVar(&ctx.Arg.Pie, "pie", false, "produce a position independent executable")
	flags.BoolVar(&ctx.Arg.ExportDynamic, "export-dynamic", false,
		"put all global symbols in the dynamic symbol table")
	flags.BoolVar(&ctx.Arg.AllowMultipleDefinition, "allow-multiple-definition", false,
		"demote duplicate symbol errors to warnings")
	flags.BoolVar(&ctx.Arg.FatalWarnings, "fatal-warnings", false,
		"treat warnings as errors")
	flags.StringArrayVarP(&ctx.Arg.TraceSymbols, "trace-symbol", "y", nil,
		"log every resolution step of the named symbol")
	flags.BoolVarP(&ctx.Arg.PrintMap, "print-map", "M", false,
		"print the resolved symbol map to stdout")
	verbose := flags.Bool("verbose", false, "enable debug logging")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")

	inputs, rest := splitInputs(args)
	utils.MustNo(flags.Parse(rest))

	if *showVersion {
		fmt.Printf("sold %s\n", version)
		os.Exit(0)
	}
	if *verbose {
		ctx.Diags.Logger.SetLevel(logrus.DebugLevel)
	}

	for i, path := range ctx.Arg.LibraryPaths {
		ctx.Arg.LibraryPaths[i] = filepath.Clean(path)
	}

	if len(inputs) == 0 {
		flags.Usage()
		os.Exit(1)
	}
	return inputs
}

// Options that consume the following argument when not written as
// --opt=value, so the prescan below does not mistake the value for an
// input file.
var valueOpts = map[string]bool{
	"-o": true, "--output": true,
	"-L": true, "--library-path": true,
	"-y": true, "--trace-symbol": true,
}

// splitInputs walks argv once, peeling off the position-sensitive input
// tokens (files, -l, --start-lib/--end-lib) and leaving everything else
// for pflag.
func splitInputs(args []string) ([]linker.InputSpec, []string) {
	var inputs []linker.InputSpec
	var rest []string
	lazy := false

	for len(args) > 0 {
		arg := args[0]
		args = args[1:]

		switch {
		case arg == "--start-lib":
			lazy = true
		case arg == "--end-lib":
			lazy = false
		case strings.HasPrefix(arg, "-l") && len(arg) > 2:
			inputs = append(inputs, linker.InputSpec{Path: arg[2:], Lib: true, Lazy: lazy})
		case arg == "-l":
			if len(args) == 0 {
				utils.Fatal("option -l: argument missing")
			}
			inputs = append(inputs, linker.InputSpec{Path: args[0], Lib: true, Lazy: lazy})
			args = args[1:]
		case !strings.HasPrefix(arg, "-"):
			inputs = append(inputs, linker.InputSpec{Path: arg, Lazy: lazy})
		default:
			rest = append(rest, arg)
			if valueOpts[arg] && len(args) > 0 {
				rest = append(rest, args[0])
				args = args[1:]
			}
		}
	}
	return inputs, rest
}

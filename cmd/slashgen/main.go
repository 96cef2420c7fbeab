package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Version will be set at build time via -ldflags
var Version = "v0.0.1-alpha"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newEnv(), os.Args[1:])
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 {
		printUsage(e.stdout)
		return 0
	}

	var err error
	switch args[0] {
	case "--version", "version":
		fmt.Fprintf(e.stdout, "slashgen %s\n", Version)
		return 0
	case "--help", "-h", "help":
		printUsage(e.stdout)
		return 0
	case "generate":
		err = runGenerate(ctx, e, args[1:])
	case "infer":
		err = runInfer(e, args[1:])
	default:
		// Flags without a subcommand mean generate.
		if strings.HasPrefix(args[0], "-") {
			err = runGenerate(ctx, e, args)
			break
		}
		fmt.Fprintf(e.stderr, "Error: unknown command: %s\n", args[0])
		printUsage(e.stderr)
		return 2
	}

	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "slashgen - generate DotSlash files for a GitHub release")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  slashgen --version                     Show version information")
	fmt.Fprintln(w, "  slashgen generate --tag TAG --config PATH [options]")
	fmt.Fprintln(w, "                                         Generate DotSlash files")
	fmt.Fprintln(w, "  slashgen infer [--probe] NAME...       Show the format inferred for artifacts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'slashgen generate --help' for the generate options.")
}

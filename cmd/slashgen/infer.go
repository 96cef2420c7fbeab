package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// runInfer handles `slashgen infer`. It prints the format DotSlash would be
// told for each artifact name, and with --probe also the format found by
// reading the file.
func runInfer(e *env, args []string) error {
	fs := pflag.NewFlagSet("infer", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	probe := fs.Bool("probe", false, "treat arguments as local files and sniff their contents")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("infer requires at least one artifact name")
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	var errs []error
	for _, name := range fs.Args() {
		inferred, _ := dotslash.InferFormat(name)
		if !*probe {
			fmt.Fprintf(tw, "%s\t%s\n", name, inferred)
			continue
		}

		probed, err := probeFile(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mark := ""
		if probed != inferred {
			mark = "mismatch"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, inferred, probed, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func probeFile(path string) (dotslash.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return dotslash.FormatNone, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	format, err := dotslash.ProbeFormat(f)
	if err != nil {
		return dotslash.FormatNone, fmt.Errorf("probe %s: %w", path, err)
	}
	return format, nil
}

package cli

import (
	"errors"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/internal/matio"
)

var errInputRequired = errors.New("input file is required")

func cmdImport(out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("import", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat import <descriptor> <file> [options]\n\n")
		fprintf(w, "Load delimited data from <file> into the matrix. Use '-' for stdin.\n\n")
		fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	sep := flagSet.String("sep", ",", "Field separator")
	naToken := flagSet.String("na", "NA", "Missing-value token")
	header := flagSet.Bool("header", false, "First row holds column names")
	rowNames := flagSet.Bool("row-names", false, "First field holds the row name")

	if hasHelpFlag(args) {
		flagSet.SetOutput(out)
		flagSet.Usage()

		return nil
	}

	if err := flagSet.Parse(args); err != nil {
		fprintf(errOut, "error: %v\n\n", err)
		flagSet.Usage()

		return errHandled
	}

	if flagSet.NArg() < 1 {
		return errDescriptorRequired
	}

	if flagSet.NArg() < 2 {
		return errInputRequired
	}

	opts, err := delimOptions(*sep, *naToken, *header, *rowNames)
	if err != nil {
		return err
	}

	input := os.Stdin
	if name := flagSet.Arg(1); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		input = f
	}

	m, _, err := attach(cfg, flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = m.Destroy() }()

	if err := matio.ReadDelim(input, m, opts); err != nil {
		return err
	}

	return flushAndSaveNames(flagSet.Arg(0), m)
}

func delimOptions(sep, naToken string, header, rowNames bool) (matio.DelimOptions, error) {
	runes := []rune(sep)
	if len(runes) != 1 {
		return matio.DelimOptions{}, errors.New("--sep must be a single character")
	}

	return matio.DelimOptions{
		Comma:    runes[0],
		NAString: naToken,
		Header:   header,
		RowNames: rowNames,
	}, nil
}

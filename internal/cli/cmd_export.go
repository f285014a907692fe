package cli

import (
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/internal/matio"
)

func cmdExport(out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat export <descriptor> [options]\n\n")
		fprintf(w, "Write the matrix as delimited text to stdout or a file.\n\n")
		fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	sep := flagSet.String("sep", ",", "Field separator")
	naToken := flagSet.String("na", "NA", "Missing-value token")
	header := flagSet.Bool("header", false, "Write column names as the first row")
	rowNames := flagSet.Bool("row-names", false, "Write the row name as the first field")
	output := flagSet.StringP("output", "o", "", "Output file (default: stdout)")

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

	if flagSet.NArg() == 0 {
		return errDescriptorRequired
	}

	opts, err := delimOptions(*sep, *naToken, *header, *rowNames)
	if err != nil {
		return err
	}

	dst := out
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		dst = f
	}

	m, _, err := attach(cfg, flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = m.Destroy() }()

	return matio.WriteDelim(dst, m, opts)
}

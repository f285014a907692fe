package cli

import (
	"errors"
	"io"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/internal/matio"
	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

func cmdStats(out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("stats", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat stats <descriptor> [options]\n\n")
		fprintf(w, "Print min/max/mean/sum per column, skipping missing values.\n\n")
		fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	col := flagSet.Int("col", -1, "Restrict to one column index")

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

	m, d, err := attach(cfg, flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = m.Destroy() }()

	first, last := 0, m.Cols()-1
	if *col >= 0 {
		first, last = *col, *col
	}

	fprintf(out, "%-12s %12s %12s %12s %12s\n", "column", "min", "max", "mean", "sum")

	for c := first; c <= last; c++ {
		name := strconv.Itoa(c)
		if c < len(d.ColNames) {
			name = d.ColNames[c]
		}

		if err := printColStats(out, m, c, name); err != nil {
			return err
		}
	}

	return nil
}

func printColStats(out io.Writer, m bigmat.Matrix, col int, name string) error {
	summaries := []struct {
		fn func(bigmat.Matrix, int) (float64, error)
	}{
		{matio.ColMin},
		{matio.ColMax},
		{matio.ColMean},
		{matio.ColSum},
	}

	cells := make([]string, len(summaries))

	for i, s := range summaries {
		v, err := s.fn(m, col)

		switch {
		case errors.Is(err, matio.ErrAllNA):
			cells[i] = "NA"
		case err != nil:
			return err
		default:
			cells[i] = strconv.FormatFloat(v, 'g', 6, 64)
		}
	}

	fprintf(out, "%-12s %12s %12s %12s %12s\n", name, cells[0], cells[1], cells[2], cells[3])

	return nil
}

package cli

import (
	"errors"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

var errDescriptorRequired = errors.New("descriptor path is required")

func cmdInfo(out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("info", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat info <descriptor>\n\n")
		fprintf(w, "Print the shape and layout recorded in a descriptor file.\n")
	}

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

	d, err := readDescriptor(cfg, flagSet.Arg(0))
	if err != nil {
		return err
	}

	layout := "contiguous"
	if d.Separated {
		layout = "separated"
	}

	fprintf(out, "id:        %s\n", d.ID)
	fprintf(out, "kind:      %s\n", d.Kind)
	fprintf(out, "shape:     %d x %d\n", d.Rows, d.Cols)
	fprintf(out, "type:      %s\n", d.Type)
	fprintf(out, "layout:    %s\n", layout)

	if d.ExtraBytes > 0 {
		fprintf(out, "extra:     %d bytes\n", d.ExtraBytes)
	}

	if d.Kind == "file" {
		fprintf(out, "file:      %s\n", d.FileName)
		fprintf(out, "path:      %s\n", d.FilePath)
		fprintf(out, "preserve:  %v\n", d.Preserve)
	}

	if len(d.ColNames) > 0 {
		fprintf(out, "columns:   %s\n", strings.Join(d.ColNames, ", "))
	}

	return nil
}

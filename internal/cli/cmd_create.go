package cli

import (
	"errors"
	"io"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/internal/fs"
	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

var (
	errNameRequired = errors.New("matrix name is required")
	errShapeFlags   = errors.New("--rows and --cols must be positive")
)

func cmdCreate(out, errOut io.Writer, cfg Config, workDir string, args []string) error {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat create <name> [options]\n\n")
		fprintf(w, "Create a file-backed matrix named <name> and write its descriptor.\n")
		fprintf(w, "The backing files persist until 'bigmat rm'.\n\n")
		fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	rows := flagSet.IntP("rows", "r", 0, "Row count")
	cols := flagSet.IntP("cols", "c", 0, "Column count")
	typeName := flagSet.StringP("type", "t", "double", "Element type: char|short|int|double")
	separated := flagSet.Bool("separated", false, "One backing file per column")
	extraBytes := flagSet.Int("extra-bytes", 0, "Padding bytes per allocation unit")
	fill := flagSet.Float64("fill", 0, "Initial value for every element")
	path := flagSet.String("path", "", "Directory for backing files (default: data dir)")
	descPath := flagSet.StringP("descriptor", "o", "", "Descriptor output path (default: <name>.desc)")
	colNames := flagSet.StringSlice("col-names", nil, "Column names")

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

	if flagSet.NArg() == 0 || flagSet.Arg(0) == "" {
		return errNameRequired
	}

	name := flagSet.Arg(0)

	if *rows <= 0 || *cols <= 0 {
		return errShapeFlags
	}

	etype, err := bigmat.ParseElementType(*typeName)
	if err != nil {
		return err
	}

	filePath := *path
	if filePath == "" {
		filePath = cfg.DataDir
	}

	if filePath == "" {
		filePath = workDir
	}

	opts := bigmat.FileOptions{
		Rows:       *rows,
		Cols:       *cols,
		Type:       etype,
		Separated:  *separated,
		ExtraBytes: *extraBytes,
		ColNames:   *colNames,
		FileName:   name,
		FilePath:   filePath,
		Preserve:   true,
		Dir:        cfg.IPCDir,
	}

	if flagSet.Changed("fill") {
		opts.Fill = fill
	}

	m, err := bigmat.CreateFileBacked(opts)
	if err != nil {
		return err
	}

	target := *descPath
	if target == "" {
		target = filepath.Join(workDir, name+".desc")
	}

	if err := bigmat.SaveDescriptor(fs.NewReal(), target, m.Describe()); err != nil {
		_ = m.Destroy()

		return err
	}

	if err := m.Destroy(); err != nil {
		return err
	}

	fprintln(out, target)

	return nil
}

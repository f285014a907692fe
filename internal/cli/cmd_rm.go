package cli

import (
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/internal/ipc"
	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

func cmdRm(out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("rm", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat rm <descriptor>\n\n")
		fprintf(w, "Delete the matrix: backing files, IPC state, and the descriptor.\n")
		fprintf(w, "If other processes are still attached, only this attachment is\n")
		fprintf(w, "released and the descriptor is kept.\n")
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

	descPath := flagSet.Arg(0)

	d, err := readDescriptor(cfg, descPath)
	if err != nil {
		return err
	}

	// Attach without preserve so being the last handle deletes the
	// backing files.
	d.Preserve = false

	m, err := bigmat.Attach(d)
	if err != nil {
		return err
	}

	if err := m.Destroy(); err != nil {
		return err
	}

	if stillAttached(d) {
		fprintln(out, "detached; other handles still attached")

		return nil
	}

	return os.Remove(descPath)
}

// stillAttached reports whether other handles kept the matrix alive past
// our destroy: the backing storage only survives a last-handle destroy
// when preserve is set, and rm attaches without preserve.
func stillAttached(d bigmat.Descriptor) bool {
	_, err := os.Stat(backingPath(d))

	return err == nil
}

// backingPath locates one piece of the matrix's backing storage: the
// first column file for file-backed matrices, the first shared-memory
// segment otherwise.
func backingPath(d bigmat.Descriptor) string {
	if d.Kind == bigmat.KindShared {
		dir := d.Dir
		if dir == "" {
			dir = ipc.DefaultDir()
		}

		name := d.ID
		if d.Separated {
			name += "_column_0"
		}

		return filepath.Join(dir, name)
	}

	name := d.FileName
	if d.Separated {
		name += "_column_0"
	}

	return filepath.Join(d.FilePath, name)
}

package cli

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

var shellCommands = []string{"get", "set", "fill", "info", "flush", "help", "exit", "quit"}

func cmdShell(in io.Reader, out, errOut io.Writer, cfg Config, args []string) error {
	flagSet := flag.NewFlagSet("shell", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fprintf(w, "Usage: bigmat shell <descriptor>\n\n")
		fprintf(w, "Interactive session on an attached matrix.\n\n")
		fprintf(w, "Commands:\n")
		fprintf(w, "  get <row> <col>          Read one element\n")
		fprintf(w, "  set <row> <col> <value>  Write one element ('NA' stores missing)\n")
		fprintf(w, "  fill <value>             Set every element\n")
		fprintf(w, "  info                     Show shape and type\n")
		fprintf(w, "  flush                    Sync dirty pages to the backing files\n")
		fprintf(w, "  exit / quit              Detach and leave\n")
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

	m, d, err := attach(cfg, flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = m.Destroy() }()

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var matches []string

		for _, cmd := range shellCommands {
			if strings.HasPrefix(cmd, prefix) {
				matches = append(matches, cmd)
			}
		}

		return matches
	})

	if f, err := os.Open(historyPath()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	fprintf(out, "bigmat shell - %s %dx%d (%s)\n", d.ID, m.Rows(), m.Cols(), m.ElemType())
	fprintln(out, "Type 'help' for available commands.")

	for {
		input, err := line.Prompt("bigmat> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		if done := runShellCommand(out, errOut, m, flagSet.Usage, fields); done {
			break
		}
	}

	if f, err := os.Create(historyPath()); err == nil {
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}

	return nil
}

// runShellCommand executes one shell line. Returns true when the session
// should end.
func runShellCommand(out, errOut io.Writer, m bigmat.Matrix, usage func(), fields []string) bool {
	switch strings.ToLower(fields[0]) {
	case "exit", "quit", "q":
		return true
	case "help":
		usage()
	case "info":
		layout := "contiguous"
		if m.Separated() {
			layout = "separated"
		}

		fprintf(out, "%d x %d %s (%s)\n", m.Rows(), m.Cols(), m.ElemType(), layout)
	case "get":
		row, col, ok := parseIndices(errOut, m, fields[1:])
		if !ok {
			return false
		}

		fprintln(out, formatValue(m.Get(row, col)))
	case "set":
		if len(fields) != 4 {
			fprintln(errOut, "usage: set <row> <col> <value>")

			return false
		}

		row, col, ok := parseIndices(errOut, m, fields[1:3])
		if !ok {
			return false
		}

		v, err := parseValue(fields[3])
		if err != nil {
			fprintln(errOut, "error:", err)

			return false
		}

		m.Set(row, col, v)
	case "fill":
		if len(fields) != 2 {
			fprintln(errOut, "usage: fill <value>")

			return false
		}

		v, err := parseValue(fields[1])
		if err != nil {
			fprintln(errOut, "error:", err)

			return false
		}

		for col := 0; col < m.Cols(); col++ {
			for row := 0; row < m.Rows(); row++ {
				m.Set(row, col, v)
			}
		}
	case "flush":
		if fb, ok := m.(*bigmat.FileBacked); ok {
			if err := fb.Flush(); err != nil {
				fprintln(errOut, "error:", err)
			}
		}
	default:
		fprintln(errOut, "unknown command:", fields[0])
	}

	return false
}

func parseIndices(errOut io.Writer, m bigmat.Matrix, fields []string) (row, col int, ok bool) {
	if len(fields) != 2 {
		fprintln(errOut, "usage: <row> <col>")

		return 0, 0, false
	}

	row, err := strconv.Atoi(fields[0])
	if err != nil || row < 0 || row >= m.Rows() {
		fprintln(errOut, "bad row index:", fields[0])

		return 0, 0, false
	}

	col, err = strconv.Atoi(fields[1])
	if err != nil || col < 0 || col >= m.Cols() {
		fprintln(errOut, "bad column index:", fields[1])

		return 0, 0, false
	}

	return row, col, true
}

func parseValue(s string) (float64, error) {
	if strings.EqualFold(s, "NA") {
		return math.NaN(), nil
	}

	return strconv.ParseFloat(s, 64)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

func historyPath() string {
	return filepath.Join(os.TempDir(), ".bigmat_history")
}

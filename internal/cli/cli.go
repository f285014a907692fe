// Package cli implements the bigmat command line tool: creating
// file-backed matrices, moving delimited data in and out of them, and
// inspecting them interactively.
//
// The CLI works on descriptor files. Every matrix it creates is
// file-backed with the preserve flag set, so data survives between
// invocations; "rm" attaches without preserve to delete the backing
// files for good.
package cli

import (
	"fmt"
	"io"
	"os"
)

const helpFlag = "--help"

// Run is the main entry point. Returns the process exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) < 2 {
		printUsage(out)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return 1
		}
	}

	overrides := Config{IPCDir: flags.ipcDir, DataDir: flags.dataDir}

	cfg, err := LoadConfig(workDir, overrides, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if len(flags.remaining) == 0 {
		printUsage(out)

		return 0
	}

	cmd := flags.remaining[0]
	rest := flags.remaining[1:]

	if cmd == "-h" || cmd == helpFlag || cmd == "help" {
		printUsage(out)

		return 0
	}

	var cmdErr error

	switch cmd {
	case "create":
		cmdErr = cmdCreate(out, errOut, cfg, workDir, rest)
	case "info":
		cmdErr = cmdInfo(out, errOut, cfg, rest)
	case "import":
		cmdErr = cmdImport(out, errOut, cfg, rest)
	case "export":
		cmdErr = cmdExport(out, errOut, cfg, rest)
	case "stats":
		cmdErr = cmdStats(out, errOut, cfg, rest)
	case "rm":
		cmdErr = cmdRm(out, errOut, cfg, rest)
	case "shell":
		cmdErr = cmdShell(in, out, errOut, cfg, rest)
	default:
		fprintln(errOut, "error: unknown command:", cmd)
		printUsage(errOut)

		return 1
	}

	if cmdErr != nil {
		if cmdErr == errHandled {
			return 1
		}

		fprintln(errOut, "error:", cmdErr)

		return 1
	}

	return 0
}

// errHandled signals that the command already printed its error.
var errHandled = fmt.Errorf("handled")

type globalFlags struct {
	workDir   string
	ipcDir    string
	dataDir   string
	remaining []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		arg := args[idx]

		takesValue := func(name string) (string, error) {
			if idx+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}

			idx += 2

			return args[idx-1], nil
		}

		var err error

		switch arg {
		case "-C", "--cwd":
			flags.workDir, err = takesValue(arg)
		case "--ipc-dir":
			flags.ipcDir, err = takesValue(arg)
		case "--data-dir":
			flags.dataDir, err = takesValue(arg)
		default:
			// Not a global flag: the command starts here.
			flags.remaining = args[idx:]

			return flags, nil
		}

		if err != nil {
			return globalFlags{}, err
		}
	}

	return flags, nil
}

func printUsage(w io.Writer) {
	fprintln(w, `bigmat - typed huge-matrix storage

Usage: bigmat [options] <command> [args]

Options:
  -C, --cwd <dir>      Run as if started in <dir>
  --ipc-dir <dir>      Namespace directory for mutexes and counters
  --data-dir <dir>     Default directory for backing files

Commands:
  create <name>        Create a file-backed matrix, write its descriptor
  info <descriptor>    Print shape and layout
  import <descriptor> <file>   Load delimited data into a matrix
  export <descriptor>  Write matrix contents as delimited text
  stats <descriptor>   Per-column min/max/mean/sum
  rm <descriptor>      Delete the matrix and its backing files
  shell <descriptor>   Interactive get/set session
  help                 Show this help

Run 'bigmat <command> --help' for command details.`)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == helpFlag {
			return true
		}
	}

	return false
}

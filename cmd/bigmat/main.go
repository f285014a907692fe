// Package main provides bigmat, a typed huge-matrix storage tool with
// shared-memory and file-backed matrices.
package main

import (
	"os"
	"strings"

	"github.com/calvinalkan/bigmat/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env))
}

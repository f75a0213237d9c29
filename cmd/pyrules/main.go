// Command pyrules analyzes the py_runtime targets of a Bazel workspace.
package main

import (
	"os"

	"github.com/albertocavalcante/rules-python-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

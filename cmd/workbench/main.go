// Command workbench runs and administers the workbench backend.
package main

import (
	"fmt"
	"os"

	"workbench-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

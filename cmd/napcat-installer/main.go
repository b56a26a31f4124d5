package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/napneko/napcat-installer/cmd/napcat-installer/cmd"
	"github.com/napneko/napcat-installer/internal/core"
	"github.com/napneko/napcat-installer/internal/tui"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.RenderError(err))

		var cmdErr *core.CommandError
		if errors.As(err, &cmdErr) {
			fmt.Fprintf(os.Stderr, "  command: %s\n", strings.Join(cmdErr.Argv, " "))
			if out := strings.TrimSpace(cmdErr.Stderr); out != "" {
				fmt.Fprintf(os.Stderr, "  stderr: %s\n", out)
			}
			if cmdErr.ExitCode > 0 {
				os.Exit(cmdErr.ExitCode)
			}
		}
		os.Exit(1)
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/maastricht-university/session-insights/orchestrator"
)

// Exit codes for different failure modes
const (
	ExitError      = 1 // analysis, configuration or runtime error
	ExitProcessing = 3 // report requested while the job is still running
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, orchestrator.ErrStillProcessing) {
			os.Exit(ExitProcessing)
		}
		os.Exit(ExitError)
	}
}

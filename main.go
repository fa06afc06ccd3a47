// drivecheck writes a test file to a volume, reads it back, verifies its
// BLAKE2b digest, and reports sequential throughput and random 4 KiB read
// latency together with whatever health data the platform exposes.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"drivecheck/driveerr"
)

// Process exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitMismatch    = 3
	exitInterrupted = 130
)

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, driveerr.ErrInterrupted):
		return exitInterrupted
	case errors.Is(err, driveerr.ErrDigestMismatch):
		return exitMismatch
	case errors.Is(err, driveerr.ErrInvalidConfig):
		return exitUsage
	default:
		return exitError
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "drivecheck",
		Short:         "Drive verification and micro-benchmark",
		Long:          "Write a test file, read it back, verify its BLAKE2b digest and measure sequential throughput and random read latency",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging (LOG_LEVEL overrides)")

	root.AddCommand(newRunCmd(&verbose, false))
	root.AddCommand(newRunCmd(&verbose, true))
	root.AddCommand(newHealthCmd(&verbose))
	root.AddCommand(newDeviceCmd())
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errInvalidContent makes `scan` exit with status 2 when a chain rejects
// the content.
var errInvalidContent = errors.New("content rejected by scanners")

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errInvalidContent) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPaths []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "llmguard",
		Short:         "Scan LLM prompts and outputs for sensitive or unsafe content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&opts.configPaths, "config", "c", nil, "YAML config file(s), applied in order")

	root.AddCommand(newServeCmd(opts), newScanCmd(opts))
	return root
}

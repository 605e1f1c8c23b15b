package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/retail-ai-inc/savegame/pkg/logger"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Capture system interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Log.Info("Received interrupt signal, exiting...")
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root := &cobra.Command{
		Use:           "savegame",
		Short:         "Save game service",
		Long:          "savegame serves the loadSave and saveSave functions backed by a document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetArgs(args)
	flags := newFlagConfigFromFlags(root.PersistentFlags())
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), flags)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the save functions over HTTP",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the store's unique owner index or table and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), Version)
			},
		},
	)

	return root.ExecuteContext(ctx)
}

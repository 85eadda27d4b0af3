package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"popsim/cmd/popsim/commands"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "popsim",
	Short:        "Population opinion simulator",
	Long:         `Command line interface for running simulations and polls against synthetic population panels.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(commands.SimulateCmd)
	rootCmd.AddCommand(commands.PollCmd)
	rootCmd.AddCommand(commands.AgentsCmd)
	rootCmd.AddCommand(commands.ClustersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dFlux/cmd/inspect"
	"github.com/ValentinKolb/dFlux/cmd/perf"
	"github.com/ValentinKolb/dFlux/cmd/run"
	"github.com/ValentinKolb/dFlux/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dflux",
		Short: "single-writer state container",
		Long: fmt.Sprintf(`dFlux (v%s)

A single-writer application state container written in Go. State lives in
persistent immutable collections, changes only through dispatched actions,
and derived values are memoized getters that observers subscribe to.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dFlux",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dFlux v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(run.RunCmd)
	RootCmd.AddCommand(inspect.InspectCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use for snapshots (json, gob, yaml)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

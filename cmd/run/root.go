package run

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/dFlux/cmd/util"
	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/ValentinKolb/dFlux/lib/reactor/sink"
	"github.com/ValentinKolb/dFlux/lib/snapshot"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("cli")

	// RunCmd replays scenario files
	RunCmd = &cobra.Command{
		Use:   "run [scenario.yaml...]",
		Short: "Replay scenario files against a reactor",
		Long: `Replay scenario files against a reactor. A scenario defines document stores, named getters,
observed key paths and a list of steps (dispatch, batch, evaluate, reset). Every observed change
and every evaluation is printed to stdout. Flags can also be set via environment variables in the
format DFLUX_<flag> (e.g. DFLUX_CACHE_LIMIT=500).`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "debug"
	RunCmd.Flags().Bool(key, false, util.WrapString("Enable the debug mode of the reactor (strict immutability checks) and log every dispatch"))

	key = "log-level"
	RunCmd.Flags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "cache-limit"
	RunCmd.Flags().Int(key, reactor.DefaultConfig().CacheLimit, util.WrapString("Maximum number of memoized getter values"))

	key = "evict-count"
	RunCmd.Flags().Int(key, reactor.DefaultConfig().EvictCount, util.WrapString("Number of values evicted at once when the cache is full"))

	key = "load"
	RunCmd.Flags().String(key, "", util.WrapString("Snapshot file to load after the stores are registered"))

	key = "out"
	RunCmd.Flags().String(key, "", util.WrapString("Write a snapshot of the final state to this file"))

	key = "metrics"
	RunCmd.Flags().Bool(key, false, util.WrapString("Print dispatch metrics in the Prometheus text format after the run"))

	key = "timing"
	RunCmd.Flags().Bool(key, false, util.WrapString("Print dispatch timing statistics per action type and the getter cache statistics after the run"))
}

// processConfig binds the flags and configures logging
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return util.InitLoggers(viper.GetString("log-level"))
}

func run(_ *cobra.Command, args []string) error {
	var s snapshot.ISerializer
	if viper.GetString("out") != "" {
		var err error
		if s, err = util.GetSerializer(); err != nil {
			return err
		}
	}

	for _, path := range args {
		if err := runFile(path, s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func runFile(path string, s snapshot.ISerializer) error {
	scenario, err := LoadScenario(path)
	if err != nil {
		return err
	}

	// collect the sinks
	var metricsSink *sink.MetricsSink
	var timingSink *sink.TimingSink
	var sinks []reactor.DebugSink
	if viper.GetBool("debug") {
		sinks = append(sinks, sink.NewLoggingSink())
	}
	if viper.GetBool("metrics") {
		metricsSink = sink.NewMetricsSink()
		sinks = append(sinks, metricsSink)
	}
	if viper.GetBool("timing") {
		timingSink = sink.NewTimingSink()
		sinks = append(sinks, timingSink)
	}

	runner, err := NewRunner(scenario, &reactor.Config{
		Debug:      viper.GetBool("debug"),
		CacheLimit: viper.GetInt("cache-limit"),
		EvictCount: viper.GetInt("evict-count"),
		Sink:       sink.Multi(sinks...),
	}, os.Stdout)
	if err != nil {
		return err
	}

	if load := viper.GetString("load"); load != "" {
		if _, err := snapshot.LoadFile(load, runner.Reactor()); err != nil {
			return err
		}
	}

	if err := runner.Run(); err != nil {
		return err
	}

	if out := viper.GetString("out"); out != "" {
		if err := snapshot.SaveFile(out, s, runner.Reactor()); err != nil {
			return err
		}
	}

	if metricsSink != nil {
		fmt.Println()
		metricsSink.WritePrometheus(os.Stdout)
	}
	if timingSink != nil {
		fmt.Println()
		printTiming(timingSink, runner.Reactor())
	}
	return nil
}

// printTiming prints the timing statistics in a formatted way
func printTiming(timing *sink.TimingSink, r *reactor.Reactor) {
	fmt.Printf("%-20s%8s%12s%12s%12s%8s\n", "action", "count", "mean(ms)", "min(ms)", "max(ms)", "errors")
	for _, t := range timing.Stats() {
		fmt.Printf("%-20s%8d%12.3f%12.3f%12.3f%8d\n",
			t.ActionType, t.Durations.Count, t.Durations.Mean, t.Durations.Min, t.Durations.Max, t.Errors)
	}

	stats, _ := json.Marshal(r.Stats())
	fmt.Printf("\ngetter cache: %s\n", stats)
}

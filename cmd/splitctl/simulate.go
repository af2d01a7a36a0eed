package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/engine"
	"splitguard/internal/sim"
	"splitguard/internal/sim/scenario"
	"splitguard/internal/timeline"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario]",
	Short: "Run a built-in scenario and print the commands issued",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List built-in scenarios",
	RunE:  runScenarios,
}

var (
	simDuration float64
	simPNG      string
	simSettings string
	simSeed     int64
	simJSON     bool
	simVerbose  bool
)

func init() {
	simulateCmd.Flags().Float64Var(&simDuration, "duration", 0, "Game seconds to simulate (0 = scenario default)")
	simulateCmd.Flags().StringVar(&simPNG, "png", "", "Render a timeline PNG to this path")
	simulateCmd.Flags().StringVar(&simSettings, "settings", "", "YAML settings file (defaults when empty)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Seed for unlock delay jitter")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print decisions as JSON lines")
	simulateCmd.Flags().BoolVarP(&simVerbose, "verbose", "v", false, "Show controller debug logs")
}

type collector struct {
	mu      sync.Mutex
	records []decision.Record
}

func (c *collector) Record(r decision.Record) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Lookup(args[0])
	if err != nil {
		return err
	}

	settings := config.DefaultSettings()
	if simSettings != "" {
		if settings, err = config.ReadSettingsFile(simSettings); err != nil {
			return err
		}
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if simVerbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	opts := engine.DefaultOptions(config.NewStore(settings, ""))
	opts.Logger = logger
	opts.Rand = rand.New(rand.NewSource(simSeed))
	eng := engine.New(opts)
	defer eng.Close()

	col := &collector{}
	eng.AddSink(col)

	res := sc.Run(eng, simDuration)

	if simJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range col.records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
	} else {
		printRun(cmd, sc, res, col.records)
	}

	if simPNG != "" {
		tl := timeline.DefaultOptions()
		tl.Title = fmt.Sprintf("%s (%.1fs)", sc.Name, res.Samples[len(res.Samples)-1].T-scenario.Start)
		if err := timeline.SavePNG(simPNG, res, tl); err != nil {
			return fmt.Errorf("render timeline: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "timeline written to %s\n", simPNG)
	}
	return nil
}

func printRun(cmd *cobra.Command, sc scenario.Scenario, res sim.Result, recs []decision.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n\n", sc.Name, sc.Description)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T+\tCONTROLLER\tACTION\tCAUSE\tITEM\tREASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\t%s\n",
			r.GameTime-scenario.Start, r.Controller, r.Action, r.Cause, r.Item, r.Reason)
	}
	w.Flush()

	refused := 0
	for _, is := range res.World.Issued {
		if is.Refused {
			refused++
		}
	}
	fmt.Fprintf(out, "\n%d commands issued, %d refused, %d cues\n", len(res.World.Issued), refused, len(res.Marks))
}

func runScenarios(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDURATION\tDESCRIPTION")
	for _, sc := range scenario.All() {
		fmt.Fprintf(w, "%s\t%.0fs\t%s\n", sc.Name, sc.Duration, sc.Description)
	}
	return w.Flush()
}

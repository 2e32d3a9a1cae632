package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/injector"
	"github.com/zeusync/behave/internal/planner/pabt"
)

var rootCmd = &cobra.Command{
	Use:           "behave",
	Short:         "Behave runs behavior trees",
	Long:          `Behave loads behavior tree definitions (YAML or JSON), validates them and ticks agents against them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Uint64("seed", 0, "Seed for stochastic nodes; 0 picks one at random")
	rootCmd.PersistentFlags().String("domain", "", "YAML file with planner actions for htn task nodes")
}

// configFromFlags fills the parts of the injector config shared by every command.
func configFromFlags(cmd *cobra.Command) (injector.Config, error) {
	level, _ := cmd.Flags().GetString("log-level")
	seed, _ := cmd.Flags().GetUint64("seed")
	domain, _ := cmd.Flags().GetString("domain")

	cfg := injector.Config{LogLevel: level, Seed: seed}
	if domain != "" {
		actions, err := pabt.LoadDomainFile(domain)
		if err != nil {
			return cfg, fmt.Errorf("load domain %s: %w", domain, err)
		}
		cfg.Actions = actions
	}
	return cfg, nil
}

// registerBuiltins gives command line trees a few methods to call.
func registerBuiltins(r *binding.BlackboardResolver, l log.Log) {
	r.RegisterMethod("log", func(a binding.Agent, args ...any) (any, error) {
		l.Info(fmt.Sprint(args...), log.Agent(a.ID()))
		return true, nil
	})
	r.RegisterMethod("succeed", func(binding.Agent, ...any) (any, error) {
		return bt.StatusSuccess, nil
	})
	r.RegisterMethod("fail", func(binding.Agent, ...any) (any, error) {
		return bt.StatusFailure, nil
	})
}

// loadTrees loads every file into ws and returns the tree ids in order.
func loadTrees(ws *bt.Workspace, paths []string) ([]string, error) {
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		def, err := bt.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, err := ws.Load(def); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ids = append(ids, def.ID)
	}
	return ids, nil
}

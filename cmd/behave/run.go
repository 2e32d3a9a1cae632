package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/host"
	"github.com/zeusync/behave/internal/injector"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Tick agents against a tree for a number of frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, _ := cmd.Flags().GetInt("agents")
		frames, _ := cmd.Flags().GetInt("frames")
		workers, _ := cmd.Flags().GetInt("workers")

		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		cfg.Host = host.Config{Workers: workers}
		app, cleanup, err := injector.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		registerBuiltins(app.Resolver, app.Logger)

		ids, err := loadTrees(app.Workspace, args)
		if err != nil {
			return err
		}
		for i := range agents {
			if err := app.Host.Bind(binding.NewAgent(fmt.Sprintf("agent-%03d", i)), ids[0]); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		var last host.Frame
		var tickErr error
		for range frames {
			last, tickErr = app.Host.TickAll(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		printFrame(cmd, last)
		return tickErr
	},
}

func printFrame(cmd *cobra.Command, f host.Frame) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "frame %d\n", f.Number)
	fmt.Fprintln(w, "AGENT\tSTATUS\tFRAMES\tACTIVE")
	for _, a := range f.Agents {
		status := a.Status
		if a.Error != "" {
			status += ": " + a.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.ID, status, a.Frames, strings.Join(a.Active, "/"))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntP("agents", "n", 1, "Number of agents to bind")
	runCmd.Flags().IntP("frames", "f", 10, "Number of frames to tick")
	runCmd.Flags().Int("workers", 0, "Concurrent ticks per frame; 0 uses GOMAXPROCS")
}

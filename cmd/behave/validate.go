package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/injector"
)

var errInvalidTrees = errors.New("some trees are invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check tree definitions without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		app, cleanup, err := injector.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		registerBuiltins(app.Resolver, app.Logger)

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			def, err := bt.LoadFile(path)
			if err == nil {
				err = app.Workspace.Validate(def)
			}
			if err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "ok   %s (%s)\n", path, def.ID)
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d", errInvalidTrees, failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

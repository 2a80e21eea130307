package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/session"
	"github.com/owalsh/gridstage/internal/pkg/solver"
)

// newRunCmd executes the configured stages in order: base model, every
// enabled component-addition stage, validation, the optional optimization,
// and a checkpoint under the run name.
func newRunCmd(cfgPath *string) *cobra.Command {
	var overwrite bool
	var skipCheckpoint bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the configured build stages end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			sess, err := newSession(cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			stopArchives, err := attachArchives(sess, cfg, logger, cmd)
			if err != nil {
				return err
			}
			defer stopArchives()

			if err := sess.BuildBase(); err != nil {
				return err
			}

			for _, st := range cfg.Stages {
				if !st.Enabled {
					logger.Info("stage disabled, skipping", zap.String("stage", st.Name))
					continue
				}
				summary, err := sess.AddComponents(st.Name, st.Kind, st.Filter)
				if err != nil {
					return fmt.Errorf("stage %q: %w", st.Name, err)
				}
				if summary.NoMatch {
					fmt.Fprintf(cmd.OutOrStdout(), "stage %q: no components matched\n", st.Name)
				}
			}

			for vtype, result := range sess.Validate(nil) {
				for _, w := range result.Warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "validate %s: %s\n", vtype, w)
				}
			}

			if cfg.Optimize.Enabled {
				result, err := sess.Optimize(cmd.Context())
				if err != nil {
					var inf *solver.InfeasibleError
					if errors.As(err, &inf) {
						fmt.Fprintf(cmd.OutOrStdout(),
							"optimization infeasible: supply %.1f MW against demand %.1f MW\n",
							inf.Snapshot.Supply, inf.Snapshot.Demand)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "optimization %s, objective %.2f\n",
					result.Status, result.Objective)
			}

			report, err := sess.Inspect(session.AspectAll)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)

			if !skipCheckpoint {
				if err := sess.SaveCheckpoint(cfg.RunName, overwrite); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checkpoint saved: %s\n", cfg.RunName)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing checkpoint with the same run name")
	cmd.Flags().BoolVar(&skipCheckpoint, "no-checkpoint", false, "skip the final checkpoint")
	return cmd
}

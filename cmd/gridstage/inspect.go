package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owalsh/gridstage/internal/pkg/session"
)

// newInspectCmd loads a checkpoint into a fresh session and prints a report.
func newInspectCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <checkpoint> [aspect]",
		Short: "Report on a saved checkpoint",
		Args:  cobra.RangeArgs(1, 2),
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

			if err := sess.LoadCheckpoint(args[0]); err != nil {
				return err
			}

			aspect := session.AspectAll
			if len(args) > 1 {
				aspect = args[1]
			}
			report, err := sess.Inspect(aspect)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

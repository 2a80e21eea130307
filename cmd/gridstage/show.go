package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// newShowCmd lists catalog contents without starting a session.
func newShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "show <technologies|carriers|areas>",
		Short:     "List what the capacity catalog offers",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"technologies", "carriers", "areas"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cat, err := catalog.FileSource{Path: cfg.Catalog}.LoadCatalog()
			if err != nil {
				return err
			}
			var values []string
			switch args[0] {
			case "technologies":
				values = cat.Technologies()
			case "carriers":
				values = cat.Carriers()
			case "areas":
				values = cat.Areas()
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}

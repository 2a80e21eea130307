package main

import (
	"github.com/spf13/cobra"

	"github.com/owalsh/gridstage/internal/pkg/webservice"
)

// newServeCmd exposes saved checkpoints over a read-only HTTP API.
func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve checkpoint inspection over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return webservice.New(cfg, logger).ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8910", "listen address")
	return cmd
}

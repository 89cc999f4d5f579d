package main

import (
	"github.com/spf13/cobra"

	"github.com/sakif/superlists/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server until SIGINT or SIGTERM.

Login emails are written to the log; set BASE_URL so the links point at
this server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		srv, err := server.New(cfg, logger)
		if err != nil {
			return err
		}

		// Start blocks until the server is shut down.
		return srv.Start()
	},
}

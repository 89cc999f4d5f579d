package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/superlists/internal/mail"
	"github.com/sakif/superlists/internal/server"
	"github.com/sakif/superlists/internal/service"
)

// newAuthService opens the database and builds an AuthService for a
// one-shot command. The caller closes the returned closer.
func newAuthService() (*service.AuthService, func() error, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, err
	}

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewAuthService(db, db, mail.NewLogMailer(logger), nil, server.AuthConfig(cfg), logger)
	return svc, db.Close, nil
}

var loginLinkCmd = &cobra.Command{
	Use:   "login-link <email>",
	Short: "Issue a login link and print it",
	Long: `Issue a login token for email and print its link instead of mailing it.

Useful on a fresh deployment before mail delivery is set up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := newAuthService()
		if err != nil {
			return err
		}
		defer closeDB()

		token, err := svc.Issue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), svc.LoginURL(token.UID))
		return nil
	},
}

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete spent and expired login tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := newAuthService()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := svc.PurgeTokens(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d tokens\n", n)
		return nil
	},
}

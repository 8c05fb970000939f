package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/psymetrics/internal/middleware"
)

var (
	tkSubject string
	tkScope   string
	tkTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tkSubject, "subject", "", "Token subject (required)")
	tokenCmd.Flags().StringVar(&tkScope, "scope", "analyses:write", "Scope claim")
	tokenCmd.Flags().DurationVar(&tkTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the server's write endpoints",
	Long: `Mint an HS256 bearer token signed with auth.jwt_secret
(PSYMETRICS_AUTH_JWT_SECRET).

Example:
  PSYMETRICS_AUTH_JWT_SECRET=s3cret psyanalyze token --subject ci --ttl 1h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return errors.New("auth.jwt_secret is not configured")
	}
	if tkTTL <= 0 {
		return errors.New("--ttl must be positive")
	}
	auth, err := middleware.NewAuthenticator(cfg.Auth.JWTSecret, "psymetrics")
	if err != nil {
		return err
	}
	tok, err := auth.SignToken(tkSubject, tkScope, tkTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}

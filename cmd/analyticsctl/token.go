package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailverse/analytics/internal/auth"
)

const defaultTokenTTL = time.Hour

type tokenOptions struct {
	sub   string
	role  string
	email string
	ttl   time.Duration
}

func newTokenCommand() *cobra.Command {
	opts := tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the shared secret",
		Long: `Mint an HS256 bearer token for calling the analytics API.
The token is signed with auth.jwt_secret (AUTH_JWT_SECRET).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			token, err := mintToken(cfg.Auth.JWTSecret, opts)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.sub, "sub", "", "subject (user id)")
	cmd.Flags().StringVar(&opts.role, "role", auth.RoleAdmin, "role claim")
	cmd.Flags().StringVar(&opts.email, "email", "", "email claim")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", defaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}

func mintToken(secret string, opts tokenOptions) (string, error) {
	if opts.ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	issuer, err := auth.NewIssuer(secret)
	if err != nil {
		return "", err
	}
	return issuer.Issue(opts.sub, opts.role, opts.email, opts.ttl)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
)

// TokenIssue signs an owner token for use with --token or JUKEBOX_TOKEN.
func (r *Runner) TokenIssue(ctx context.Context, cmd *cli.Command) error {
	owner, err := ownerID(cmd)
	if err != nil {
		return err
	}

	auth := server.NewAuth(r.config.Auth)
	if auth == nil {
		return fmt.Errorf("%w: auth.jwt_secret is not set (or %s)", shared.ErrMissingCredentials, shared.EnvJWTSecret)
	}

	ttl := cmd.Duration("ttl")
	token, err := auth.IssueToken(owner, ttl)
	if err != nil {
		return err
	}

	r.logger.Debug("issued owner token", "owner", owner, "expires", time.Now().Add(ttl).Format(time.RFC3339))
	r.writePlain("%s\n", token)
	return nil
}

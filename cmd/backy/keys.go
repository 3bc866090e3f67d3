package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/backydb/internal/config"
	apperrors "github.com/allisson/backydb/internal/errors"
	"github.com/allisson/backydb/internal/keyprovider"
)

// createLocalKeyCommand provisions a LocalVault key pair ahead of time, so
// an operator can inspect Settings.LocalKeyStorePath before the first
// `backy backup` run pays for RSA key generation inline.
func createLocalKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-local-key",
		Usage: "Generate the LocalVault RSA key pair if none exists yet",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			if cfg.Provider != "local" && cfg.Provider != "" {
				return apperrors.Wrap(apperrors.ErrConfigInvalid, "create-local-key: SECURITY_PROVIDER is not \"local\"")
			}

			vault := keyprovider.NewLocalVault(cfg.LocalKeyStorePath, cfg.PrivateKeyPassword)
			if err := vault.Ensure(); err != nil {
				return err
			}

			params := vault.PublicParams()
			fmt.Printf("local vault key ready: dir=%s algorithm=%s key_size=%d\n",
				cfg.LocalKeyStorePath, params.Algorithm, params.KeySize)
			return nil
		},
	}
}

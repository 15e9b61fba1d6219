package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aulalink/aulalink/internal/config"
	pgstore "github.com/aulalink/aulalink/internal/store/pg"
)

// newSessionsCmd agrupa operaciones administrativas sobre sesiones.
// Revoca cadenas de refresh directamente contra la base; los access tokens
// vivos del usuario mueren solos a su TTL.
func newSessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Operaciones administrativas sobre sesiones",
	}

	var userID, reason string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca todas las sesiones de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("falta --user")
			}
			return revokeAll(cmd.Context(), userID, reason)
		},
	}
	revoke.Flags().StringVar(&userID, "user", "", "ID del usuario")
	revoke.Flags().StringVar(&reason, "reason", "admin_revoked", "motivo registrado en cada token")
	sessions.AddCommand(revoke)

	return sessions
}

func revokeAll(ctx context.Context, userID, reason string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("sessions revoke requiere storage postgres")
	}

	pg, err := pgstore.New(ctx, cfg.Storage.DSN, pgstore.Config{})
	if err != nil {
		return err
	}
	defer pg.Close()

	n, err := pg.Chains().RevokeAllByUser(ctx, userID, reason)
	if err != nil {
		return err
	}
	fmt.Printf("revoked %d refresh tokens for user %s\n", n, userID)
	return nil
}

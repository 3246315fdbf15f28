package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/jobs/gc"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/migrations/postgres"
)

func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL embebidas (solo postgres)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate requires storage.driver=postgres")
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.pg.Migrate(cmd.Context(), postgres.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%v skipped=%v (%s)\n", res.Applied, res.Skipped, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newGCCmd(load loadFunc) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Borra una vez los códigos, sesiones y estados OAuth expirados",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !cmd.Flags().Changed("grace") {
				grace = cfg.GC.Grace
			}
			sw := &gc.Sweeper{Targets: gc.Targets(rt.store, rt.store.OAuthStates()), Grace: grace}
			n, err := sw.Sweep(cmd.Context())
			logger.L().Info("gc finished", logger.Component("gc"), logger.Int64("deleted", n))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "no borrar filas expiradas hace menos que esto")
	return cmd
}

func newTokenCmd(load loadFunc) *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Utilidades de access tokens"}
	token.AddCommand(&cobra.Command{
		Use:   "decode <jwt>",
		Short: "Valida un access token con el server secret y muestra tenant y subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			iss := jwt.NewIssuer(cfg.JWT.Issuer, jwt.NewTenantKeys(cfg.Auth.ServerSecret), cfg.AccessTTL())
			claims, err := iss.Decode(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant_id: %s\n", claims.TenantID)
			fmt.Fprintf(out, "user_id:   %s\n", claims.UserID())
			if claims.ExpiresAt != nil {
				fmt.Fprintf(out, "expires:   %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
			}
			return nil
		},
	})
	return token
}

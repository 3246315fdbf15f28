// Command authcore es el servidor de autenticación y sus tareas de mantenimiento.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

var version = "dev"

func main() {
	// .env es opcional; las variables del sistema tienen prioridad
	_ = godotenv.Load()

	var configPath string
	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Servidor de autenticación multi-tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", envOr("AUTHCORE_CONFIG", "config.yaml"), "ruta del config YAML (env AUTHCORE_CONFIG)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "authcore", Version: version})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newGCCmd(load),
		newTokenCmd(load),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	_ = logger.Sync()
}

type loadFunc func() (*config.Config, error)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

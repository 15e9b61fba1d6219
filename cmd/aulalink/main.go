// aulalink es el servicio de autenticación y aislamiento multi-tenant.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	// .env es opcional: en prod la config llega por entorno real.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "aulalink",
		Short:         "Servicio de autenticación multi-tenant para instituciones educativas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "ruta del archivo de configuración")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSessionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

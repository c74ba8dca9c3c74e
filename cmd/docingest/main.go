// @title           Document Ingestion API
// @version         1.0
// @description     This API ingests documents asynchronously and serves similarity search over them

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akolanti/GoIngest/internal/app"
	"github.com/akolanti/GoIngest/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "docingest",
		Short:         "Document ingestion and retrieval service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the yaml config (defaults to $"+config.DefaultConfigFileEnv+")")

	rootCmd.AddCommand(
		serveCmd(),
		ingestCmd(),
		reprocessCmd(),
		searchCmd(),
		collectionCmd(),
		indexCmd(),
		compactCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if listenAddr != "" {
					a.Settings.Server.ListenAddr = listenAddr
				}
				return a.Serve(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "server listen address")
	return cmd
}

// withApp builds the application from the config file and closes it after fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

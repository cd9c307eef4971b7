package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pandu874/webloganalyzer/internal/web"
)

var (
	serveAddr        string
	serveWriteConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface",
	Long: `Start the HTTP server with the log upload form.

Uploaded files are stored in server.upload_dir and analyzed immediately; the
results page lists request totals, status code counts and malformed lines.
POST /api/analyze accepts the same upload and answers with JSON.

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveWriteConfig {
			if ConfigMgr == nil {
				return fmt.Errorf("configuration manager not initialized")
			}
			path, err := ConfigMgr.SaveDefaultConfig()
			if err != nil {
				return fmt.Errorf("writing default config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			return nil
		}

		if Analyzer == nil || Uploads == nil {
			return fmt.Errorf("log analyzer not initialized")
		}

		opts := web.Options{
			Analyzer: Analyzer,
			Uploads:  Uploads,
			Logger:   Logger,
			Alerts:   AlertEngine,
			Notifier: Notifier,
		}
		if Config != nil {
			opts.MaxUploadBytes = Config.Server.MaxUploadBytes
		}
		srv, err := web.NewServer(opts)
		if err != nil {
			return fmt.Errorf("creating web server: %w", err)
		}

		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.Server.Addr
		}
		if addr == "" {
			return fmt.Errorf("no listen address (set --addr or server.addr)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return web.Serve(ctx, addr, srv.Handler(), Logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().BoolVar(&serveWriteConfig, "write-config", false, "Write a default .weblogconfig.yaml and exit")
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/boardsync/adapter/api"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the sync and notification jobs plus the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := c.EnsureWebhook(ctx); err != nil {
			// Webhook delivery is an optimization on top of the
			// interval sync; keep running without it.
			c.Logger.Warn("webhook registration failed", "error", err)
		}

		c.Jobs.Start(ctx)

		handler := api.NewWebhookHandler(c.Refresh, c.Config.JobRunTimeout, c.Logger)
		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = c.Config.APIAddr
		server := api.NewServer(serverCfg, handler, c.Ping, func() any { return c.Jobs.Stats() }, c.Logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			c.Logger.Info("shutting down worker")
		case err := <-errCh:
			c.Logger.Error("webhook server failed", "error", err)
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.Logger.Warn("webhook server shutdown error", "error", err)
		}
		c.WaitForShutdown(30 * time.Second)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

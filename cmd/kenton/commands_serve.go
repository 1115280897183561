package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/observability"
)

func buildServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health and metrics endpoints",
		Long: `Serve /health, /health/live, /health/ready and /metrics. Readiness fails when
no tools are registered; the conversation backend is reported but never fails it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			reg, err := a.registry()
			if err != nil {
				return err
			}
			if port == 0 {
				port = a.cfg.Observability.Port
			}

			if a.cfg.Observability.MetricsEnabled {
				observability.InitMetrics()
			}
			observability.SetConversationFallback(a.store.FellBack())

			checker := observability.NewHealthChecker(version)
			checker.RegisterCheck(observability.ConversationStoreCheck(a.store.Ping))
			checker.RegisterCheck(observability.ToolCatalogCheck(reg.Len))

			srv := observability.NewServer(port, checker)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			logger.Info("observability server started",
				zap.Int("port", port),
				zap.String("conversation_backend", a.store.Backend()),
				zap.Int("tools", reg.Len()),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving health and metrics on :%d\n", port)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			select {
			case err := <-errCh:
				return err
			case <-shutdownCtx.Done():
				return nil
			}
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port (default from config, 9090)")
	return cmd
}
